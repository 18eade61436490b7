package core

import "sync"

type EventContext struct {
	Data struct {
		S   [4]string
		F64 [2]float64
		U64 [2]uint64
		B   [2]bool
	}
}

// System internal event codes. Application should use codes beyond 255.
type SystemEventCode int

const (
	// A package finished its asynchronous initialization.
	/* Context usage:
	 * s[0] = package name
	 * s[1] = package version
	 * b[0] = succeeded
	 */
	EVENT_CODE_PACKAGE_INITIALIZED SystemEventCode = 0x01

	// An asset finished loading.
	/* Context usage:
	 * s[0] = package name
	 * s[1] = location
	 * f64[0] = duration seconds
	 */
	EVENT_CODE_ASSET_LOADED SystemEventCode = 0x02

	// A scene replaced the current one.
	/* Context usage:
	 * s[0] = scene asset name
	 */
	EVENT_CODE_SCENE_LOADED SystemEventCode = 0x03

	// A scene was unloaded.
	/* Context usage:
	 * s[0] = scene asset name
	 * b[0] = activation was allowed
	 */
	EVENT_CODE_SCENE_UNLOADED SystemEventCode = 0x04

	// A remote download gave up after all retries.
	/* Context usage:
	 * s[0] = package name
	 * s[1] = file name
	 * s[2] = error text
	 */
	EVENT_CODE_DOWNLOAD_FAILED SystemEventCode = 0x05

	MAX_EVENT_CODE SystemEventCode = 0xFF
)

const MAX_MESSAGE_CODES = 1024

type registeredEvent struct {
	listener interface{}
	callback FnOnEvent
}

type eventCodeEntry struct {
	events []*registeredEvent
}

// State structure.
type eventSystemState struct {
	mu sync.RWMutex
	// Lookup table for event codes.
	registered [MAX_MESSAGE_CODES]eventCodeEntry
}

var onceEvent sync.Once
var isInitialized bool = false
var eventState *eventSystemState = nil

// Should return true if handled.
type FnOnEvent func(code SystemEventCode, sender interface{}, listenerInst interface{}, data EventContext) bool

func EventInitialize() bool {
	if isInitialized {
		return false
	}
	onceEvent.Do(func() {
		eventState = &eventSystemState{}
	})
	isInitialized = true
	return true
}

func EventShutdown() error {
	if eventState == nil {
		return nil
	}
	eventState.mu.Lock()
	defer eventState.mu.Unlock()
	for i := 0; i < MAX_MESSAGE_CODES; i++ {
		if len(eventState.registered[i].events) != 0 {
			eventState.registered[i].events = nil
		}
	}
	return nil
}

// Register to listen for when events are sent with the provided code. Events with duplicate
// listener/callback combos will not be registered again and will cause this to return FALSE.
func EventRegister(code SystemEventCode, listener interface{}, onEvent FnOnEvent) bool {
	if !isInitialized {
		return false
	}
	eventState.mu.Lock()
	defer eventState.mu.Unlock()

	for _, e := range eventState.registered[code].events {
		if e.listener == listener {
			return false
		}
	}
	event := &registeredEvent{
		listener: listener,
		callback: onEvent,
	}
	eventState.registered[code].events = append(eventState.registered[code].events, event)
	return true
}

// Unregister from listening for when events are sent with the provided code. If no matching
// registration is found, this function returns FALSE.
func EventUnregister(code SystemEventCode, listener interface{}) bool {
	if !isInitialized {
		return false
	}
	eventState.mu.Lock()
	defer eventState.mu.Unlock()

	events := eventState.registered[code].events
	for i, e := range events {
		if e.listener == listener {
			eventState.registered[code].events = append(events[:i], events[i+1:]...)
			return true
		}
	}
	return false
}

// Fire an event to listeners of the given code. If an event handler returns
// TRUE, the event is considered handled and is not passed on to any more listeners.
func EventFire(code SystemEventCode, sender interface{}, data EventContext) bool {
	if !isInitialized {
		return false
	}
	eventState.mu.RLock()
	events := make([]*registeredEvent, len(eventState.registered[code].events))
	copy(events, eventState.registered[code].events)
	eventState.mu.RUnlock()

	for _, e := range events {
		if e.callback(code, sender, e.listener, data) {
			return true
		}
	}
	return false
}
