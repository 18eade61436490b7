package packages

import (
	"sync"

	"github.com/google/uuid"

	"github.com/spaghettifunk/quiver/engine/asset/loaders"
)

type OperationStatus uint8

const (
	StatusNone OperationStatus = iota
	StatusProcessing
	StatusSucceeded
	StatusFailed
)

func (s OperationStatus) String() string {
	switch s {
	case StatusProcessing:
		return "processing"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	default:
		return "none"
	}
}

// operation is the resolve-exactly-once core every handle embeds. Result
// fields are written before done is closed, so readers must Wait (or select
// on Done) before touching them.
type operation struct {
	ID   uuid.UUID
	done chan struct{}
	once sync.Once
}

func newOperation() operation {
	return operation{
		ID:   uuid.New(),
		done: make(chan struct{}),
	}
}

func (o *operation) Done() <-chan struct{} {
	return o.done
}

// Wait blocks until the operation resolves.
func (o *operation) Wait() {
	<-o.done
}

func (o *operation) IsDone() bool {
	select {
	case <-o.done:
		return true
	default:
		return false
	}
}

func (o *operation) resolve(fn func()) {
	o.once.Do(func() {
		fn()
		close(o.done)
	})
}

// InitOperation reports the outcome of a package initialization.
type InitOperation struct {
	operation
	Status         OperationStatus
	Error          error
	PackageVersion string
}

func NewInitOperation() *InitOperation {
	return &InitOperation{
		operation: newOperation(),
		Status:    StatusProcessing,
	}
}

func (op *InitOperation) Complete(packageVersion string) {
	op.resolve(func() {
		op.Status = StatusSucceeded
		op.PackageVersion = packageVersion
	})
}

func (op *InitOperation) Fail(err error) {
	op.resolve(func() {
		op.Status = StatusFailed
		op.Error = err
	})
}

// AssetHandle tracks one in-flight or completed asset load.
type AssetHandle struct {
	operation
	Location    string
	Status      OperationStatus
	AssetObject *loaders.Asset
	Error       error
}

func NewAssetHandle(location string) *AssetHandle {
	return &AssetHandle{
		operation: newOperation(),
		Location:  location,
		Status:    StatusProcessing,
	}
}

func (h *AssetHandle) Complete(a *loaders.Asset) {
	h.resolve(func() {
		h.Status = StatusSucceeded
		h.AssetObject = a
	})
}

func (h *AssetHandle) Fail(err error) {
	h.resolve(func() {
		h.Status = StatusFailed
		h.Error = err
	})
}

// SceneHandle tracks a scene load. Loads always replace the current scene
// and activate it on completion.
type SceneHandle struct {
	operation
	SceneName   string
	Status      OperationStatus
	IsActivated bool
	Asset       *loaders.Asset
	Error       error
}

func NewSceneHandle(sceneName string) *SceneHandle {
	return &SceneHandle{
		operation: newOperation(),
		SceneName: sceneName,
		Status:    StatusProcessing,
	}
}

func (h *SceneHandle) Complete(a *loaders.Asset) {
	h.resolve(func() {
		h.Status = StatusSucceeded
		h.IsActivated = true
		h.Asset = a
	})
}

func (h *SceneHandle) Fail(err error) {
	h.resolve(func() {
		h.Status = StatusFailed
		h.Error = err
	})
}

// UnloadSceneOperation reports a scene unload. AllowSceneActivation carries
// the unloaded scene's activation flag; callback selection keys on it.
type UnloadSceneOperation struct {
	operation
	SceneName            string
	Status               OperationStatus
	AllowSceneActivation bool
	Error                error
}

func NewUnloadSceneOperation(sceneName string) *UnloadSceneOperation {
	return &UnloadSceneOperation{
		operation: newOperation(),
		SceneName: sceneName,
		Status:    StatusProcessing,
	}
}

func (op *UnloadSceneOperation) Complete(allowSceneActivation bool) {
	op.resolve(func() {
		op.Status = StatusSucceeded
		op.AllowSceneActivation = allowSceneActivation
	})
}

func (op *UnloadSceneOperation) Fail(err error) {
	op.resolve(func() {
		op.Status = StatusFailed
		op.Error = err
	})
}
