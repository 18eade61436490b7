package resource_test

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/quiver/engine/asset"
	"github.com/spaghettifunk/quiver/engine/asset/loaders"
	"github.com/spaghettifunk/quiver/engine/core"
	"github.com/spaghettifunk/quiver/engine/packages"
	"github.com/spaghettifunk/quiver/engine/resource"
)

// fakePackage stands in for a package engine package. Counters expose how
// often the module reached through the interface.
type fakePackage struct {
	name  string
	ready bool

	mu       sync.Mutex
	infos    map[string]*asset.AssetInfo
	remote   map[string]bool
	valid    map[string]bool
	initFail bool
	loadFail bool

	initCalls    int
	lookups      int
	released     int
	unloadUnused int
	forceUnload  int
}

func newFakePackage(name string) *fakePackage {
	return &fakePackage{
		name:   name,
		infos:  make(map[string]*asset.AssetInfo),
		remote: make(map[string]bool),
		valid:  make(map[string]bool),
	}
}

func (p *fakePackage) addAsset(location string, t asset.Type) *asset.AssetInfo {
	info := &asset.AssetInfo{Location: location, FileName: location, PackageName: p.name, AssetType: t}
	p.infos[location] = info
	return info
}

func (p *fakePackage) Name() string { return p.name }
func (p *fakePackage) Ready() bool  { return p.ready }

func (p *fakePackage) PlayMode() packages.PlayMode { return packages.PlayModeOffline }

func (p *fakePackage) InitializeAsync(_ packages.InitParameters) *packages.InitOperation {
	p.mu.Lock()
	p.initCalls++
	fail := p.initFail
	p.mu.Unlock()

	op := packages.NewInitOperation()
	if fail {
		op.Fail(core.ErrOperationFailed)
		return op
	}
	p.ready = true
	op.Complete("1.0.0")
	return op
}

func (p *fakePackage) GetAssetInfo(location string) *asset.AssetInfo {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lookups++
	return p.infos[location]
}

func (p *fakePackage) GetAssetInfosByTags(tags ...string) []*asset.AssetInfo {
	var out []*asset.AssetInfo
	for _, info := range p.infos {
		for _, tag := range tags {
			if info.HasTag(tag) {
				out = append(out, info)
				break
			}
		}
	}
	return out
}

func (p *fakePackage) CheckLocationValid(location string) bool {
	if v, ok := p.valid[location]; ok {
		return v
	}
	_, ok := p.infos[location]
	return ok
}

func (p *fakePackage) IsNeedDownloadFromRemote(info *asset.AssetInfo) bool {
	return p.remote[info.Location]
}

func (p *fakePackage) LoadAssetAsync(info *asset.AssetInfo, _ int) *packages.AssetHandle {
	handle := packages.NewAssetHandle(info.Location)
	if p.loadFail {
		handle.Fail(fmt.Errorf("decode blew up: %w", core.ErrOperationFailed))
		return handle
	}
	handle.Complete(&loaders.Asset{Info: info, Type: info.AssetType, Data: "payload:" + info.Location})
	return handle
}

func (p *fakePackage) ReleaseAsset(_ *loaders.Asset) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.released++
}

func (p *fakePackage) UnloadUnusedAssets() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unloadUnused++
}

func (p *fakePackage) ForceUnloadAllAssets() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.forceUnload++
}

type fakeEngine struct {
	pkgs      map[string]*fakePackage
	scenes    map[string]bool
	current   string
	destroyed bool
}

func newFakeEngine(pkgs ...*fakePackage) *fakeEngine {
	e := &fakeEngine{
		pkgs:   make(map[string]*fakePackage),
		scenes: make(map[string]bool),
	}
	for _, p := range pkgs {
		e.pkgs[p.name] = p
	}
	return e
}

func (e *fakeEngine) CreatePackage(name string) (resource.AssetPackage, error) {
	if p, ok := e.pkgs[name]; ok {
		return p, nil
	}
	p := newFakePackage(name)
	e.pkgs[name] = p
	return p, nil
}

func (e *fakeEngine) TryGetPackage(name string) (resource.AssetPackage, bool) {
	p, ok := e.pkgs[name]
	return p, ok
}

func (e *fakeEngine) LoadSceneAsync(sceneAssetName string, _ int) *packages.SceneHandle {
	handle := packages.NewSceneHandle(sceneAssetName)
	if !e.scenes[sceneAssetName] {
		handle.Fail(fmt.Errorf("scene '%s': %w", sceneAssetName, core.ErrNotFound))
		return handle
	}
	e.current = sceneAssetName
	handle.Complete(&loaders.Asset{Data: sceneAssetName})
	return handle
}

func (e *fakeEngine) UnloadSceneAsync(sceneAssetName string) *packages.UnloadSceneOperation {
	op := packages.NewUnloadSceneOperation(sceneAssetName)
	if e.current == sceneAssetName {
		e.current = ""
		op.Complete(true)
	} else {
		op.Complete(false)
	}
	return op
}

func (e *fakeEngine) Destroy() error {
	e.destroyed = true
	return nil
}

func newModule(t *testing.T, engine resource.AssetEngine) *resource.Module {
	t.Helper()
	m := resource.New(engine, &resource.Config{DefaultPackageName: "DefaultPackage"})
	require.NoError(t, m.Initialize())
	return m
}

// pumpUntil drives Update until the counter reaches want, mimicking the
// per-frame dispatch of an application loop.
func pumpUntil(t *testing.T, m *resource.Module, counter *atomic.Int32, want int32) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		m.Update()
		if counter.Load() >= want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("callbacks did not reach %d within deadline, got %d", want, counter.Load())
}

// pumpIdle drives Update for a short while to flush anything pending.
func pumpIdle(m *resource.Module) {
	for i := 0; i < 50; i++ {
		m.Update()
		time.Sleep(time.Millisecond)
	}
}

func TestInitPackage(t *testing.T) {
	pkg := newFakePackage("DefaultPackage")
	m := newModule(t, newFakeEngine(pkg))

	assert.False(t, m.HasPackage("DefaultPackage"))
	assert.True(t, m.InitPackage("DefaultPackage"))
	assert.True(t, m.HasPackage("DefaultPackage"))
	assert.Equal(t, 1, pkg.initCalls)

	// Re-initializing the same name is rejected before touching the engine.
	assert.False(t, m.InitPackage("DefaultPackage"))
	assert.Equal(t, 1, pkg.initCalls)

	assert.False(t, m.InitPackage(""))
	assert.False(t, m.InitPackage("   "))
}

func TestInitPackageFailureIsNotRegistered(t *testing.T) {
	pkg := newFakePackage("DefaultPackage")
	pkg.initFail = true
	m := newModule(t, newFakeEngine(pkg))

	assert.False(t, m.InitPackage("DefaultPackage"))
	assert.False(t, m.HasPackage("DefaultPackage"))

	// A failed name stays available for a fresh package object.
	pkg.initFail = false
	assert.True(t, m.InitPackage("DefaultPackage"))
}

func TestGetAssetInfoCaching(t *testing.T) {
	pkg := newFakePackage("DefaultPackage")
	want := pkg.addAsset("ui/panel.png", asset.TypeImage)
	m := newModule(t, newFakeEngine(pkg))
	require.True(t, m.InitPackage("DefaultPackage"))

	got, err := m.GetAssetInfo("ui/panel.png")
	require.NoError(t, err)
	assert.Same(t, want, got)

	again, err := m.GetAssetInfo("ui/panel.png")
	require.NoError(t, err)
	assert.Same(t, want, again)
	assert.Equal(t, 1, pkg.lookups, "second query must be served from the cache")

	// A missing location is cached too.
	missing, err := m.GetAssetInfo("ui/gone.png")
	require.NoError(t, err)
	assert.Nil(t, missing)
	_, _ = m.GetAssetInfo("ui/gone.png")
	assert.Equal(t, 2, pkg.lookups, "negative answers are cached")

	m.InvalidateDescriptorCache()
	_, err = m.GetAssetInfo("ui/panel.png")
	require.NoError(t, err)
	assert.Equal(t, 3, pkg.lookups, "invalidation forces a fresh engine query")

	_, err = m.GetAssetInfo("")
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestHasAsset(t *testing.T) {
	pkg := newFakePackage("DefaultPackage")
	pkg.addAsset("town/bgm.wav", asset.TypeAudio)
	pkg.addAsset("town/patch.bin", asset.TypeBinary)
	pkg.remote["town/patch.bin"] = true
	// Valid location whose descriptor is gone from the manifest.
	pkg.valid["town/ghost.txt"] = true

	m := newModule(t, newFakeEngine(pkg))
	require.True(t, m.InitPackage("DefaultPackage"))

	// Invalid locations win over existence.
	r, err := m.HasAsset("town/unknown.wav")
	require.NoError(t, err)
	assert.Equal(t, resource.HasResultValid, r)

	r, err = m.HasAsset("town/ghost.txt")
	require.NoError(t, err)
	assert.Equal(t, resource.HasResultNotExist, r)

	r, err = m.HasAsset("town/patch.bin")
	require.NoError(t, err)
	assert.Equal(t, resource.HasResultAssetOnline, r)

	r, err = m.HasAsset("town/bgm.wav")
	require.NoError(t, err)
	assert.Equal(t, resource.HasResultAssetOnDisk, r)

	_, err = m.HasAsset("")
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestLoadAssetAsyncSuccess(t *testing.T) {
	pkg := newFakePackage("DefaultPackage")
	pkg.addAsset("ui/welcome.txt", asset.TypeText)
	m := newModule(t, newFakeEngine(pkg))
	require.True(t, m.InitPackage("DefaultPackage"))

	var successes, failures atomic.Int32
	var gotObj interface{}
	var gotUser interface{}
	err := m.LoadAssetAsync("ui/welcome.txt", asset.TypeText, 0, resource.LoadAssetCallbacks{
		OnSuccess: func(location string, obj interface{}, duration float64, userData interface{}) {
			assert.Equal(t, "ui/welcome.txt", location)
			assert.GreaterOrEqual(t, duration, 0.0)
			gotObj = obj
			gotUser = userData
			successes.Add(1)
		},
		OnFailure: func(string, resource.LoadStatus, string, interface{}) {
			failures.Add(1)
		},
	}, "user-data")
	require.NoError(t, err)

	pumpUntil(t, m, &successes, 1)
	pumpIdle(m)
	assert.Equal(t, int32(1), successes.Load(), "the success callback runs exactly once")
	assert.Equal(t, int32(0), failures.Load())
	assert.Equal(t, "user-data", gotUser)

	a, ok := gotObj.(*loaders.Asset)
	require.True(t, ok)
	assert.Equal(t, "payload:ui/welcome.txt", a.Data)
}

func TestLoadAssetAsyncMissing(t *testing.T) {
	pkg := newFakePackage("DefaultPackage")
	m := newModule(t, newFakeEngine(pkg))
	require.True(t, m.InitPackage("DefaultPackage"))

	var successes, failures atomic.Int32
	var gotStatus resource.LoadStatus
	var gotMessage string
	err := m.LoadAssetAsync("ui/gone.txt", asset.TypeText, 0, resource.LoadAssetCallbacks{
		OnSuccess: func(string, interface{}, float64, interface{}) { successes.Add(1) },
		OnFailure: func(location string, status resource.LoadStatus, message string, _ interface{}) {
			gotStatus = status
			gotMessage = message
			failures.Add(1)
		},
	}, nil)
	require.NoError(t, err)

	// Nothing fires until the update thread pumps.
	assert.Equal(t, int32(0), failures.Load())

	pumpUntil(t, m, &failures, 1)
	pumpIdle(m)
	assert.Equal(t, int32(1), failures.Load())
	assert.Equal(t, int32(0), successes.Load())
	assert.Equal(t, resource.LoadStatusNotExist, gotStatus)
	assert.Contains(t, gotMessage, "ui/gone.txt")
}

func TestLoadAssetAsyncMissingWithoutFailureCallback(t *testing.T) {
	pkg := newFakePackage("DefaultPackage")
	m := newModule(t, newFakeEngine(pkg))
	require.True(t, m.InitPackage("DefaultPackage"))

	var successes atomic.Int32
	err := m.LoadAssetAsync("ui/gone.txt", asset.TypeText, 0, resource.LoadAssetCallbacks{
		OnSuccess: func(string, interface{}, float64, interface{}) { successes.Add(1) },
	}, nil)
	assert.ErrorIs(t, err, core.ErrNotFound)

	pumpIdle(m)
	assert.Equal(t, int32(0), successes.Load(), "a returned error replaces the callback")
}

func TestLoadAssetAsyncEngineFailure(t *testing.T) {
	pkg := newFakePackage("DefaultPackage")
	pkg.addAsset("ui/broken.png", asset.TypeImage)
	pkg.loadFail = true
	m := newModule(t, newFakeEngine(pkg))
	require.True(t, m.InitPackage("DefaultPackage"))

	var successes, failures atomic.Int32
	var gotStatus resource.LoadStatus
	err := m.LoadAssetAsync("ui/broken.png", asset.TypeImage, 0, resource.LoadAssetCallbacks{
		OnSuccess: func(string, interface{}, float64, interface{}) { successes.Add(1) },
		OnFailure: func(_ string, status resource.LoadStatus, _ string, _ interface{}) {
			gotStatus = status
			failures.Add(1)
		},
	}, nil)
	require.NoError(t, err)

	pumpUntil(t, m, &failures, 1)
	pumpIdle(m)
	assert.Equal(t, int32(1), failures.Load())
	assert.Equal(t, int32(0), successes.Load())
	assert.Equal(t, resource.LoadStatusNotReady, gotStatus)
}

func TestLoadAssetAsyncArgumentValidation(t *testing.T) {
	pkg := newFakePackage("DefaultPackage")
	pkg.addAsset("ui/welcome.txt", asset.TypeText)
	m := newModule(t, newFakeEngine(pkg))
	require.True(t, m.InitPackage("DefaultPackage"))

	cb := resource.LoadAssetCallbacks{
		OnSuccess: func(string, interface{}, float64, interface{}) {},
	}

	err := m.LoadAssetAsync("", asset.TypeText, 0, cb, nil)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	err = m.LoadAssetAsync("ui/welcome.txt", asset.TypeText, 0, resource.LoadAssetCallbacks{}, nil)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	// Validation runs before any engine lookup.
	assert.Equal(t, 0, pkg.lookups)
}

func TestLoadSubAssetsUnimplemented(t *testing.T) {
	pkg := newFakePackage("DefaultPackage")
	pkg.addAsset("models/hero.glb", asset.TypeModel)
	m := newModule(t, newFakeEngine(pkg))
	require.True(t, m.InitPackage("DefaultPackage"))

	err := m.LoadSubAssetsAsync("models/hero.glb", asset.TypeModel, 0, resource.LoadAssetCallbacks{
		OnSuccess: func(string, interface{}, float64, interface{}) {},
	}, nil)
	assert.ErrorIs(t, err, core.ErrNotImplemented)

	err = m.LoadSubAssetsAsync("", asset.TypeModel, 0, resource.LoadAssetCallbacks{}, nil)
	assert.ErrorIs(t, err, core.ErrInvalidArgument, "argument validation still applies")

	_, err = m.LoadSubAssetsSync("models/hero.glb", asset.TypeModel)
	assert.ErrorIs(t, err, core.ErrNotImplemented)
}

func TestLoadSceneCallbacks(t *testing.T) {
	engine := newFakeEngine(newFakePackage("DefaultPackage"))
	engine.scenes["town/square.scene"] = true
	m := newModule(t, engine)
	require.True(t, m.InitPackage("DefaultPackage"))

	var successes, failures atomic.Int32
	var gotHandle *packages.SceneHandle
	err := m.LoadScene("town/square.scene", 0, resource.LoadSceneCallbacks{
		OnSuccess: func(name string, handle *packages.SceneHandle, duration float64, _ interface{}) {
			assert.Equal(t, "town/square.scene", name)
			gotHandle = handle
			successes.Add(1)
		},
		OnFailure: func(string, string, interface{}) { failures.Add(1) },
	}, nil)
	require.NoError(t, err)

	pumpUntil(t, m, &successes, 1)
	pumpIdle(m)
	assert.Equal(t, int32(0), failures.Load())
	require.NotNil(t, gotHandle)
	assert.True(t, gotHandle.IsActivated)

	// A scene the engine cannot find reports through the failure callback.
	var missing atomic.Int32
	var gotMessage string
	err = m.LoadScene("town/missing.scene", 0, resource.LoadSceneCallbacks{
		OnSuccess: func(string, *packages.SceneHandle, float64, interface{}) { successes.Add(1) },
		OnFailure: func(_ string, message string, _ interface{}) {
			gotMessage = message
			missing.Add(1)
		},
	}, nil)
	require.NoError(t, err)

	pumpUntil(t, m, &missing, 1)
	assert.Contains(t, gotMessage, "town/missing.scene")
	assert.Equal(t, int32(1), successes.Load())
}

func TestUnloadSceneActivationFlag(t *testing.T) {
	engine := newFakeEngine(newFakePackage("DefaultPackage"))
	engine.scenes["town/square.scene"] = true
	engine.current = "town/square.scene"
	m := newModule(t, engine)
	require.True(t, m.InitPackage("DefaultPackage"))

	var successes, failures atomic.Int32
	err := m.UnloadScene("town/square.scene", resource.UnloadSceneCallbacks{
		OnSuccess: func(string, interface{}) { successes.Add(1) },
		OnFailure: func(string, interface{}) { failures.Add(1) },
	}, nil)
	require.NoError(t, err)
	pumpUntil(t, m, &successes, 1)
	assert.Equal(t, int32(0), failures.Load())

	// The scene is no longer current: activation is denied.
	err = m.UnloadScene("town/square.scene", resource.UnloadSceneCallbacks{
		OnSuccess: func(string, interface{}) { successes.Add(1) },
		OnFailure: func(string, interface{}) { failures.Add(1) },
	}, nil)
	require.NoError(t, err)
	pumpUntil(t, m, &failures, 1)
	assert.Equal(t, int32(1), successes.Load())
}

func TestUnloadForwarding(t *testing.T) {
	ready := newFakePackage("DefaultPackage")
	ready.addAsset("ui/welcome.txt", asset.TypeText)
	m := newModule(t, newFakeEngine(ready))
	require.True(t, m.InitPackage("DefaultPackage"))

	m.UnloadUnusedAssets()
	m.ForceUnloadAllAssets()
	assert.Equal(t, 1, ready.unloadUnused)
	assert.Equal(t, 1, ready.forceUnload)

	obj := &loaders.Asset{Info: ready.infos["ui/welcome.txt"]}
	require.NoError(t, m.UnloadAsset(obj))
	assert.Equal(t, 1, ready.released)

	assert.ErrorIs(t, m.UnloadAsset("not an asset"), core.ErrNotImplemented)
	assert.ErrorIs(t, m.UnloadAsset(nil), core.ErrInvalidArgument)
}

func TestModuleLifecycle(t *testing.T) {
	engine := newFakeEngine(newFakePackage("DefaultPackage"))
	m := resource.New(engine, nil)
	require.NoError(t, m.Initialize())
	assert.ErrorIs(t, m.Initialize(), core.ErrAlreadyInitialized)

	require.True(t, m.InitPackage("DefaultPackage"))
	require.NoError(t, m.Shutdown())
	assert.True(t, engine.destroyed)
	assert.False(t, m.HasPackage("DefaultPackage"))
}
