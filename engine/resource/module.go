package resource

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spaghettifunk/quiver/engine/asset"
	"github.com/spaghettifunk/quiver/engine/asset/loaders"
	"github.com/spaghettifunk/quiver/engine/core"
	"github.com/spaghettifunk/quiver/engine/jobs"
	"github.com/spaghettifunk/quiver/engine/packages"
)

// Module is the resource facade of the framework: it owns named packages,
// forwards queries and loads to the engine context it was built with, and
// adapts operation handles into the framework's callback pairs. Callbacks
// fire on the thread that calls Update.
type Module struct {
	cfg    *Config
	engine AssetEngine
	pump   *jobs.Pump
	cache  *descriptorCache

	mu          sync.RWMutex
	packages    map[string]AssetPackage
	defaultPkg  AssetPackage
	initialized bool
}

// New builds a module over an explicit engine context.
func New(engine AssetEngine, cfg *Config) *Module {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.DefaultPackageName == "" {
		cfg.DefaultPackageName = DefaultPackage
	}
	return &Module{
		cfg:      cfg,
		engine:   engine,
		pump:     jobs.NewPump(64),
		cache:    newDescriptorCache(),
		packages: make(map[string]AssetPackage),
	}
}

// NewModule builds a module backed by a real package engine.
func NewModule(cfg *Config) (*Module, error) {
	engine, err := packages.NewEngine(nil)
	if err != nil {
		return nil, err
	}
	return New(packageEngine{engine: engine}, cfg), nil
}

// Initialize must be called exactly once before any other operation. It
// arms the callback pump with the configured per-frame budget.
func (m *Module) Initialize() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.initialized {
		return fmt.Errorf("resource module: %w", core.ErrAlreadyInitialized)
	}
	core.EventInitialize()
	if err := core.MetricsInitialize(); err != nil {
		return err
	}
	m.pump.SetBudget(time.Duration(m.cfg.FrameBudgetMS) * time.Millisecond)
	m.initialized = true
	core.LogInfo("resource module initialized, default package '%s', play mode %s", m.cfg.DefaultPackageName, m.cfg.PlayMode)
	return nil
}

// Update dispatches pending callbacks within the frame budget. Call once
// per frame from the main update thread.
func (m *Module) Update() {
	m.pump.Update()
}

// InitPackage creates and initializes the named package with parameters
// built from the module configuration. It reports true only when the
// underlying init operation succeeded. A name that is already registered is
// an error and returns false without side effects.
func (m *Module) InitPackage(packageName string) bool {
	if strings.TrimSpace(packageName) == "" {
		core.LogError("InitPackage: package name must not be empty")
		return false
	}

	m.mu.RLock()
	_, exists := m.packages[packageName]
	m.mu.RUnlock()
	if exists {
		core.LogError("InitPackage: package '%s' is already initialized", packageName)
		return false
	}

	pkg, err := m.engine.CreatePackage(packageName)
	if err != nil {
		core.LogError("InitPackage: failed to create package '%s': %v", packageName, err)
		return false
	}

	op := pkg.InitializeAsync(m.cfg.buildInitParameters())
	op.Wait()
	if op.Status != packages.StatusSucceeded {
		core.LogError("InitPackage: package '%s' failed to initialize: %v", packageName, op.Error)
		m.firePackageInitialized(packageName, op.PackageVersion, false)
		return false
	}

	m.mu.Lock()
	m.packages[packageName] = pkg
	if packageName == m.cfg.DefaultPackageName {
		m.defaultPkg = pkg
	}
	m.mu.Unlock()

	m.firePackageInitialized(packageName, op.PackageVersion, true)
	return true
}

// HasPackage reports whether the named package initialized successfully.
func (m *Module) HasPackage(packageName string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.packages[m.resolveName(packageName)]
	return ok
}

// IsNeedDownloadFromRemote reports whether the located asset must be
// fetched from the remote host before use. Unknown locations report false.
func (m *Module) IsNeedDownloadFromRemote(location string, packageName ...string) (bool, error) {
	if err := validateLocation(location); err != nil {
		return false, err
	}
	pkg, err := m.getPackage(packageName...)
	if err != nil {
		return false, err
	}
	info := pkg.GetAssetInfo(location)
	if info == nil {
		return false, nil
	}
	return pkg.IsNeedDownloadFromRemote(info), nil
}

// IsNeedDownloadFromRemoteInfo is the descriptor overload.
func (m *Module) IsNeedDownloadFromRemoteInfo(info *asset.AssetInfo, packageName ...string) (bool, error) {
	if info == nil {
		return false, fmt.Errorf("asset info must not be nil: %w", core.ErrInvalidArgument)
	}
	pkg, err := m.getPackage(packageName...)
	if err != nil {
		return false, err
	}
	return pkg.IsNeedDownloadFromRemote(info), nil
}

// GetAssetInfos returns every descriptor carrying any of the given tags.
// Results are not cached.
func (m *Module) GetAssetInfos(tags []string, packageName ...string) ([]*asset.AssetInfo, error) {
	if len(tags) == 0 {
		return nil, fmt.Errorf("at least one tag is required: %w", core.ErrInvalidArgument)
	}
	pkg, err := m.getPackage(packageName...)
	if err != nil {
		return nil, err
	}
	return pkg.GetAssetInfosByTags(tags...), nil
}

// GetAssetInfo resolves one descriptor through the cache. Negative answers
// are cached as well: a location once reported missing stays missing until
// InvalidateDescriptorCache.
func (m *Module) GetAssetInfo(location string, packageName ...string) (*asset.AssetInfo, error) {
	if err := validateLocation(location); err != nil {
		return nil, err
	}
	name := m.resolveName(packageName...)
	if info, ok := m.cache.Get(name, location); ok {
		return info, nil
	}
	pkg, err := m.getPackage(packageName...)
	if err != nil {
		return nil, err
	}
	info := pkg.GetAssetInfo(location)
	m.cache.Put(name, location, info)
	return info, nil
}

// InvalidateDescriptorCache turns every cached descriptor lookup stale, so
// the next query asks the engine again.
func (m *Module) InvalidateDescriptorCache() {
	m.cache.Invalidate()
}

// HasAsset classifies the availability of a located asset.
//
// The location validity check runs first and short-circuits to
// HasResultValid before existence is considered. That precedence is the
// contract callers rely on; do not reorder.
func (m *Module) HasAsset(location string, packageName ...string) (HasResult, error) {
	if err := validateLocation(location); err != nil {
		return HasResultValid, err
	}
	pkg, err := m.getPackage(packageName...)
	if err != nil {
		return HasResultValid, err
	}
	if !pkg.CheckLocationValid(location) {
		return HasResultValid, nil
	}
	info, err := m.GetAssetInfo(location, packageName...)
	if err != nil {
		return HasResultValid, err
	}
	if info == nil {
		return HasResultNotExist, nil
	}
	if pkg.IsNeedDownloadFromRemote(info) {
		return HasResultAssetOnline, nil
	}
	return HasResultAssetOnDisk, nil
}

// CheckLocationValid reports whether the location is syntactically sound
// and registered.
func (m *Module) CheckLocationValid(location string, packageName ...string) (bool, error) {
	if err := validateLocation(location); err != nil {
		return false, err
	}
	pkg, err := m.getPackage(packageName...)
	if err != nil {
		return false, err
	}
	return pkg.CheckLocationValid(location), nil
}

// LoadAssetAsync starts loading an asset from the default package and
// reports the outcome through the callback pair. Exactly one callback runs,
// exactly once, on the Update thread. Argument errors are returned
// synchronously and no callback runs. When the asset does not exist and no
// failure callback was supplied, the error is returned instead.
func (m *Module) LoadAssetAsync(location string, assetType asset.Type, priority int, callbacks LoadAssetCallbacks, userData interface{}) error {
	if err := validateLocation(location); err != nil {
		return err
	}
	if callbacks.OnSuccess == nil && callbacks.OnFailure == nil {
		return fmt.Errorf("load asset callbacks are required: %w", core.ErrInvalidArgument)
	}

	clock := core.NewClock()
	clock.Start()

	info, err := m.GetAssetInfo(location)
	if err != nil {
		return err
	}
	if info == nil {
		message := fmt.Sprintf("can not load asset '%s', because it does not exist", location)
		if callbacks.OnFailure == nil {
			return fmt.Errorf("%s: %w", message, core.ErrNotFound)
		}
		m.pump.Enqueue(func() {
			callbacks.OnFailure(location, LoadStatusNotExist, message, userData)
		})
		return nil
	}
	if assetType != asset.TypeNone && info.AssetType != assetType {
		core.LogWarn("asset '%s' is registered as %s, requested as %s", location, info.AssetType, assetType)
	}

	pkg, err := m.getPackage()
	if err != nil {
		return err
	}
	handle := pkg.LoadAssetAsync(info, priority)
	go func() {
		handle.Wait()
		if handle.Status != packages.StatusSucceeded || handle.AssetObject == nil {
			message := fmt.Sprintf("failed to load asset '%s': %v", location, handle.Error)
			if callbacks.OnFailure == nil {
				core.LogError(message)
				return
			}
			m.pump.Enqueue(func() {
				callbacks.OnFailure(location, LoadStatusNotReady, message, userData)
			})
			return
		}
		duration := clock.ElapsedSeconds()
		m.fireAssetLoaded(info.PackageName, location, duration)
		if callbacks.OnSuccess != nil {
			m.pump.Enqueue(func() {
				callbacks.OnSuccess(location, handle.AssetObject, duration, userData)
			})
		}
	}()
	return nil
}

// PreloadAssetAsync warms an asset into residency without callbacks.
func (m *Module) PreloadAssetAsync(location string, priority int) error {
	if err := validateLocation(location); err != nil {
		return err
	}
	info, err := m.GetAssetInfo(location)
	if err != nil {
		return err
	}
	if info == nil {
		return fmt.Errorf("can not preload asset '%s': %w", location, core.ErrNotFound)
	}
	pkg, err := m.getPackage()
	if err != nil {
		return err
	}
	pkg.LoadAssetAsync(info, priority)
	return nil
}

// LoadAsset synchronously loads an asset and returns the decoded object.
func (m *Module) LoadAsset(location string, assetType asset.Type, packageName ...string) (*loaders.Asset, error) {
	if err := validateLocation(location); err != nil {
		return nil, err
	}
	info, err := m.GetAssetInfo(location, packageName...)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, fmt.Errorf("asset '%s': %w", location, core.ErrNotFound)
	}
	if assetType != asset.TypeNone && info.AssetType != assetType {
		core.LogWarn("asset '%s' is registered as %s, requested as %s", location, info.AssetType, assetType)
	}
	pkg, err := m.getPackage(packageName...)
	if err != nil {
		return nil, err
	}
	handle := pkg.LoadAssetAsync(info, 0)
	handle.Wait()
	if handle.Status != packages.StatusSucceeded || handle.AssetObject == nil {
		return nil, fmt.Errorf("failed to load asset '%s': %w", location, core.ErrOperationFailed)
	}
	return handle.AssetObject, nil
}

// LoadSubAssetsAsync is declared for API parity but has no behavior yet.
func (m *Module) LoadSubAssetsAsync(location string, assetType asset.Type, priority int, callbacks LoadAssetCallbacks, userData interface{}) error {
	if err := validateLocation(location); err != nil {
		return err
	}
	return fmt.Errorf("LoadSubAssetsAsync: %w", core.ErrNotImplemented)
}

// LoadSubAssetsSync is declared for API parity but has no behavior yet.
func (m *Module) LoadSubAssetsSync(location string, assetType asset.Type) ([]*loaders.Asset, error) {
	if err := validateLocation(location); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("LoadSubAssetsSync: %w", core.ErrNotImplemented)
}

// LoadScene starts an asynchronous scene load. Scene loads always replace
// the current scene.
func (m *Module) LoadScene(sceneAssetName string, priority int, callbacks LoadSceneCallbacks, userData interface{}) error {
	if err := validateLocation(sceneAssetName); err != nil {
		return err
	}
	if callbacks.OnSuccess == nil && callbacks.OnFailure == nil {
		return fmt.Errorf("load scene callbacks are required: %w", core.ErrInvalidArgument)
	}

	clock := core.NewClock()
	clock.Start()

	handle := m.engine.LoadSceneAsync(sceneAssetName, priority)
	go func() {
		handle.Wait()
		if handle.Status != packages.StatusSucceeded {
			message := fmt.Sprintf("failed to load scene '%s': %v", sceneAssetName, handle.Error)
			if callbacks.OnFailure == nil {
				core.LogError(message)
				return
			}
			m.pump.Enqueue(func() {
				callbacks.OnFailure(sceneAssetName, message, userData)
			})
			return
		}
		duration := clock.ElapsedSeconds()
		m.fireSceneLoaded(sceneAssetName)
		if callbacks.OnSuccess != nil {
			m.pump.Enqueue(func() {
				callbacks.OnSuccess(sceneAssetName, handle, duration, userData)
			})
		}
	}()
	return nil
}

// UnloadScene unloads the named scene on a background task. The success
// callback runs iff the unloaded scene's activation flag was set.
func (m *Module) UnloadScene(sceneAssetName string, callbacks UnloadSceneCallbacks, userData interface{}) error {
	if err := validateLocation(sceneAssetName); err != nil {
		return err
	}
	if callbacks.OnSuccess == nil && callbacks.OnFailure == nil {
		return fmt.Errorf("unload scene callbacks are required: %w", core.ErrInvalidArgument)
	}

	op := m.engine.UnloadSceneAsync(sceneAssetName)
	go func() {
		op.Wait()
		allowed := op.Status == packages.StatusSucceeded && op.AllowSceneActivation
		m.fireSceneUnloaded(sceneAssetName, allowed)
		if allowed {
			if callbacks.OnSuccess != nil {
				m.pump.Enqueue(func() {
					callbacks.OnSuccess(sceneAssetName, userData)
				})
			}
			return
		}
		if callbacks.OnFailure != nil {
			m.pump.Enqueue(func() {
				callbacks.OnFailure(sceneAssetName, userData)
			})
		}
	}()
	return nil
}

// UnloadUnusedAssets releases unreferenced resident assets in every package
// whose initialization succeeded.
func (m *Module) UnloadUnusedAssets() {
	for _, pkg := range m.readyPackages() {
		pkg.UnloadUnusedAssets()
	}
}

// ForceUnloadAllAssets releases every resident asset in every package whose
// initialization succeeded.
func (m *Module) ForceUnloadAllAssets() {
	for _, pkg := range m.readyPackages() {
		pkg.ForceUnloadAllAssets()
	}
}

// UnloadAsset releases one loaded asset object.
func (m *Module) UnloadAsset(obj interface{}) error {
	if obj == nil {
		return fmt.Errorf("asset object must not be nil: %w", core.ErrInvalidArgument)
	}
	a, ok := obj.(*loaders.Asset)
	if !ok {
		return fmt.Errorf("unloading %T: %w", obj, core.ErrNotImplemented)
	}
	pkg, err := m.getPackage(a.Info.PackageName)
	if err != nil {
		return err
	}
	pkg.ReleaseAsset(a)
	return nil
}

// Shutdown tears down the engine context and every package. No other
// operation is valid afterwards.
func (m *Module) Shutdown() error {
	m.mu.Lock()
	m.packages = make(map[string]AssetPackage)
	m.defaultPkg = nil
	m.initialized = false
	m.mu.Unlock()

	m.cache.Invalidate()
	if err := m.engine.Destroy(); err != nil {
		return err
	}
	return core.EventShutdown()
}

func validateLocation(location string) error {
	if strings.TrimSpace(location) == "" {
		return fmt.Errorf("location must not be empty: %w", core.ErrInvalidArgument)
	}
	return nil
}

func (m *Module) resolveName(packageName ...string) string {
	if len(packageName) > 0 && packageName[0] != "" {
		return packageName[0]
	}
	return m.cfg.DefaultPackageName
}

func (m *Module) getPackage(packageName ...string) (AssetPackage, error) {
	name := m.resolveName(packageName...)
	m.mu.RLock()
	if name == m.cfg.DefaultPackageName && m.defaultPkg != nil {
		pkg := m.defaultPkg
		m.mu.RUnlock()
		return pkg, nil
	}
	pkg, ok := m.packages[name]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("package '%s': %w", name, core.ErrNotFound)
	}
	return pkg, nil
}

func (m *Module) readyPackages() []AssetPackage {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]AssetPackage, 0, len(m.packages))
	for _, pkg := range m.packages {
		if pkg.Ready() {
			out = append(out, pkg)
		}
	}
	return out
}

func (m *Module) firePackageInitialized(packageName, version string, succeeded bool) {
	ctx := core.EventContext{}
	ctx.Data.S[0] = packageName
	ctx.Data.S[1] = version
	ctx.Data.B[0] = succeeded
	core.EventFire(core.EVENT_CODE_PACKAGE_INITIALIZED, m, ctx)
}

func (m *Module) fireAssetLoaded(packageName, location string, duration float64) {
	ctx := core.EventContext{}
	ctx.Data.S[0] = packageName
	ctx.Data.S[1] = location
	ctx.Data.F64[0] = duration
	core.EventFire(core.EVENT_CODE_ASSET_LOADED, m, ctx)
}

func (m *Module) fireSceneLoaded(sceneAssetName string) {
	ctx := core.EventContext{}
	ctx.Data.S[0] = sceneAssetName
	core.EventFire(core.EVENT_CODE_SCENE_LOADED, m, ctx)
}

func (m *Module) fireSceneUnloaded(sceneAssetName string, allowed bool) {
	ctx := core.EventContext{}
	ctx.Data.S[0] = sceneAssetName
	ctx.Data.B[0] = allowed
	core.EventFire(core.EVENT_CODE_SCENE_UNLOADED, m, ctx)
}
