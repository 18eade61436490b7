package packages

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spaghettifunk/quiver/engine/asset"
	"github.com/spaghettifunk/quiver/engine/asset/loaders"
	"github.com/spaghettifunk/quiver/engine/core"
	"github.com/spaghettifunk/quiver/engine/jobs"
)

type State uint8

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	// Terminal. A failed package is never retried automatically.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "uninitialized"
	}
}

type resident struct {
	asset *loaders.Asset
	refs  int
}

// Package is one named, independently initialized unit of asset resolution.
type Package struct {
	name     string
	jobs     *jobs.System
	registry *loaders.Registry
	ctx      context.Context

	mu          sync.RWMutex
	state       State
	mode        PlayMode
	version     string
	manifest    *asset.Manifest
	params      InitParameters
	buildinDir  string
	sandboxDir  string
	simulateDir string
	downloader  *Downloader
	watcher     *simulateWatcher
	residents   map[string]*resident
}

func newPackage(ctx context.Context, name string, js *jobs.System, registry *loaders.Registry) *Package {
	return &Package{
		name:      name,
		jobs:      js,
		registry:  registry,
		ctx:       ctx,
		residents: make(map[string]*resident),
	}
}

func (p *Package) Name() string {
	return p.name
}

func (p *Package) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

func (p *Package) Ready() bool {
	return p.State() == StateReady
}

func (p *Package) PlayMode() PlayMode {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.mode
}

func (p *Package) Version() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.version
}

// InitializeAsync starts the package's asynchronous initialization. Only an
// uninitialized package accepts it; anything else resolves the operation as
// failed without side effects.
func (p *Package) InitializeAsync(params InitParameters) *InitOperation {
	op := NewInitOperation()

	p.mu.Lock()
	if p.state != StateUninitialized {
		state := p.state
		p.mu.Unlock()
		op.Fail(fmt.Errorf("package '%s' is %s: %w", p.name, state, core.ErrAlreadyInitialized))
		return op
	}
	p.state = StateInitializing
	p.mode = params.PlayMode
	p.params = params
	p.buildinDir = filepath.Join(params.BuildinRoot, p.name)
	p.sandboxDir = filepath.Join(params.SandboxRoot, p.name)
	p.simulateDir = params.SimulateAssetDir
	p.mu.Unlock()

	p.jobs.Submit(jobs.Task{
		OnStart: func() (interface{}, error) {
			return p.initialize(params)
		},
		OnComplete: func(result interface{}) {
			m := result.(*asset.Manifest)
			p.mu.Lock()
			p.manifest = m
			p.version = m.PackageVersion
			p.state = StateReady
			p.mu.Unlock()
			core.LogInfo("package '%s' initialized in %s mode, version '%s', %d assets",
				p.name, params.PlayMode, m.PackageVersion, len(m.Assets))
			op.Complete(m.PackageVersion)
		},
		OnFailure: func(err error) {
			p.mu.Lock()
			p.state = StateFailed
			p.mu.Unlock()
			op.Fail(err)
		},
	})
	return op
}

func (p *Package) initialize(params InitParameters) (*asset.Manifest, error) {
	switch params.PlayMode {
	case PlayModeSimulate:
		if params.SimulateAssetDir == "" {
			return nil, fmt.Errorf("simulate mode needs an asset directory: %w", core.ErrInvalidArgument)
		}
		packer := &asset.Packer{
			SrcDir:      params.SimulateAssetDir,
			PackageName: p.name,
			Version:     "simulate",
		}
		m, err := packer.Build()
		if err != nil {
			return nil, err
		}
		w, err := newSimulateWatcher(params.SimulateAssetDir, p.rescanSimulateDir)
		if err != nil {
			core.LogWarn("package '%s': simulate watcher unavailable: %v", p.name, err)
		} else {
			p.mu.Lock()
			p.watcher = w
			p.mu.Unlock()
		}
		return m, nil

	case PlayModeOffline:
		return asset.LoadManifest(filepath.Join(p.buildinDir, asset.ManifestFileName))

	case PlayModeHostOnline, PlayModeWebOnline:
		if params.Remote == nil {
			return nil, fmt.Errorf("%s mode needs remote services: %w", params.PlayMode, core.ErrInvalidArgument)
		}
		p.mu.Lock()
		p.downloader = NewDownloader(p.name, params.Remote, params.MaxConcurrentDownloads, params.FailedTryAgain, params.VerifyLevel)
		p.mu.Unlock()
		// A previously downloaded manifest in the sandbox wins over the one
		// that shipped with the build.
		sandboxManifest := filepath.Join(p.sandboxDir, asset.ManifestFileName)
		if _, err := os.Stat(sandboxManifest); err == nil {
			return asset.LoadManifest(sandboxManifest)
		}
		return asset.LoadManifest(filepath.Join(p.buildinDir, asset.ManifestFileName))

	default:
		return nil, fmt.Errorf("unknown play mode %d: %w", params.PlayMode, core.ErrInvalidArgument)
	}
}

// rescanSimulateDir rebuilds the synthetic manifest after the watcher saw
// the asset directory change.
func (p *Package) rescanSimulateDir() {
	packer := &asset.Packer{
		SrcDir:      p.simulateDir,
		PackageName: p.name,
		Version:     "simulate",
	}
	m, err := packer.Build()
	if err != nil {
		core.LogError("package '%s': simulate rescan failed: %v", p.name, err)
		return
	}
	p.mu.Lock()
	p.manifest = m
	p.mu.Unlock()
}

// GetAssetInfo returns the descriptor for a location, nil when it is not
// registered in the manifest.
func (p *Package) GetAssetInfo(location string) *asset.AssetInfo {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.manifest == nil {
		return nil
	}
	return p.manifest.Lookup(location)
}

// GetAssetInfosByTags collects descriptors carrying any of the given tags.
func (p *Package) GetAssetInfosByTags(tags ...string) []*asset.AssetInfo {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.manifest == nil {
		return nil
	}
	return p.manifest.ByTags(tags...)
}

// CheckLocationValid reports whether the location is structurally sound and
// registered in the manifest.
func (p *Package) CheckLocationValid(location string) bool {
	if !asset.CheckLocationSyntax(location) {
		return false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.manifest != nil && p.manifest.Lookup(location) != nil
}

// IsNeedDownloadFromRemote reports whether the asset must be fetched from
// the remote host before use.
func (p *Package) IsNeedDownloadFromRemote(info *asset.AssetInfo) bool {
	if info == nil {
		return false
	}
	p.mu.RLock()
	mode := p.mode
	params := p.params
	buildinDir := p.buildinDir
	sandboxDir := p.sandboxDir
	verify := p.params.VerifyLevel
	p.mu.RUnlock()

	if !mode.IsOnline() {
		return false
	}
	if info.Embedded {
		return false
	}
	if params.BuildinQuery != nil && params.BuildinQuery.Query(p.name, info.FileName) {
		return false
	}
	if _, err := os.Stat(filepath.Join(buildinDir, filepath.FromSlash(info.FileName))); err == nil {
		return false
	}
	if err := VerifyLocalFile(filepath.Join(sandboxDir, filepath.FromSlash(info.FileName)), info, verify); err == nil {
		return false
	}
	return true
}

// LoadAssetAsync starts loading the described asset. Loads of an asset that
// is already resident resolve immediately against the resident object.
// Priority above zero jumps the queue.
func (p *Package) LoadAssetAsync(info *asset.AssetInfo, priority int) *AssetHandle {
	handle := NewAssetHandle(info.Location)

	if !p.Ready() {
		handle.Fail(fmt.Errorf("package '%s' is %s, not ready: %w", p.name, p.State(), core.ErrOperationFailed))
		return handle
	}

	p.mu.Lock()
	if r, ok := p.residents[info.Location]; ok {
		r.refs++
		p.mu.Unlock()
		handle.Complete(r.asset)
		return handle
	}
	p.mu.Unlock()

	taskPriority := jobs.PriorityNormal
	if priority > 0 {
		taskPriority = jobs.PriorityHigh
	}
	p.jobs.Submit(jobs.Task{
		Priority: taskPriority,
		OnStart: func() (interface{}, error) {
			return p.loadAsset(info)
		},
		OnComplete: func(result interface{}) {
			a := result.(*loaders.Asset)
			p.mu.Lock()
			if r, ok := p.residents[info.Location]; ok {
				// A concurrent load won the race; reuse its object.
				r.refs++
				a = r.asset
			} else {
				p.residents[info.Location] = &resident{asset: a, refs: 1}
			}
			p.mu.Unlock()
			handle.Complete(a)
		},
		OnFailure: func(err error) {
			handle.Fail(err)
		},
	})
	return handle
}

// loadAsset runs the locate → verify → decrypt → decode pipeline on a worker.
func (p *Package) loadAsset(info *asset.AssetInfo) (*loaders.Asset, error) {
	clock := core.NewClock()
	clock.Start()

	path, err := p.locate(info)
	if err != nil {
		core.MetricsRecordLoad(clock.ElapsedSeconds(), false)
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		core.MetricsRecordLoad(clock.ElapsedSeconds(), false)
		return nil, fmt.Errorf("failed to read asset '%s': %w", info.Location, err)
	}

	p.mu.RLock()
	decrypt := p.params.Decryption
	p.mu.RUnlock()
	if decrypt != nil {
		if data, err = decrypt.Decrypt(info, data); err != nil {
			core.MetricsRecordLoad(clock.ElapsedSeconds(), false)
			return nil, err
		}
	}

	a, err := p.registry.Load(info, data)
	core.MetricsRecordLoad(clock.ElapsedSeconds(), err == nil)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// locate resolves the on-disk path of an asset file, downloading it to the
// sandbox when the play mode allows it.
func (p *Package) locate(info *asset.AssetInfo) (string, error) {
	p.mu.RLock()
	mode := p.mode
	simulateDir := p.simulateDir
	buildinDir := p.buildinDir
	sandboxDir := p.sandboxDir
	verify := p.params.VerifyLevel
	downloader := p.downloader
	p.mu.RUnlock()

	if mode == PlayModeSimulate {
		return filepath.Join(simulateDir, filepath.FromSlash(info.Location)), nil
	}

	buildinPath := filepath.Join(buildinDir, filepath.FromSlash(info.FileName))
	if _, err := os.Stat(buildinPath); err == nil {
		return buildinPath, nil
	}

	sandboxPath := filepath.Join(sandboxDir, filepath.FromSlash(info.FileName))
	if err := VerifyLocalFile(sandboxPath, info, verify); err == nil {
		return sandboxPath, nil
	}

	if mode.IsOnline() && downloader != nil {
		return downloader.Fetch(p.ctx, info, sandboxDir)
	}
	return "", fmt.Errorf("asset file '%s' of package '%s' is not on disk: %w", info.FileName, p.name, core.ErrNotFound)
}

// ReleaseAsset drops one reference to a resident asset.
func (p *Package) ReleaseAsset(a *loaders.Asset) {
	if a == nil || a.Info == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if r, ok := p.residents[a.Info.Location]; ok && r.refs > 0 {
		r.refs--
	}
}

// UnloadUnusedAssets drops every resident asset without references.
func (p *Package) UnloadUnusedAssets() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for location, r := range p.residents {
		if r.refs <= 0 {
			delete(p.residents, location)
		}
	}
}

// ForceUnloadAllAssets drops every resident asset regardless of references.
// Unavailable on the web target.
func (p *Package) ForceUnloadAllAssets() {
	if p.PlayMode() == PlayModeWebOnline {
		core.LogWarn("package '%s': ForceUnloadAllAssets is not supported on the web target", p.name)
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.residents = make(map[string]*resident)
}

// ResidentCount reports how many loaded assets the package keeps in memory.
func (p *Package) ResidentCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.residents)
}

func (p *Package) destroy() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.watcher != nil {
		p.watcher.close()
		p.watcher = nil
	}
	p.residents = make(map[string]*resident)
	p.manifest = nil
	p.state = StateUninitialized
}
