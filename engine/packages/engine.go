package packages

import (
	"context"
	"fmt"
	"sync"

	"github.com/spaghettifunk/quiver/engine/asset"
	"github.com/spaghettifunk/quiver/engine/asset/loaders"
	"github.com/spaghettifunk/quiver/engine/core"
	"github.com/spaghettifunk/quiver/engine/jobs"
)

type EngineConfig struct {
	// Number of load workers. Defaults to 4.
	WorkerCount int
	// Capacity of each job queue. Defaults to 64.
	JobQueueSize int
}

// Engine is the explicitly owned context every package lives in. There is
// no process-wide instance; the resource module receives one at
// construction, which keeps it swappable in tests.
type Engine struct {
	jobs     *jobs.System
	registry *loaders.Registry
	ctx      context.Context
	cancel   context.CancelFunc

	mu           sync.RWMutex
	packages     map[string]*Package
	currentScene *SceneHandle
	destroyed    bool
}

func NewEngine(cfg *EngineConfig) (*Engine, error) {
	if cfg == nil {
		cfg = &EngineConfig{}
	}
	workers := cfg.WorkerCount
	if workers <= 0 {
		workers = 4
	}
	queueSize := cfg.JobQueueSize
	if queueSize <= 0 {
		queueSize = 64
	}

	js, err := jobs.NewSystem(workers, queueSize)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		jobs:     js,
		registry: loaders.NewRegistry(),
		ctx:      ctx,
		cancel:   cancel,
		packages: make(map[string]*Package),
	}, nil
}

// Registry exposes the loader registry so games can install custom decoders.
func (e *Engine) Registry() *loaders.Registry {
	return e.registry
}

// CreatePackage returns the package registered under name, creating it on
// first use. Get-or-create; a package whose initialization failed is
// terminal, so its name is taken over by a fresh object.
func (e *Engine) CreatePackage(name string) (*Package, error) {
	if name == "" {
		return nil, fmt.Errorf("package name must not be empty: %w", core.ErrInvalidArgument)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed {
		return nil, fmt.Errorf("engine is destroyed: %w", core.ErrOperationFailed)
	}
	if p, ok := e.packages[name]; ok && p.State() != StateFailed {
		return p, nil
	}
	p := newPackage(e.ctx, name, e.jobs, e.registry)
	e.packages[name] = p
	return p, nil
}

func (e *Engine) TryGetPackage(name string) (*Package, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	p, ok := e.packages[name]
	return p, ok
}

func (e *Engine) GetPackage(name string) (*Package, error) {
	if p, ok := e.TryGetPackage(name); ok {
		return p, nil
	}
	return nil, fmt.Errorf("package '%s': %w", name, core.ErrNotFound)
}

// Packages returns a snapshot of every registered package.
func (e *Engine) Packages() []*Package {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*Package, 0, len(e.packages))
	for _, p := range e.packages {
		out = append(out, p)
	}
	return out
}

// LoadSceneAsync loads a scene asset and replaces the current scene with it.
// The previous scene's asset reference is dropped once the new scene is up.
func (e *Engine) LoadSceneAsync(sceneAssetName string, priority int) *SceneHandle {
	handle := NewSceneHandle(sceneAssetName)

	pkg, info := e.findSceneAsset(sceneAssetName)
	if info == nil {
		handle.Fail(fmt.Errorf("scene asset '%s' is not registered in any ready package: %w", sceneAssetName, core.ErrNotFound))
		return handle
	}

	taskPriority := jobs.PriorityNormal
	if priority > 0 {
		taskPriority = jobs.PriorityHigh
	}
	e.jobs.Submit(jobs.Task{
		Priority: taskPriority,
		OnStart: func() (interface{}, error) {
			return pkg.loadAsset(info)
		},
		OnComplete: func(result interface{}) {
			a := result.(*loaders.Asset)
			e.mu.Lock()
			previous := e.currentScene
			e.currentScene = handle
			e.mu.Unlock()
			if previous != nil {
				core.LogDebug("scene '%s' replaced by '%s'", previous.SceneName, sceneAssetName)
			}
			handle.Complete(a)
		},
		OnFailure: func(err error) {
			handle.Fail(err)
		},
	})
	return handle
}

// UnloadSceneAsync unloads the named scene on a background task. The
// operation reports the unloaded scene's activation flag; unloading a scene
// that is not current resolves with activation denied.
func (e *Engine) UnloadSceneAsync(sceneAssetName string) *UnloadSceneOperation {
	op := NewUnloadSceneOperation(sceneAssetName)
	e.jobs.Submit(jobs.Task{
		OnStart: func() (interface{}, error) {
			e.mu.Lock()
			defer e.mu.Unlock()
			if e.currentScene != nil && e.currentScene.SceneName == sceneAssetName {
				activated := e.currentScene.IsActivated
				e.currentScene = nil
				return activated, nil
			}
			return false, nil
		},
		OnComplete: func(result interface{}) {
			op.Complete(result.(bool))
		},
		OnFailure: func(err error) {
			op.Fail(err)
		},
	})
	return op
}

// CurrentScene returns the active scene handle, nil when no scene is loaded.
func (e *Engine) CurrentScene() *SceneHandle {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.currentScene
}

func (e *Engine) findSceneAsset(sceneAssetName string) (*Package, *asset.AssetInfo) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, p := range e.packages {
		if !p.Ready() {
			continue
		}
		if info := p.GetAssetInfo(sceneAssetName); info != nil {
			return p, info
		}
	}
	return nil, nil
}

// Destroy tears the engine down: all packages, all handles and the worker
// pool. No operation is valid afterwards.
func (e *Engine) Destroy() error {
	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return nil
	}
	e.destroyed = true
	pkgs := make([]*Package, 0, len(e.packages))
	for _, p := range e.packages {
		pkgs = append(pkgs, p)
	}
	e.packages = make(map[string]*Package)
	e.currentScene = nil
	e.mu.Unlock()

	e.cancel()
	for _, p := range pkgs {
		p.destroy()
	}
	return e.jobs.Shutdown()
}
