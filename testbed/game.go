package testbed

import (
	"fmt"

	"github.com/spaghettifunk/quiver/engine/asset"
	"github.com/spaghettifunk/quiver/engine/core"
	"github.com/spaghettifunk/quiver/engine/packages"
	"github.com/spaghettifunk/quiver/engine/resource"
)

// TestGame is a tiny game module that exercises the resource module the way
// a framework does: init, per-frame Update, callback-driven loads.
type TestGame struct {
	Resources *resource.Module

	assetsLoaded bool
}

func NewTestGame() (*TestGame, error) {
	cfg := resource.DefaultConfig()
	cfg.PlayMode = packages.PlayModeSimulate
	cfg.SimulateAssetDir = "testbed/assets"
	cfg.FrameBudgetMS = 10

	module, err := resource.NewModule(cfg)
	if err != nil {
		return nil, err
	}
	return &TestGame{
		Resources: module,
	}, nil
}

func (g *TestGame) Initialize() error {
	if err := g.Resources.Initialize(); err != nil {
		return err
	}

	core.EventRegister(core.EVENT_CODE_ASSET_LOADED, g,
		func(code core.SystemEventCode, sender, listener interface{}, data core.EventContext) bool {
			core.LogInfo("event: asset '%s' loaded from package '%s' in %.4fs",
				data.Data.S[1], data.Data.S[0], data.Data.F64[0])
			return false
		})

	if ok := g.Resources.InitPackage(resource.DefaultPackage); !ok {
		return fmt.Errorf("failed to initialize package '%s'", resource.DefaultPackage)
	}
	return nil
}

// Update runs once per frame and kicks the demo load on the first tick.
func (g *TestGame) Update(deltaTime float64) error {
	if !g.assetsLoaded {
		g.assetsLoaded = true
		err := g.Resources.LoadAssetAsync("ui/welcome.txt", asset.TypeText, 0, resource.LoadAssetCallbacks{
			OnSuccess: func(location string, obj interface{}, duration float64, userData interface{}) {
				core.LogInfo("loaded '%s' in %.4fs", location, duration)
			},
			OnFailure: func(location string, status resource.LoadStatus, message string, userData interface{}) {
				core.LogError("load of '%s' failed (%s): %s", location, status, message)
			},
		}, nil)
		if err != nil {
			return err
		}
	}

	g.Resources.Update()
	return nil
}

func (g *TestGame) Shutdown() error {
	return g.Resources.Shutdown()
}
