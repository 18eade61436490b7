package resource

import (
	"github.com/spaghettifunk/quiver/engine/asset"
	"github.com/spaghettifunk/quiver/engine/asset/loaders"
	"github.com/spaghettifunk/quiver/engine/packages"
)

// AssetPackage is the slice of a package the resource module forwards to.
// *packages.Package satisfies it; tests substitute fakes.
type AssetPackage interface {
	Name() string
	Ready() bool
	PlayMode() packages.PlayMode
	InitializeAsync(params packages.InitParameters) *packages.InitOperation
	GetAssetInfo(location string) *asset.AssetInfo
	GetAssetInfosByTags(tags ...string) []*asset.AssetInfo
	CheckLocationValid(location string) bool
	IsNeedDownloadFromRemote(info *asset.AssetInfo) bool
	LoadAssetAsync(info *asset.AssetInfo, priority int) *packages.AssetHandle
	ReleaseAsset(a *loaders.Asset)
	UnloadUnusedAssets()
	ForceUnloadAllAssets()
}

// AssetEngine is the engine context the module is constructed with. The
// module never reaches for a global; whoever builds the module decides which
// engine backs it.
type AssetEngine interface {
	CreatePackage(name string) (AssetPackage, error)
	TryGetPackage(name string) (AssetPackage, bool)
	LoadSceneAsync(sceneAssetName string, priority int) *packages.SceneHandle
	UnloadSceneAsync(sceneAssetName string) *packages.UnloadSceneOperation
	Destroy() error
}

// packageEngine adapts *packages.Engine to the AssetEngine interface.
type packageEngine struct {
	engine *packages.Engine
}

func (pe packageEngine) CreatePackage(name string) (AssetPackage, error) {
	p, err := pe.engine.CreatePackage(name)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (pe packageEngine) TryGetPackage(name string) (AssetPackage, bool) {
	p, ok := pe.engine.TryGetPackage(name)
	if !ok {
		return nil, false
	}
	return p, true
}

func (pe packageEngine) LoadSceneAsync(sceneAssetName string, priority int) *packages.SceneHandle {
	return pe.engine.LoadSceneAsync(sceneAssetName, priority)
}

func (pe packageEngine) UnloadSceneAsync(sceneAssetName string) *packages.UnloadSceneOperation {
	return pe.engine.UnloadSceneAsync(sceneAssetName)
}

func (pe packageEngine) Destroy() error {
	return pe.engine.Destroy()
}
