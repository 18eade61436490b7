package resource

import (
	"github.com/spaghettifunk/quiver/engine/packages"
)

// LoadStatus classifies why an asynchronous load failed.
type LoadStatus uint8

const (
	LoadStatusSuccess LoadStatus = iota
	// The asset is not registered in the package manifest.
	LoadStatusNotExist
	// The underlying load operation produced no usable object.
	LoadStatusNotReady
)

func (s LoadStatus) String() string {
	switch s {
	case LoadStatusSuccess:
		return "success"
	case LoadStatusNotExist:
		return "not exist"
	case LoadStatusNotReady:
		return "not ready"
	default:
		return "unknown"
	}
}

// HasResult classifies what HasAsset found.
type HasResult uint8

const (
	// The location string itself is structurally invalid or unregistered.
	// Checked before existence; see Module.HasAsset.
	HasResultValid HasResult = iota
	HasResultNotExist
	// The asset exists but must be downloaded before use.
	HasResultAssetOnline
	HasResultAssetOnDisk
)

func (r HasResult) String() string {
	switch r {
	case HasResultNotExist:
		return "not exist"
	case HasResultAssetOnline:
		return "asset online"
	case HasResultAssetOnDisk:
		return "asset on disk"
	default:
		return "valid"
	}
}

// LoadAssetCallbacks is the per-operation callback pair. Exactly one of the
// two is invoked, exactly once, on the module's update thread.
type LoadAssetCallbacks struct {
	OnSuccess func(location string, obj interface{}, duration float64, userData interface{})
	OnFailure func(location string, status LoadStatus, message string, userData interface{})
}

type LoadSceneCallbacks struct {
	OnSuccess func(sceneAssetName string, sceneHandle *packages.SceneHandle, duration float64, userData interface{})
	OnFailure func(sceneAssetName string, message string, userData interface{})
}

type UnloadSceneCallbacks struct {
	OnSuccess func(sceneAssetName string, userData interface{})
	OnFailure func(sceneAssetName string, userData interface{})
}
