package resource_test

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/quiver/engine/asset"
	"github.com/spaghettifunk/quiver/engine/asset/loaders"
	"github.com/spaghettifunk/quiver/engine/packages"
	"github.com/spaghettifunk/quiver/engine/resource"
)

// Builds a package with the packer, initializes the module in offline mode
// over it and exercises the query and load surface end to end.
func TestOfflineEndToEnd(t *testing.T) {
	src := t.TempDir()
	files := map[string]string{
		"town/bgm.wav":   "RIFF pretend audio",
		"ui/welcome.txt": "welcome to town",
	}
	for rel, content := range files {
		p := filepath.Join(src, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}

	buildin := t.TempDir()
	packer := &asset.Packer{SrcDir: src, PackageName: resource.DefaultPackage, Version: "1.0.0"}
	_, err := packer.BuildTo(filepath.Join(buildin, resource.DefaultPackage))
	require.NoError(t, err)

	cfg := resource.DefaultConfig()
	cfg.PlayMode = packages.PlayModeOffline
	cfg.BuildinRoot = buildin
	cfg.SandboxRoot = t.TempDir()

	m, err := resource.NewModule(cfg)
	require.NoError(t, err)
	require.NoError(t, m.Initialize())
	defer func() { require.NoError(t, m.Shutdown()) }()

	require.True(t, m.InitPackage(resource.DefaultPackage))

	r, err := m.HasAsset("town/bgm.wav")
	require.NoError(t, err)
	assert.Equal(t, resource.HasResultAssetOnDisk, r)

	need, err := m.IsNeedDownloadFromRemote("town/bgm.wav")
	require.NoError(t, err)
	assert.False(t, need)

	// Synchronous load decodes through the registered loader.
	a, err := m.LoadAsset("ui/welcome.txt", asset.TypeText)
	require.NoError(t, err)
	assert.Equal(t, "welcome to town", a.Data)

	// Asynchronous load resolves through the pump.
	var successes atomic.Int32
	err = m.LoadAssetAsync("town/bgm.wav", asset.TypeAudio, 0, resource.LoadAssetCallbacks{
		OnSuccess: func(location string, obj interface{}, _ float64, _ interface{}) {
			loaded, ok := obj.(*loaders.Asset)
			assert.True(t, ok)
			assert.Equal(t, []byte(files[location]), loaded.Bytes)
			successes.Add(1)
		},
		OnFailure: func(_ string, _ resource.LoadStatus, message string, _ interface{}) {
			t.Errorf("unexpected load failure: %s", message)
		},
	}, nil)
	require.NoError(t, err)
	pumpUntil(t, m, &successes, 1)

	require.NoError(t, m.UnloadAsset(a))
	m.UnloadUnusedAssets()
}
