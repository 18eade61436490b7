package packages_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/quiver/engine/asset"
	"github.com/spaghettifunk/quiver/engine/packages"
)

func fileInfo(location string, payload []byte) *asset.AssetInfo {
	return &asset.AssetInfo{
		Location: location,
		FileName: location,
		Size:     int64(len(payload)),
		Hash:     asset.HashBytes(payload),
	}
}

func TestDownloaderFetch(t *testing.T) {
	payload := []byte("remote audio bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/cdn/DefaultPackage/town/bgm.wav", r.URL.Path)
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	remote := packages.HostRemoteServices{MainHost: srv.URL + "/cdn", FallbackHost: srv.URL + "/cdn"}
	d := packages.NewDownloader("DefaultPackage", remote, 4, 1, packages.VerifyLevelMiddle)

	sandbox := t.TempDir()
	info := fileInfo("town/bgm.wav", payload)
	dest, err := d.Fetch(context.Background(), info, sandbox)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(sandbox, "town", "bgm.wav"), dest)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestDownloaderReusesVerifiedFile(t *testing.T) {
	payload := []byte("already here")
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	remote := packages.HostRemoteServices{MainHost: srv.URL, FallbackHost: srv.URL}
	d := packages.NewDownloader("DefaultPackage", remote, 1, 0, packages.VerifyLevelMiddle)

	sandbox := t.TempDir()
	info := fileInfo("ui/panel.png", payload)

	_, err := d.Fetch(context.Background(), info, sandbox)
	require.NoError(t, err)
	_, err = d.Fetch(context.Background(), info, sandbox)
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load(), "a verified sandbox file is not fetched again")
}

func TestDownloaderFallbackHost(t *testing.T) {
	payload := []byte("fallback payload")
	var mainHits, fallbackHits atomic.Int32

	mainSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mainHits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer mainSrv.Close()
	fallbackSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fallbackHits.Add(1)
		_, _ = w.Write(payload)
	}))
	defer fallbackSrv.Close()

	remote := packages.HostRemoteServices{MainHost: mainSrv.URL, FallbackHost: fallbackSrv.URL}
	d := packages.NewDownloader("DefaultPackage", remote, 1, 1, packages.VerifyLevelMiddle)

	info := fileInfo("town/bgm.wav", payload)
	dest, err := d.Fetch(context.Background(), info, t.TempDir())
	require.NoError(t, err)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
	assert.Equal(t, int32(1), mainHits.Load())
	assert.Equal(t, int32(1), fallbackHits.Load(), "the final retry goes to the fallback host")
}

func TestDownloaderHashMismatchExhaustsRetries(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("corrupted body!!"))
	}))
	defer srv.Close()

	payload := []byte("expected body!!!")
	remote := packages.HostRemoteServices{MainHost: srv.URL, FallbackHost: srv.URL}
	d := packages.NewDownloader("DefaultPackage", remote, 1, 2, packages.VerifyLevelMiddle)

	sandbox := t.TempDir()
	info := fileInfo("data/table.bin", payload)
	_, err := d.Fetch(context.Background(), info, sandbox)
	require.Error(t, err)
	assert.ErrorContains(t, err, "hash mismatch")
	assert.Equal(t, int32(3), hits.Load(), "one try plus two retries")

	// Nothing is left behind under the real file name.
	_, statErr := os.Stat(filepath.Join(sandbox, "data", "table.bin"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestHostOnlinePackageFetchesFromRemote(t *testing.T) {
	// The build ships only the manifest; file bodies live on the CDN.
	payload := []byte("streamed music")
	src := t.TempDir()
	writeFile(t, src, "town/bgm.wav", string(payload))

	buildin := t.TempDir()
	packer := &asset.Packer{SrcDir: src, PackageName: "DefaultPackage", Version: "2.0.0"}
	m, err := packer.Build()
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(buildin, "DefaultPackage"), 0o755))
	require.NoError(t, m.Save(filepath.Join(buildin, "DefaultPackage")))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/DefaultPackage/town/bgm.wav" {
			_, _ = w.Write(payload)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	e := newEngine(t)
	pkg, err := e.CreatePackage("DefaultPackage")
	require.NoError(t, err)

	sandbox := t.TempDir()
	op := pkg.InitializeAsync(packages.InitParameters{
		PlayMode:               packages.PlayModeHostOnline,
		BuildinRoot:            buildin,
		SandboxRoot:            sandbox,
		Remote:                 packages.HostRemoteServices{MainHost: srv.URL, FallbackHost: srv.URL},
		VerifyLevel:            packages.VerifyLevelMiddle,
		MaxConcurrentDownloads: 2,
		FailedTryAgain:         1,
	})
	op.Wait()
	require.Equal(t, packages.StatusSucceeded, op.Status, "init failed: %v", op.Error)
	assert.Equal(t, "2.0.0", pkg.Version())

	info := pkg.GetAssetInfo("town/bgm.wav")
	require.NotNil(t, info)
	assert.True(t, pkg.IsNeedDownloadFromRemote(info))

	handle := pkg.LoadAssetAsync(info, 0)
	handle.Wait()
	require.Equal(t, packages.StatusSucceeded, handle.Status, "load failed: %v", handle.Error)
	assert.Equal(t, payload, handle.AssetObject.Bytes)

	// The file landed in the sandbox, so it is no longer remote.
	assert.False(t, pkg.IsNeedDownloadFromRemote(info))
}
