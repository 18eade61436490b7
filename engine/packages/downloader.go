package packages

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/spaghettifunk/quiver/engine/asset"
	"github.com/spaghettifunk/quiver/engine/core"
)

// Downloader fetches manifest-named files into a package's sandbox
// directory. Concurrency is bounded by a semaphore; each file gets the
// configured number of retries and the last attempt switches to the
// fallback host. Downloads land in a temp file and are renamed into place
// only after verification.
type Downloader struct {
	client      *http.Client
	sem         chan struct{}
	retry       int
	remote      RemoteServices
	verify      VerifyLevel
	packageName string
}

func NewDownloader(packageName string, remote RemoteServices, maxConcurrent, failedTryAgain int, verify VerifyLevel) *Downloader {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	if failedTryAgain < 0 {
		failedTryAgain = 0
	}
	return &Downloader{
		client:      &http.Client{Timeout: 60 * time.Second},
		sem:         make(chan struct{}, maxConcurrent),
		retry:       failedTryAgain,
		remote:      remote,
		verify:      verify,
		packageName: packageName,
	}
}

// Fetch downloads the file described by info into destDir and returns its
// local path. A file already present and passing verification is reused.
func (d *Downloader) Fetch(ctx context.Context, info *asset.AssetInfo, destDir string) (string, error) {
	dest := filepath.Join(destDir, filepath.FromSlash(info.FileName))
	if err := VerifyLocalFile(dest, info, d.verify); err == nil {
		return dest, nil
	}

	select {
	case d.sem <- struct{}{}:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	defer func() { <-d.sem }()

	attempts := 1 + d.retry
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * 100 * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		url := d.remote.RemoteMainURL(d.packageName, info.FileName)
		if attempt == attempts-1 && attempts > 1 {
			url = d.remote.RemoteFallbackURL(d.packageName, info.FileName)
		}
		if url == "" {
			lastErr = fmt.Errorf("no remote url for file '%s'", info.FileName)
			break
		}

		size, err := d.fetchOnce(ctx, url, info, dest)
		if err == nil {
			core.MetricsRecordDownload(size, true)
			return dest, nil
		}
		lastErr = err
		core.LogWarn("download attempt %d/%d for '%s' failed: %v", attempt+1, attempts, info.FileName, err)
	}

	core.MetricsRecordDownload(0, false)
	core.EventFire(core.EVENT_CODE_DOWNLOAD_FAILED, d, downloadFailedContext(d.packageName, info.FileName, lastErr))
	return "", fmt.Errorf("failed to download '%s' after %d attempts: %w", info.FileName, attempts, lastErr)
}

func (d *Downloader) fetchOnce(ctx context.Context, url string, info *asset.AssetInfo, dest string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, err
	}
	tmp := dest + ".tmp-" + uuid.NewString()
	f, err := os.Create(tmp)
	if err != nil {
		return 0, err
	}
	size, err := io.Copy(f, resp.Body)
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp)
		return 0, err
	}

	// Verify before the file becomes visible under its real name.
	if err := verifyFileAt(tmp, info, d.verify != VerifyLevelLow); err != nil {
		os.Remove(tmp)
		return 0, err
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return 0, err
	}
	return size, nil
}

// VerifyLocalFile checks a sandbox file against its descriptor per the
// configured level. VerifyLevelMiddle trusts files that were verified when
// they landed; VerifyLevelHigh re-hashes on every open.
func VerifyLocalFile(path string, info *asset.AssetInfo, level VerifyLevel) error {
	return verifyFileAt(path, info, level == VerifyLevelHigh)
}

func verifyFileAt(path string, info *asset.AssetInfo, withHash bool) error {
	fi, err := os.Stat(path)
	if err != nil {
		return err
	}
	if fi.Size() != info.Size {
		return fmt.Errorf("file '%s' size mismatch: manifest %d, disk %d", info.FileName, info.Size, fi.Size())
	}
	if !withHash || info.Hash == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if got := asset.HashBytes(data); got != info.Hash {
		return fmt.Errorf("file '%s' hash mismatch: manifest %s, disk %s", info.FileName, info.Hash, got)
	}
	return nil
}

func downloadFailedContext(packageName, fileName string, err error) core.EventContext {
	ctx := core.EventContext{}
	ctx.Data.S[0] = packageName
	ctx.Data.S[1] = fileName
	if err != nil {
		ctx.Data.S[2] = err.Error()
	}
	return ctx
}
