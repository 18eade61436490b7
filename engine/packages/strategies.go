package packages

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/spaghettifunk/quiver/engine/asset"
)

// DecryptionServices transforms raw file bytes before decoding. Supplied at
// package initialization time.
type DecryptionServices interface {
	Decrypt(info *asset.AssetInfo, data []byte) ([]byte, error)
}

// NoDecryption passes the payload through untouched.
type NoDecryption struct{}

func (NoDecryption) Decrypt(_ *asset.AssetInfo, data []byte) ([]byte, error) {
	return data, nil
}

// OffsetDecryption strips a fixed junk header prepended at build time.
type OffsetDecryption struct {
	Offset int
}

func (d OffsetDecryption) Decrypt(info *asset.AssetInfo, data []byte) ([]byte, error) {
	if d.Offset < 0 || d.Offset > len(data) {
		return nil, fmt.Errorf("offset decryption: asset '%s' is %d bytes, offset %d", info.Location, len(data), d.Offset)
	}
	return data[d.Offset:], nil
}

// XORDecryption applies a repeating keystream.
type XORDecryption struct {
	Key []byte
}

func (d XORDecryption) Decrypt(info *asset.AssetInfo, data []byte) ([]byte, error) {
	if len(d.Key) == 0 {
		return nil, fmt.Errorf("xor decryption: empty key for asset '%s'", info.Location)
	}
	out := make([]byte, len(data))
	for i, b := range data {
		out[i] = b ^ d.Key[i%len(d.Key)]
	}
	return out, nil
}

// BuildinQueryServices answers whether a file ships inside the read-only
// buildin directory.
type BuildinQueryServices interface {
	Query(packageName, fileName string) bool
}

// FileSystemBuildinQuery stats the buildin directory on every query.
type FileSystemBuildinQuery struct {
	Root string
}

func (q FileSystemBuildinQuery) Query(packageName, fileName string) bool {
	if q.Root == "" {
		return false
	}
	_, err := os.Stat(filepath.Join(q.Root, packageName, filepath.FromSlash(fileName)))
	return err == nil
}

// RemoteServices maps a manifest file name to its download URLs.
type RemoteServices interface {
	RemoteMainURL(packageName, fileName string) string
	RemoteFallbackURL(packageName, fileName string) string
}

// HostRemoteServices joins a primary and a fallback host with the package
// name and file path.
type HostRemoteServices struct {
	MainHost     string
	FallbackHost string
}

func (r HostRemoteServices) RemoteMainURL(packageName, fileName string) string {
	return joinHost(r.MainHost, packageName, fileName)
}

func (r HostRemoteServices) RemoteFallbackURL(packageName, fileName string) string {
	host := r.FallbackHost
	if host == "" {
		host = r.MainHost
	}
	return joinHost(host, packageName, fileName)
}

func joinHost(host, packageName, fileName string) string {
	if host == "" {
		return ""
	}
	u, err := url.Parse(host)
	if err != nil {
		return host + "/" + packageName + "/" + fileName
	}
	u = u.JoinPath(packageName, fileName)
	return u.String()
}
