package resource

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/spaghettifunk/quiver/engine/packages"
)

// Config is the module's configuration surface. Set everything before
// Initialize; InitPackage builds mode-specific engine parameters from it.
type Config struct {
	DefaultPackageName string            `toml:"default_package_name"`
	PlayMode           packages.PlayMode `toml:"play_mode"`

	// Maximum milliseconds Update spends dispatching callbacks per frame.
	// Zero means unlimited.
	FrameBudgetMS uint32 `toml:"frame_budget_ms"`

	// Read-only storage path holding the packages that ship with the build.
	BuildinRoot string `toml:"buildin_root"`
	// Read-write storage path for downloaded files.
	SandboxRoot string `toml:"sandbox_root"`
	// Asset source directory for simulate mode.
	SimulateAssetDir string `toml:"simulate_asset_dir"`

	MainHost               string               `toml:"main_host"`
	FallbackHost           string               `toml:"fallback_host"`
	VerifyLevel            packages.VerifyLevel `toml:"verify_level"`
	MaxConcurrentDownloads int                  `toml:"max_concurrent_downloads"`
	FailedTryAgain         int                  `toml:"failed_try_again"`

	// When set, package files are expected to be XOR-encrypted with this key.
	DecryptionKey string `toml:"decryption_key,omitempty"`
}

const DefaultPackage = "DefaultPackage"

func DefaultConfig() *Config {
	return &Config{
		DefaultPackageName:     DefaultPackage,
		PlayMode:               packages.PlayModeSimulate,
		FrameBudgetMS:          10,
		VerifyLevel:            packages.VerifyLevelMiddle,
		MaxConcurrentDownloads: 4,
		FailedTryAgain:         2,
	}
}

// LoadConfig reads a TOML config file, filling unset fields with defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read resource config %s: %w", path, err)
	}
	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse resource config %s: %w", path, err)
	}
	return cfg, nil
}

// buildInitParameters selects the play-mode strategy set for one package.
func (c *Config) buildInitParameters() packages.InitParameters {
	params := packages.InitParameters{
		PlayMode:               c.PlayMode,
		SimulateAssetDir:       c.SimulateAssetDir,
		BuildinRoot:            c.BuildinRoot,
		SandboxRoot:            c.SandboxRoot,
		VerifyLevel:            c.VerifyLevel,
		MaxConcurrentDownloads: c.MaxConcurrentDownloads,
		FailedTryAgain:         c.FailedTryAgain,
	}
	if c.DecryptionKey != "" {
		params.Decryption = packages.XORDecryption{Key: []byte(c.DecryptionKey)}
	} else {
		params.Decryption = packages.NoDecryption{}
	}
	if c.PlayMode.IsOnline() {
		params.BuildinQuery = packages.FileSystemBuildinQuery{Root: c.BuildinRoot}
		params.Remote = packages.HostRemoteServices{
			MainHost:     c.MainHost,
			FallbackHost: c.FallbackHost,
		}
	}
	return params
}
