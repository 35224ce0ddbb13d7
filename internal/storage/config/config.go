package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hq-launcher/hql/internal/domain"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// FileName is the settings file inside the config directory
const FileName = "config.yaml"

// EnvPrefix prefixes environment overrides, e.g. HQL_COMMUNITY
const EnvPrefix = "HQL"

// Config holds global application settings
type Config struct {
	ManifestURL         string `mapstructure:"manifest_url" yaml:"manifest_url"`
	RegistryURL         string `mapstructure:"registry_url" yaml:"registry_url"`
	Community           string `mapstructure:"community" yaml:"community"`
	DepotDownloaderPath string `mapstructure:"depot_downloader_path" yaml:"depot_downloader_path"`
	AppID               string `mapstructure:"app_id" yaml:"app_id"`
	DepotID             string `mapstructure:"depot_id" yaml:"depot_id"`
	// LoaderPackage is installed into the game root before any mod, as owner-name@version
	LoaderPackage       string `mapstructure:"loader_package" yaml:"loader_package"`
	ConfigLinkMethod    string `mapstructure:"config_link_method" yaml:"config_link_method"`
	LinkConfigOnInstall bool   `mapstructure:"link_config_on_install" yaml:"link_config_on_install"`
	LogLevel            string `mapstructure:"log_level" yaml:"log_level"`
	GameExecutable      string `mapstructure:"game_executable" yaml:"game_executable"`

	// LaunchWrapper runs the game through a compatibility tool, e.g. [proton, run]
	LaunchWrapper []string `mapstructure:"launch_wrapper" yaml:"launch_wrapper,omitempty"`

	IndexCacheTTL                time.Duration `mapstructure:"index_cache_ttl" yaml:"index_cache_ttl"`
	LoginPromptIdle              time.Duration `mapstructure:"login_prompt_idle" yaml:"login_prompt_idle"`
	LoginTimeout                 time.Duration `mapstructure:"login_timeout" yaml:"login_timeout"`
	DownloadStallTimeout         time.Duration `mapstructure:"download_stall_timeout" yaml:"download_stall_timeout"`
	DownloadProgressStallTimeout time.Duration `mapstructure:"download_progress_stall_timeout" yaml:"download_progress_stall_timeout"`
}

// Default returns the built-in settings
func Default() *Config {
	return &Config{
		ManifestURL:                  "https://f.asta.rs/hq-launcher/manifest.json",
		RegistryURL:                  "https://thunderstore.io",
		Community:                    "lethal-company",
		AppID:                        "1966720",
		DepotID:                      "1966721",
		LoaderPackage:                "BepInEx-BepInExPack@5.4.2304",
		ConfigLinkMethod:             domain.LinkSymlink.String(),
		LinkConfigOnInstall:          true,
		LogLevel:                     "info",
		GameExecutable:               "Lethal Company.exe",
		IndexCacheTTL:                time.Hour,
		LoginPromptIdle:              8 * time.Second,
		LoginTimeout:                 90 * time.Second,
		DownloadStallTimeout:         15 * time.Second,
		DownloadProgressStallTimeout: 5 * time.Minute,
	}
}

// Load reads configuration from the given directory. A missing file yields defaults;
// HQL_* environment variables override both.
func Load(configDir string) (*Config, error) {
	return LoadFile(filepath.Join(configDir, FileName))
}

// LoadFile reads configuration from an explicit file path
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	defaults := Default()
	v.SetDefault("manifest_url", defaults.ManifestURL)
	v.SetDefault("registry_url", defaults.RegistryURL)
	v.SetDefault("community", defaults.Community)
	v.SetDefault("depot_downloader_path", defaults.DepotDownloaderPath)
	v.SetDefault("app_id", defaults.AppID)
	v.SetDefault("depot_id", defaults.DepotID)
	v.SetDefault("loader_package", defaults.LoaderPackage)
	v.SetDefault("config_link_method", defaults.ConfigLinkMethod)
	v.SetDefault("link_config_on_install", defaults.LinkConfigOnInstall)
	v.SetDefault("log_level", defaults.LogLevel)
	v.SetDefault("game_executable", defaults.GameExecutable)
	v.SetDefault("index_cache_ttl", defaults.IndexCacheTTL)
	v.SetDefault("login_prompt_idle", defaults.LoginPromptIdle)
	v.SetDefault("login_timeout", defaults.LoginTimeout)
	v.SetDefault("download_stall_timeout", defaults.DownloadStallTimeout)
	v.SetDefault("download_progress_stall_timeout", defaults.DownloadProgressStallTimeout)

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return &cfg, nil
}

// LinkMethod returns the configured config-link method
func (c *Config) LinkMethod() domain.LinkMethod {
	return domain.ParseLinkMethod(c.ConfigLinkMethod)
}

// Save writes configuration to the given directory
func (c *Config) Save(configDir string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	configPath := filepath.Join(configDir, FileName)
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}
