package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hq-launcher/hql/internal/core"
	"github.com/hq-launcher/hql/internal/domain"
	"github.com/hq-launcher/hql/internal/storage/config"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var (
	version = "0.3.0"

	// Global flags
	configDir  string
	configFile string
	dataDir    string
	verbose    bool
	plain      bool
	keyMode    string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "hql",
	Short: "HQ launcher - install and manage modded Lethal Company versions",
	Long: `hql installs specific Lethal Company versions side by side, each with the
curated mod set from the remote manifest, and keeps their configs linked.

Examples:
  hql auth login              # Log in to Steam for depot downloads
  hql install 73              # Install v73 with its mods
  hql check 73                # Look for mod updates
  hql update 73               # Install the updated mods`,
	Version:       version,
	SilenceUsage:  true, // Runtime errors should not print usage
	SilenceErrors: true, // fang prints errors
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config", "", "config directory (default: ~/.config/hql)")
	rootCmd.PersistentFlags().StringVar(&configFile, "config-file", "", "explicit settings file (absolute path to a .yaml)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", "", "data directory (default: ~/.local/share/hql)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&plain, "plain", false, "print progress lines instead of the interactive view")
	rootCmd.PersistentFlags().StringVar(&keyMode, "keys", "vim", "key mode for the interactive view (vim, standard)")
}

// Execute runs the root command. Exit codes: 0 = success, 1 = error, 2 = cancelled.
func Execute() {
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(version),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		if errors.Is(err, domain.ErrCancelled) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

// getServiceConfig returns the service configuration with defaults applied
func getServiceConfig() (core.ServiceConfig, error) {
	cfg := core.ServiceConfig{
		ConfigDir: configDir,
		DataDir:   dataDir,
	}

	if cfg.ConfigDir == "" || cfg.DataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return core.ServiceConfig{}, fmt.Errorf("home directory: %w", err)
		}
		if cfg.ConfigDir == "" {
			cfg.ConfigDir = filepath.Join(homeDir, ".config", "hql")
		}
		if cfg.DataDir == "" {
			cfg.DataDir = filepath.Join(homeDir, ".local", "share", "hql")
		}
	}

	if configFile != "" {
		path, err := config.ParseConfigPath(configFile)
		if err != nil {
			return core.ServiceConfig{}, err
		}
		cfg.ConfigFile = path
	}

	return cfg, nil
}

// newLogger builds the root logger. --verbose wins over the configured level.
func newLogger(cfg core.ServiceConfig) *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		Prefix:          "hql",
		ReportTimestamp: verbose,
		Level:           log.WarnLevel,
	})
	if verbose {
		logger.SetLevel(log.DebugLevel)
		return logger
	}

	var appConfig *config.Config
	var err error
	if cfg.ConfigFile != "" {
		appConfig, err = config.LoadFile(cfg.ConfigFile)
	} else {
		appConfig, err = config.Load(cfg.ConfigDir)
	}
	if err != nil || appConfig.LogLevel == "" {
		return logger
	}
	if level, err := log.ParseLevel(appConfig.LogLevel); err == nil {
		logger.SetLevel(level)
	}
	return logger
}

// initService creates and initializes the core service
func initService() (*core.Service, error) {
	cfg, err := getServiceConfig()
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.ConfigDir, 0755); err != nil {
		return nil, fmt.Errorf("creating config dir: %w", err)
	}
	cfg.Logger = newLogger(cfg)

	return core.NewService(cfg)
}

// closeService closes svc and reports a failure without masking the command's error
func closeService(svc *core.Service) {
	if err := svc.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: closing service: %v\n", err)
	}
}

// parseVersion accepts "73" or "v73"
func parseVersion(arg string) (int, error) {
	s := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(arg)), "v")
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid game version %q", arg)
	}
	return n, nil
}

// parseModID accepts "Owner-Name" and "Owner-Name-1.2.3"
func parseModID(arg string) (domain.ModID, error) {
	s := strings.TrimSpace(arg)
	// a version suffix needs owner and name in front of it
	if i := strings.LastIndex(s, "-"); i > 0 && strings.Count(s, "-") >= 2 {
		if _, err := domain.ParseVersion(s[i+1:]); err == nil {
			s = s[:i]
		}
	}
	return domain.ParseModID(s)
}
