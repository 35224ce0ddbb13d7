package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"sync"

	"github.com/hq-launcher/hql/internal/cfgfile"
	"github.com/hq-launcher/hql/internal/depot"
	"github.com/hq-launcher/hql/internal/domain"
	"github.com/hq-launcher/hql/internal/source"
	"github.com/hq-launcher/hql/internal/source/manifest"
	"github.com/hq-launcher/hql/internal/source/thunderstore"
	"github.com/hq-launcher/hql/internal/storage/cache"
	"github.com/hq-launcher/hql/internal/storage/config"
	"github.com/hq-launcher/hql/internal/storage/db"

	"github.com/charmbracelet/log"
)

// ServiceConfig holds configuration for the core service
type ServiceConfig struct {
	ConfigDir  string // Directory for config.yaml and the disabled-mod list
	ConfigFile string // Explicit settings file; overrides ConfigDir/config.yaml
	DataDir    string // Directory for versions, database, cache and depot state
	HTTPClient *http.Client
	Logger     *log.Logger

	// Collaborators built from config.yaml when nil
	Manifests manifest.Fetcher
	Registry  source.PackageRegistry
	Game      GameDownloader
	Runner    depot.Runner
}

// Service wires the launcher's components together
type Service struct {
	config *config.Config
	layout Layout
	logger *log.Logger

	db           *db.DB
	cache        *cache.Cache
	state        *Store
	bus          *Bus
	manifests    *manifest.Snapshot
	registry     source.PackageRegistry
	auth         *depot.Authenticator
	planner      *Planner
	checker      *UpdateChecker
	installer    *Installer
	orchestrator *Orchestrator
	launcher     *Launcher

	chainsMu  sync.Mutex
	chains    *ChainResolver
	chainsFor *domain.RemoteManifest
}

// NewService creates a new core service instance
func NewService(cfg ServiceConfig) (*Service, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	var appConfig *config.Config
	var err error
	if cfg.ConfigFile != "" {
		appConfig, err = config.LoadFile(cfg.ConfigFile)
	} else {
		appConfig, err = config.Load(cfg.ConfigDir)
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	layout := Layout{DataDir: cfg.DataDir}
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}

	database, err := db.New(layout.DBPath())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Service{
		config: appConfig,
		layout: layout,
		logger: logger,
		db:     database,
		cache:  cache.New(layout.CacheDir()),
		state:  NewStore(database, cfg.ConfigDir),
		bus:    NewBus(),
	}

	fetcher := cfg.Manifests
	if fetcher == nil {
		fetcher = manifest.NewClient(cfg.HTTPClient, appConfig.ManifestURL)
	}
	s.manifests = manifest.NewSnapshot(fetcher)

	s.registry = cfg.Registry
	if s.registry == nil {
		s.registry = thunderstore.New(thunderstore.Options{
			HTTPClient: cfg.HTTPClient,
			BaseURL:    appConfig.RegistryURL,
			Community:  appConfig.Community,
			Cache:      s.cache,
			MaxAge:     appConfig.IndexCacheTTL,
			Logger:     logger.WithPrefix("registry"),
		})
	}

	depotOpts := depot.Options{
		Tool: depot.Tool{
			Path:      appConfig.DepotDownloaderPath,
			ConfigDir: layout.DepotDir(),
			AppID:     appConfig.AppID,
			DepotID:   appConfig.DepotID,
		},
		Runner:              cfg.Runner,
		Store:               database,
		Logger:              logger.WithPrefix("depot"),
		Notify:              s.forwardDepotEvent,
		PromptIdle:          appConfig.LoginPromptIdle,
		LoginTimeout:        appConfig.LoginTimeout,
		StallBeforeProgress: appConfig.DownloadStallTimeout,
		StallAfterProgress:  appConfig.DownloadProgressStallTimeout,
	}
	s.auth = depot.NewAuthenticator(depotOpts)

	game := cfg.Game
	if game == nil {
		game = depot.NewDownloader(depotOpts)
	}

	s.planner, err = NewPlanner(s.registry, appConfig.LoaderPackage, logger.WithPrefix("planner"))
	if err != nil {
		database.Close()
		return nil, err
	}
	s.checker = NewUpdateChecker(s.manifests, s.planner, s.state, s.bus, logger.WithPrefix("updates"))
	s.installer = NewInstaller(s.cache, NewDownloader(cfg.HTTPClient), layout, logger.WithPrefix("installer"))
	s.orchestrator = NewOrchestrator(OrchestratorOptions{
		Manifests:   s.manifests,
		Planner:     s.planner,
		Checker:     s.checker,
		Installer:   s.installer,
		Game:        game,
		State:       s.state,
		Layout:      layout,
		Bus:         s.bus,
		ApplyChains: s.applyChains,
		Logger:      logger.WithPrefix("orchestrator"),
	})
	s.launcher = NewLauncher(LauncherOptions{
		Layout:     layout,
		Runner:     cfg.Runner,
		Executable: appConfig.GameExecutable,
		Wrapper:    appConfig.LaunchWrapper,
		Bus:        s.bus,
		Logger:     logger.WithPrefix("game"),
	})

	return s, nil
}

// Close releases resources held by the service
func (s *Service) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Config returns the loaded settings
func (s *Service) Config() *config.Config {
	return s.config
}

// Layout returns the data directory layout
func (s *Service) Layout() Layout {
	return s.layout
}

// Bus returns the event bus observers subscribe to
func (s *Service) Bus() *Bus {
	return s.bus
}

// Auth returns the depot login authenticator
func (s *Service) Auth() *depot.Authenticator {
	return s.auth
}

// Orchestrator returns the install/update task runner
func (s *Service) Orchestrator() *Orchestrator {
	return s.orchestrator
}

func (s *Service) forwardDepotEvent(e depot.Event) {
	if e.Line != "" {
		s.bus.Publish(Event{Name: EventDepotOutput, SessionID: e.SessionID, Message: e.Line})
		return
	}
	s.bus.Publish(Event{
		Name:         EventDepotAuth,
		SessionID:    e.SessionID,
		SessionPhase: e.Phase.String(),
		Message:      e.Message,
	})
}

// Manifest returns the session's manifest. refresh refetches it and drops the
// cached registry index.
func (s *Service) Manifest(ctx context.Context, refresh bool) (*domain.RemoteManifest, error) {
	if !refresh {
		return s.manifests.FetchManifest(ctx)
	}
	if r, ok := s.registry.(interface{ Refresh() error }); ok {
		if err := r.Refresh(); err != nil {
			s.logger.Warn("could not drop registry index", "err", err)
		}
	}
	return s.manifests.Refresh(ctx)
}

// Install runs a full install of a game version and waits for it
func (s *Service) Install(ctx context.Context, version int) (domain.DownloadTask, error) {
	return s.orchestrator.Install(ctx, version)
}

// Update installs the updatable mods of an installed version and waits for it
func (s *Service) Update(ctx context.Context, version int) (domain.DownloadTask, error) {
	return s.orchestrator.Update(ctx, version)
}

// Sync starts a mods-only update of an installed version when the remote manifest
// revision differs from the one its mods were installed from. It returns a nil task
// when the version is already in sync.
func (s *Service) Sync(ctx context.Context, version int) (*Task, error) {
	if _, ok, err := s.state.GameFiles(version); err != nil {
		return nil, err
	} else if !ok {
		return nil, fmt.Errorf("%w: %d", domain.ErrNotInstalled, version)
	}

	m, err := s.manifests.FetchManifest(ctx)
	if err != nil {
		return nil, err
	}
	applied, _, err := s.state.AppliedRevision(version)
	if err != nil {
		return nil, err
	}
	if applied == m.Revision {
		s.logger.Info("manifest up to date", "version", version, "revision", applied)
		return nil, nil
	}

	s.logger.Info("manifest changed, syncing mods", "version", version, "local", applied, "remote", m.Revision)
	return s.orchestrator.Start(version, domain.ModeUpdate)
}

// LatestInstalledVersion returns the highest installed game version
func (s *Service) LatestInstalledVersion() (int, error) {
	versions, err := s.state.InstalledVersions()
	if err != nil {
		return 0, err
	}
	if len(versions) == 0 {
		return 0, fmt.Errorf("%w: no game version installed", domain.ErrNotInstalled)
	}
	return versions[len(versions)-1], nil
}

// Launch starts the game of an installed version after bringing its plugin folders
// in line with the disabled set. The version stays reserved until the game exits.
func (s *Service) Launch(version int) error {
	if _, ok, err := s.state.GameFiles(version); err != nil {
		return err
	} else if !ok {
		return fmt.Errorf("%w: %d", domain.ErrNotInstalled, version)
	}

	release, err := s.orchestrator.Acquire(version)
	if err != nil {
		return err
	}
	err = s.launcher.Launch(version, func() error { return s.applyDisabled(version) }, release)
	if err != nil {
		release()
		return err
	}
	return nil
}

// GameStatus reports the game launched by this process
func (s *Service) GameStatus() GameStatus {
	return s.launcher.Status()
}

// StopGame kills the running game. It reports whether one was running.
func (s *Service) StopGame() (bool, error) {
	return s.launcher.Stop()
}

// WaitGame blocks until the running game exits
func (s *Service) WaitGame(ctx context.Context) error {
	return s.launcher.Wait(ctx)
}

// CheckUpdates lists the mods of a version that an update would install
func (s *Service) CheckUpdates(ctx context.Context, version int) ([]domain.ModID, error) {
	return s.checker.Check(ctx, version)
}

// InstalledVersions returns the versions with completed game files
func (s *Service) InstalledVersions() ([]int, error) {
	return s.state.InstalledVersions()
}

// InstalledMods returns the recorded mods of a version
func (s *Service) InstalledMods(version int) ([]domain.InstalledMod, error) {
	return s.state.InstalledMods(version)
}

// InstalledMod returns one recorded mod, or nil
func (s *Service) InstalledMod(version int, id domain.ModID) (*domain.InstalledMod, error) {
	return s.state.InstalledMod(version, id)
}

// RemoveMod deletes a mod's files and record from a version
func (s *Service) RemoveMod(version int, id domain.ModID) error {
	release, err := s.orchestrator.Acquire(version)
	if err != nil {
		return err
	}
	defer release()

	if err := s.installer.Uninstall(version, id); err != nil {
		return err
	}
	return s.state.RemoveInstalledMod(version, id)
}

// ScanInstalled rebuilds a version's records from the plugin folders on disk
func (s *Service) ScanInstalled(version int) ([]domain.InstalledMod, error) {
	release, err := s.orchestrator.Acquire(version)
	if err != nil {
		return nil, err
	}
	defer release()

	if _, err := os.Stat(s.layout.VersionDir(version)); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %d", domain.ErrNotInstalled, version)
	}
	mods, err := ScanPlugins(s.layout.PluginsDir(version))
	if err != nil {
		return nil, err
	}
	if err := s.state.ReplaceInstalledMods(version, mods); err != nil {
		return nil, err
	}
	s.logger.Info("scanned installed mods", "version", version, "count", len(mods))
	return mods, nil
}

// EnableResult reports what SetModEnabled touched
type EnableResult struct {
	// Mods whose state was set: the requested mod and the mods it shares a confirmed chain with
	Mods []domain.ModID
	// Linked mods found by name matching only; their state is left alone
	Provisional []domain.ModID
	Versions    []int
}

// SetModEnabled enables or disables a mod globally and in every installed version.
// Mods sharing a config chain with it follow, once their chain membership is confirmed.
func (s *Service) SetModEnabled(ctx context.Context, id domain.ModID, enabled bool) (*EnableResult, error) {
	resolver, m, err := s.chainResolver(ctx)
	if err != nil {
		return nil, err
	}
	versions, err := s.state.InstalledVersions()
	if err != nil {
		return nil, err
	}

	s.refreshListings(resolver, m, versions...)

	membership := resolver.ModsSharingChain(id, s.installedManifestMods(m, versions))

	result := &EnableResult{Mods: []domain.ModID{id}}
	if membership.Confirmed {
		result.Mods = append(result.Mods, membership.Mods...)
	} else if len(membership.Mods) > 0 {
		s.logger.Info("chain membership not confirmed, leaving linked mods alone", "mod", id, "linked", len(membership.Mods))
		result.Provisional = membership.Mods
	}

	for _, target := range result.Mods {
		if _, err := s.state.SetDisabled(target, !enabled); err != nil {
			return nil, err
		}
	}

	var errs []error
	for _, v := range versions {
		release, err := s.orchestrator.Acquire(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("v%d: %w", v, err))
			continue
		}
		for _, target := range result.Mods {
			dir, ok := FindPluginDir(s.layout.PluginsDir(v), target)
			if !ok {
				continue
			}
			if err := SetFilesEnabled(dir, enabled); err != nil {
				errs = append(errs, fmt.Errorf("v%d: %s: %w", v, target, err))
			}
		}
		release()
		result.Versions = append(result.Versions, v)
	}

	return result, errors.Join(errs...)
}

// SetConfigEntry edits a config file of a version and mirrors the edit to the
// other files of its chain group. It returns the files written.
func (s *Service) SetConfigEntry(ctx context.Context, version int, rel string, edit domain.ConfigEdit) ([]string, error) {
	resolver, _, err := s.chainResolver(ctx)
	if err != nil {
		return nil, err
	}

	release, err := s.orchestrator.Acquire(version)
	if err != nil {
		return nil, err
	}
	defer release()

	if _, err := os.Stat(s.layout.VersionDir(version)); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %d", domain.ErrNotInstalled, version)
	}
	return resolver.PropagateEdit(cfgfile.New(s.layout.ConfigDir(version)), rel, edit)
}

// ConfigEntry reads one entry of a version's config file
func (s *Service) ConfigEntry(version int, rel, section, key string) (string, bool, error) {
	return cfgfile.New(s.layout.ConfigDir(version)).Get(rel, section, key)
}

// ModChains describes the chain paths of a mod and whether they are confirmed
func (s *Service) ModChains(ctx context.Context, version int, id domain.ModID) ([]string, bool, error) {
	resolver, m, err := s.chainResolver(ctx)
	if err != nil {
		return nil, false, err
	}
	s.refreshListings(resolver, m, version)
	paths, confirmed := resolver.ChainPaths(id)
	return paths, confirmed, nil
}

// chainResolver returns the resolver for the current manifest
func (s *Service) chainResolver(ctx context.Context) (*ChainResolver, *domain.RemoteManifest, error) {
	m, err := s.manifests.FetchManifest(ctx)
	if err != nil {
		return nil, nil, err
	}
	s.chainsMu.Lock()
	defer s.chainsMu.Unlock()
	if s.chains == nil || s.chainsFor != m {
		s.chains = NewChainResolver(m.Chains)
		s.chainsFor = m
	}
	return s.chains, m, nil
}

// refreshListings rebuilds the exact config files of every installed manifest mod from disk.
// A version whose config directory is still empty confirms nothing.
func (s *Service) refreshListings(resolver *ChainResolver, m *domain.RemoteManifest, versions ...int) {
	resolver.ResetListings()
	for _, version := range versions {
		store := cfgfile.New(s.layout.ConfigDir(version))
		files, err := store.List()
		if err != nil {
			s.logger.Debug("could not list config files", "version", version, "err", err)
			continue
		}
		if len(files) == 0 {
			continue
		}
		for _, mod := range m.Mods {
			id := mod.ID()
			dir, ok := FindPluginDir(s.layout.PluginsDir(version), id)
			if !ok {
				continue
			}
			paths, err := store.ListForMod(id, PluginAssemblies(dir))
			if err != nil {
				s.logger.Debug("could not list config files", "mod", id, "err", err)
				continue
			}
			resolver.AddListing(id, paths)
		}
	}
}

// installedManifestMods returns the manifest mods with a plugin folder in any of versions
func (s *Service) installedManifestMods(m *domain.RemoteManifest, versions []int) []domain.ModID {
	var out []domain.ModID
	for _, mod := range m.Mods {
		for _, v := range versions {
			if s.installer.IsInstalled(v, mod.ID()) {
				out = append(out, mod.ID())
				break
			}
		}
	}
	return out
}

// applyChains is the ApplyingConfigChains phase of a task
func (s *Service) applyChains(ctx context.Context, version int) error {
	if s.config.LinkConfigOnInstall {
		if err := s.linkConfig(version); err != nil {
			return err
		}
	}
	return s.applyDisabled(version)
}

// applyDisabled brings every plugin folder of a version in line with the disabled set
func (s *Service) applyDisabled(version int) error {
	mods, err := ScanPlugins(s.layout.PluginsDir(version))
	if err != nil {
		return err
	}
	var errs []error
	for _, mod := range mods {
		disabled, err := s.state.IsDisabled(mod.ID)
		if err != nil {
			return err
		}
		if mod.Enabled != disabled {
			continue
		}
		dir, ok := FindPluginDir(s.layout.PluginsDir(version), mod.ID)
		if !ok {
			continue
		}
		if err := SetFilesEnabled(dir, !disabled); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", mod.ID, err))
		}
	}
	return errors.Join(errs...)
}

// CacheSize returns the bytes used by cached archives and the registry index
func (s *Service) CacheSize() (int64, error) {
	return s.cache.Size()
}

// ClearCache removes every cached archive and the registry index
func (s *Service) ClearCache() error {
	return s.cache.Clear()
}

// DisabledMods returns the global disabled set
func (s *Service) DisabledMods() ([]domain.ModID, error) {
	return s.state.Disabled()
}

// IsModDisabled reports whether a mod is in the global disabled set
func (s *Service) IsModDisabled(id domain.ModID) (bool, error) {
	return s.state.IsDisabled(id)
}
