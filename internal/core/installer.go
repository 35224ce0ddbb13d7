package core

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/hq-launcher/hql/internal/domain"
	"github.com/hq-launcher/hql/internal/storage/cache"

	"github.com/charmbracelet/log"
)

// Share of a step spent downloading; the rest is extraction
const downloadWeight = 0.8

// StepProgress is reported while a plan step runs
type StepProgress struct {
	Fraction        float64 // 0..1 across download and extraction
	BytesDownloaded int64
	BytesTotal      int64
}

// Installer fetches package archives through the cache and extracts them into a version
type Installer struct {
	cache      *cache.Cache
	downloader *Downloader
	extractor  *Extractor
	layout     Layout
	logger     *log.Logger
}

// NewInstaller creates a new installer
func NewInstaller(c *cache.Cache, downloader *Downloader, layout Layout, logger *log.Logger) *Installer {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Installer{
		cache:      c,
		downloader: downloader,
		extractor:  NewExtractor(),
		layout:     layout,
		logger:     logger,
	}
}

// Install deploys one plan step into a game version
func (i *Installer) Install(ctx context.Context, version int, step PlanStep, progress func(StepProgress)) error {
	var current StepProgress
	report := func(f float64) {
		current.Fraction = f
		if progress != nil {
			progress(current)
		}
	}

	archive, err := i.fetch(ctx, step, func(p DownloadProgress) {
		current.BytesDownloaded = p.Downloaded
		current.BytesTotal = p.TotalBytes
		report(p.Fraction() * downloadWeight)
	})
	if err != nil {
		return err
	}
	report(downloadWeight)

	onExtract := func(done, total int) {
		if total > 0 {
			report(downloadWeight + (1-downloadWeight)*float64(done)/float64(total))
		}
	}

	if step.Loader {
		err = i.extractor.ExtractLoader(archive, i.layout.VersionDir(version), onExtract)
	} else {
		err = i.extractor.ExtractPlugin(archive, i.layout.PluginDir(version, step.ID.Owner, step.ID.Name), onExtract)
	}
	if err != nil {
		return fmt.Errorf("extracting %s: %w", step.Name(), err)
	}

	report(1)
	return nil
}

// fetch returns the cached archive for step, downloading it when missing
func (i *Installer) fetch(ctx context.Context, step PlanStep, progress ProgressFunc) (string, error) {
	path := i.cache.ArchivePath(step.ID, step.Version)
	if i.cache.HasArchive(step.ID, step.Version) {
		intact, err := i.cache.VerifyArchive(step.ID, step.Version)
		if err == nil && intact {
			if err := i.extractor.CheckArchive(path); err == nil {
				i.logger.Debug("using cached archive", "package", step.Name())
				return path, nil
			}
		} else {
			i.logger.Warn("cached archive does not match its checksum", "package", step.Name(), "err", err)
		}
		_ = i.cache.DeleteArchive(step.ID, step.Version)
	}

	i.logger.Info("downloading package", "package", step.Name())
	result, err := i.downloader.Download(ctx, step.URL, path, progress)
	if err != nil {
		return "", fmt.Errorf("downloading %s: %w", step.Name(), err)
	}

	if err := i.extractor.CheckArchive(path); err != nil {
		_ = i.cache.DeleteArchive(step.ID, step.Version)
		return "", fmt.Errorf("downloading %s: %w", step.Name(), err)
	}
	if err := i.cache.SaveChecksum(step.ID, step.Version, result.Checksum); err != nil {
		i.logger.Warn("could not record archive checksum", "package", step.Name(), "err", err)
	}
	return path, nil
}

// Uninstall removes a mod's plugin folder from a version
func (i *Installer) Uninstall(version int, id domain.ModID) error {
	dir, ok := FindPluginDir(i.layout.PluginsDir(version), id)
	if !ok {
		return nil
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("removing %s: %w", id, err)
	}
	return nil
}

// IsInstalled checks if a mod's plugin folder exists in a version
func (i *Installer) IsInstalled(version int, id domain.ModID) bool {
	_, ok := FindPluginDir(i.layout.PluginsDir(version), id)
	return ok
}
