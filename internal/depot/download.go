package depot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/hq-launcher/hql/internal/domain"
)

// Progress is reported while the depot downloads. Current/Total are basis points;
// the tool prints percentages only, so Bytes is known once its closing summary arrives.
type Progress struct {
	Current int64
	Total   int64
	Detail  string
	Bytes   int64
}

// Downloader fetches game depots non-interactively with the remembered login.
type Downloader struct {
	opts Options
}

// NewDownloader creates a downloader
func NewDownloader(opts Options) *Downloader {
	opts = opts.withDefaults()
	if opts.Store == nil {
		opts.Store = &MemoryLoginStore{}
	}
	return &Downloader{opts: opts}
}

// Download materializes a depot manifest into dir. It never prompts: any
// credential request fails with domain.ErrAuthRequired. Cancelling ctx kills
// the tool and returns domain.ErrCancelled.
func (d *Downloader) Download(ctx context.Context, manifestID, dir string, onProgress func(Progress)) error {
	state, err := d.opts.Store.LoginState()
	if err != nil {
		return fmt.Errorf("reading login state: %w", err)
	}
	if !state.LoggedIn || state.Username == "" {
		return fmt.Errorf("%w: not logged in", domain.ErrAuthRequired)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating version dir: %w", err)
	}
	if onProgress == nil {
		onProgress = func(Progress) {}
	}

	proc, err := d.opts.Runner.Start(ctx, Command{
		Path: d.opts.Tool.Path,
		Args: d.opts.Tool.DownloadArgs(state.Username, manifestID, dir),
		Dir:  d.opts.Tool.ConfigDir,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrSubprocessFailure, err)
	}

	abort := func(err error) error {
		_ = proc.Kill()
		_ = discard(proc)
		return err
	}

	ticker := time.NewTicker(d.opts.Tick)
	defer ticker.Stop()

	lines := proc.Lines()
	lastOutput := time.Now()
	var lastBP int64
	lastLine := ""

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return abort(domain.ErrCancelled)
			}
			return abort(ctx.Err())

		case line, ok := <-lines:
			if !ok {
				if werr := proc.Wait(); werr != nil {
					if ctx.Err() != nil {
						return domain.ErrCancelled
					}
					return fmt.Errorf("%w: %w (last output: %q)", domain.ErrSubprocessFailure, werr, lastLine)
				}
				d.opts.Logger.Info("depot download complete", "manifest", manifestID)
				return nil
			}
			lastOutput = time.Now()

			sig := d.opts.Translator.Translate(line)
			if sig.Line == "" {
				continue
			}
			lastLine = sig.Line
			if sig.Kind.NeedsAuth() {
				d.opts.Logger.Warn("depot tool asked for credentials during download", "line", sig.Line)
				return abort(fmt.Errorf("%w: %s", domain.ErrAuthRequired, sig.Line))
			}
			if sig.Kind == SignalProgress {
				lastBP = sig.Current
				onProgress(Progress{Current: sig.Current, Total: sig.Total, Detail: sig.Detail})
				continue
			}
			if sig.Kind == SignalDownloadComplete && sig.Bytes > 0 {
				onProgress(Progress{Current: ProgressTotal, Total: ProgressTotal, Bytes: sig.Bytes})
			}
			d.opts.Logger.Debug(sig.Line, "signal", sig.Kind)

		case <-ticker.C:
			silent := time.Since(lastOutput)
			if lastBP < 1 && silent >= d.opts.StallBeforeProgress {
				return abort(fmt.Errorf("%w: depot tool is waiting for a login", domain.ErrAuthRequired))
			}
			if silent >= d.opts.StallAfterProgress {
				return abort(fmt.Errorf("%w: download stalled for %s", domain.ErrSubprocessFailure, silent.Round(time.Second)))
			}
		}
	}
}
