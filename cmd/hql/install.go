package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/hq-launcher/hql/internal/core"
	"github.com/hq-launcher/hql/internal/domain"
	"github.com/hq-launcher/hql/internal/tui"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var installCmd = &cobra.Command{
	Use:   "install <version>",
	Short: "Install a game version with its mods",
	Long: `Download the game files of a version through the depot tool, install the
mod loader and every mod the manifest selects for it, then link configs.

A version whose game files are already complete is not downloaded again.
Only the game download can be cancelled; a cancelled install is removed.

Examples:
  hql install 73
  hql install v56 --plain`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTask(cmd, args[0], domain.ModeInstall)
	},
}

var updateCmd = &cobra.Command{
	Use:   "update <version>",
	Short: "Install mod updates for an installed version",
	Long: `Check which mods of an installed version differ from the manifest and
install only those. Game files are left alone.

Examples:
  hql update 73`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTask(cmd, args[0], domain.ModeUpdate)
	},
}

func init() {
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(updateCmd)
}

func runTask(cmd *cobra.Command, arg string, mode domain.TaskMode) error {
	v, err := parseVersion(arg)
	if err != nil {
		return err
	}

	svc, err := initService()
	if err != nil {
		return fmt.Errorf("initializing service: %w", err)
	}
	defer closeService(svc)

	ctx := cmd.Context()
	events, unsubscribe := svc.Bus().Subscribe(64)
	defer unsubscribe()

	task, err := svc.Orchestrator().Start(v, mode)
	if err != nil {
		return err
	}
	return followTask(ctx, svc, task, events)
}

// followTask shows a started task until it ends
func followTask(ctx context.Context, svc *core.Service, task *core.Task, events <-chan core.Event) error {
	if interactive() {
		app, err := tui.Run(ctx, tui.Options{
			Version:   task.Snapshot().Version,
			Task:      task.Snapshot(),
			Events:    events,
			Canceller: svc.Orchestrator(),
			KeyMode:   keyMode,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: progress view: %v\n", err)
		}
		// closing the view early counts as an interrupt
		if !app.Done() {
			requestCancel(svc.Orchestrator(), task)
		}
		final, err := task.Wait(context.Background())
		return reportTask(final, err)
	}

	go printProgress(os.Stdout, events)
	return waitTask(ctx, svc.Orchestrator(), task)
}

// waitTask waits for the task, requesting cancellation when ctx ends first.
// A task past the download keeps running to completion.
func waitTask(ctx context.Context, orch *core.Orchestrator, task *core.Task) error {
	select {
	case <-task.Done():
	case <-ctx.Done():
		requestCancel(orch, task)
	}
	final, err := task.Wait(context.Background())
	return reportTask(final, err)
}

func requestCancel(orch *core.Orchestrator, task *core.Task) {
	select {
	case <-task.Done():
		return
	default:
	}
	if err := orch.Cancel(task.Snapshot().Version); err != nil {
		fmt.Fprintln(os.Stderr, "Waiting for the current step to finish...")
		return
	}
	fmt.Fprintln(os.Stderr, "Cancelling download...")
}

func reportTask(final domain.DownloadTask, err error) error {
	if err != nil {
		fmt.Fprintln(os.Stderr, domain.Describe(err))
		return err
	}
	fmt.Printf("v%d %s finished.\n", final.Version, final.Mode)
	return nil
}

// printProgress writes one line per step until events is closed
func printProgress(w io.Writer, events <-chan core.Event) {
	lastStep := -1
	lastPhase := domain.Phase(-1)
	for e := range events {
		switch e.Name {
		case core.EventDownloadProgress:
			if e.Step == lastStep && e.Phase == lastPhase {
				continue
			}
			lastStep, lastPhase = e.Step, e.Phase
			fmt.Fprintln(w, progressLine(e))
		case core.EventUpdatableFinished:
			fmt.Fprintf(w, "%d mod(s) to update\n", len(e.Updatable))
		}
	}
}

func progressLine(e core.Event) string {
	line := e.Phase.String()
	if e.StepsTotal > 0 && e.Step > 0 {
		line = fmt.Sprintf("[%d/%d] %s", e.Step, e.StepsTotal, line)
	}
	if e.StepName != "" {
		line += ": " + e.StepName
	}
	if e.BytesTotal > 0 {
		line += fmt.Sprintf(" (%s)", humanize.Bytes(uint64(e.BytesTotal)))
	}
	return line
}

// interactive reports whether the progress view should be shown
func interactive() bool {
	return !plain && term.IsTerminal(int(os.Stdout.Fd()))
}
