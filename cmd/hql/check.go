package main

import (
	"fmt"
	"os"

	"github.com/hq-launcher/hql/internal/domain"
	"github.com/hq-launcher/hql/internal/tui"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check <version>",
	Short: "Check an installed version for mod updates",
	Long: `Compare the mods installed for a version with what the manifest selects
today. A mod is listed when its target version differs from the installed
one, or when it applies to the version but is missing.

Examples:
  hql check 73`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

type checkResult struct {
	updatable []domain.ModID
	err       error
}

func runCheck(cmd *cobra.Command, args []string) error {
	v, err := parseVersion(args[0])
	if err != nil {
		return err
	}

	svc, err := initService()
	if err != nil {
		return fmt.Errorf("initializing service: %w", err)
	}
	defer closeService(svc)

	ctx := cmd.Context()
	var updatable []domain.ModID

	if interactive() {
		events, unsubscribe := svc.Bus().Subscribe(64)
		defer unsubscribe()

		done := make(chan checkResult, 1)
		go func() {
			ids, err := svc.CheckUpdates(ctx, v)
			done <- checkResult{updatable: ids, err: err}
		}()

		if _, err := tui.Run(ctx, tui.Options{Version: v, Check: true, Events: events, KeyMode: keyMode}); err != nil {
			fmt.Fprintf(os.Stderr, "warning: progress view: %v\n", err)
		}
		res := <-done
		updatable, err = res.updatable, res.err
	} else {
		updatable, err = svc.CheckUpdates(ctx, v)
	}

	if err != nil && len(updatable) == 0 {
		return err
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}

	if len(updatable) == 0 {
		fmt.Printf("v%d is up to date.\n", v)
		return nil
	}

	fmt.Printf("%d mod(s) to update for v%d:\n", len(updatable), v)
	for _, id := range updatable {
		line := "  " + id.String()
		if mod, err := svc.InstalledMod(v, id); err == nil && mod != nil {
			line += " (installed " + mod.Version + ")"
		} else {
			line += " (missing)"
		}
		fmt.Println(line)
	}
	fmt.Printf("\nRun 'hql update %d' to install them.\n", v)
	return nil
}
