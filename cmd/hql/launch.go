package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var launchCmd = &cobra.Command{
	Use:   "launch <version>",
	Short: "Start an installed game version",
	Long: `Start the game of an installed version with its mods. Disabled mods are
re-applied to the version's plugin folders first.

hql stays in the foreground until the game exits; an interrupt stops the game.
Set launch_wrapper in config.yaml to run it through Proton, e.g. [proton, run].

Examples:
  hql launch 73`,
	Args: cobra.ExactArgs(1),
	RunE: runLaunch,
}

func init() {
	rootCmd.AddCommand(launchCmd)
}

func runLaunch(cmd *cobra.Command, args []string) error {
	v, err := parseVersion(args[0])
	if err != nil {
		return err
	}

	svc, err := initService()
	if err != nil {
		return fmt.Errorf("initializing service: %w", err)
	}
	defer closeService(svc)

	if err := svc.Launch(v); err != nil {
		return err
	}
	fmt.Printf("v%d started. Press Ctrl+C to stop the game.\n", v)

	ctx := cmd.Context()
	err = svc.WaitGame(ctx)
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		if _, err := svc.StopGame(); err != nil {
			return err
		}
		fmt.Printf("v%d stopped.\n", v)
		return nil
	}
	if err != nil {
		return fmt.Errorf("game exited: %w", err)
	}
	fmt.Printf("v%d exited.\n", v)
	return nil
}
