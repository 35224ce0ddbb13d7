package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync [version]",
	Short: "Re-apply the manifest when its revision changed",
	Long: `Compare the manifest revision a version's mods were installed from with the
remote one. When they differ, install the mods that changed; game files are left alone.
Without a version the highest installed one is synced.

Examples:
  hql sync
  hql sync 73`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	svc, err := initService()
	if err != nil {
		return fmt.Errorf("initializing service: %w", err)
	}
	defer closeService(svc)

	var v int
	if len(args) == 1 {
		if v, err = parseVersion(args[0]); err != nil {
			return err
		}
	} else if v, err = svc.LatestInstalledVersion(); err != nil {
		return err
	}

	ctx := cmd.Context()
	events, unsubscribe := svc.Bus().Subscribe(64)
	defer unsubscribe()

	task, err := svc.Sync(ctx, v)
	if err != nil {
		return err
	}
	if task == nil {
		fmt.Printf("v%d is in sync with the manifest.\n", v)
		return nil
	}
	return followTask(ctx, svc, task, events)
}
