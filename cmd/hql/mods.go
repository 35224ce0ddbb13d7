package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/hq-launcher/hql/internal/core"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var modsCmd = &cobra.Command{
	Use:   "mods",
	Short: "List, enable, disable and remove installed mods",
}

var modsListCmd = &cobra.Command{
	Use:   "list <version>",
	Short: "List the mods installed for a version",
	Args:  cobra.ExactArgs(1),
	RunE:  runModsList,
}

var modsEnableCmd = &cobra.Command{
	Use:   "enable <owner-name>",
	Short: "Enable a mod in every installed version",
	Long: `Enable a mod everywhere it is installed. Installed mods that share a
config chain with it follow along.

Examples:
  hql mods enable giosuel-Imperium`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runModsSetEnabled(cmd, args[0], true)
	},
}

var modsDisableCmd = &cobra.Command{
	Use:   "disable <owner-name>",
	Short: "Disable a mod in every installed version",
	Long: `Disable a mod everywhere it is installed and keep it disabled in future
installs. Installed mods that share a config chain with it follow along.

Examples:
  hql mods disable giosuel-Imperium`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runModsSetEnabled(cmd, args[0], false)
	},
}

var modsDisabledCmd = &cobra.Command{
	Use:   "disabled",
	Short: "List the globally disabled mods",
	Args:  cobra.NoArgs,
	RunE:  runModsDisabled,
}

var modsScanCmd = &cobra.Command{
	Use:   "scan <version>",
	Short: "Rebuild the installed-mod records from the plugins directory",
	Args:  cobra.ExactArgs(1),
	RunE:  runModsScan,
}

var modsRemoveCmd = &cobra.Command{
	Use:   "remove <version> <owner-name>",
	Short: "Remove a mod from a version",
	Args:  cobra.ExactArgs(2),
	RunE:  runModsRemove,
}

func init() {
	modsCmd.AddCommand(modsListCmd)
	modsCmd.AddCommand(modsEnableCmd)
	modsCmd.AddCommand(modsDisableCmd)
	modsCmd.AddCommand(modsDisabledCmd)
	modsCmd.AddCommand(modsScanCmd)
	modsCmd.AddCommand(modsRemoveCmd)
	rootCmd.AddCommand(modsCmd)
}

func runModsList(cmd *cobra.Command, args []string) error {
	v, err := parseVersion(args[0])
	if err != nil {
		return err
	}

	svc, err := initService()
	if err != nil {
		return fmt.Errorf("initializing service: %w", err)
	}
	defer closeService(svc)

	mods, err := svc.InstalledMods(v)
	if err != nil {
		return fmt.Errorf("getting installed mods: %w", err)
	}

	if len(mods) == 0 {
		fmt.Println("No mods installed.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tVERSION\tENABLED\tINSTALLED")
	fmt.Fprintln(w, "--\t-------\t-------\t---------")

	for _, mod := range mods {
		enabled := "yes"
		if !mod.Enabled {
			enabled = "no"
		}
		version := mod.Version
		if mod.PreviousVersion != "" {
			version += " (was " + mod.PreviousVersion + ")"
		}
		installed := "-"
		if !mod.InstalledAt.IsZero() {
			installed = humanize.Time(mod.InstalledAt)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", mod.ID, version, enabled, installed)
	}
	w.Flush()

	if verbose {
		fmt.Printf("\nTotal: %d mod(s)\n", len(mods))
	}
	return nil
}

func runModsSetEnabled(cmd *cobra.Command, arg string, enabled bool) error {
	id, err := parseModID(arg)
	if err != nil {
		return err
	}

	svc, err := initService()
	if err != nil {
		return fmt.Errorf("initializing service: %w", err)
	}
	defer closeService(svc)

	result, err := svc.SetModEnabled(cmd.Context(), id, enabled)
	if result != nil {
		printEnableResult(result, enabled)
	}
	return err
}

func printEnableResult(result *core.EnableResult, enabled bool) {
	verb := "Disabled"
	if enabled {
		verb = "Enabled"
	}
	for _, id := range result.Mods {
		fmt.Printf("%s %s\n", verb, id)
	}
	if len(result.Versions) > 0 {
		fmt.Printf("Applied to %d installed version(s).\n", len(result.Versions))
	}
	for _, id := range result.Provisional {
		fmt.Printf("note: %s may share configs with it; not changed\n", id)
	}
}

func runModsDisabled(cmd *cobra.Command, args []string) error {
	svc, err := initService()
	if err != nil {
		return fmt.Errorf("initializing service: %w", err)
	}
	defer closeService(svc)

	ids, err := svc.DisabledMods()
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		fmt.Println("No mods disabled.")
		return nil
	}
	for _, id := range ids {
		fmt.Println(id)
	}
	return nil
}

func runModsScan(cmd *cobra.Command, args []string) error {
	v, err := parseVersion(args[0])
	if err != nil {
		return err
	}

	svc, err := initService()
	if err != nil {
		return fmt.Errorf("initializing service: %w", err)
	}
	defer closeService(svc)

	mods, err := svc.ScanInstalled(v)
	if err != nil {
		return err
	}
	fmt.Printf("Found %d mod(s) in v%d.\n", len(mods), v)
	return nil
}

func runModsRemove(cmd *cobra.Command, args []string) error {
	v, err := parseVersion(args[0])
	if err != nil {
		return err
	}
	id, err := parseModID(args[1])
	if err != nil {
		return err
	}

	svc, err := initService()
	if err != nil {
		return fmt.Errorf("initializing service: %w", err)
	}
	defer closeService(svc)

	if err := svc.RemoveMod(v, id); err != nil {
		return err
	}
	fmt.Printf("Removed %s from v%d.\n", id, v)
	return nil
}
