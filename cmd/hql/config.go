package main

import (
	"fmt"
	"strings"

	"github.com/hq-launcher/hql/internal/domain"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage mod config files and their sharing between versions",
	Long: `Every installed version can link its BepInEx config directory to one shared
directory, so a setting changed in one version applies to all of them.

Files listed together in a config chain of the manifest are kept in step:
setting an entry in one writes it to every file of its chain.`,
}

var configLinkCmd = &cobra.Command{
	Use:   "link <version>",
	Short: "Link a version's config directory to the shared one",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConfigLink(args[0], true)
	},
}

var configUnlinkCmd = &cobra.Command{
	Use:   "unlink <version>",
	Short: "Give a version its own copy of the shared configs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConfigLink(args[0], false)
	},
}

var configStatusCmd = &cobra.Command{
	Use:   "status <version>",
	Short: "Show whether a version's configs are linked",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigStatus,
}

var configSetCmd = &cobra.Command{
	Use:   "set <version> <file> <section.key> <value>",
	Short: "Set a config entry and propagate it along its chain",
	Long: `Set one entry of a config file. The entry is written to every file that
shares a config chain with it.

Examples:
  hql config set 73 MoreCompany.cfg General.MaxPlayers 32`,
	Args: cobra.ExactArgs(4),
	RunE: runConfigSet,
}

var configGetCmd = &cobra.Command{
	Use:   "get <version> <file> <section.key>",
	Short: "Print a config entry",
	Args:  cobra.ExactArgs(3),
	RunE:  runConfigGet,
}

var configChainsCmd = &cobra.Command{
	Use:   "chains <version> <owner-name>",
	Short: "Show the config files chained with a mod's configs",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigChains,
}

func init() {
	configCmd.AddCommand(configLinkCmd)
	configCmd.AddCommand(configUnlinkCmd)
	configCmd.AddCommand(configStatusCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configChainsCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigLink(arg string, link bool) error {
	v, err := parseVersion(arg)
	if err != nil {
		return err
	}

	svc, err := initService()
	if err != nil {
		return fmt.Errorf("initializing service: %w", err)
	}
	defer closeService(svc)

	if link {
		if err := svc.LinkConfig(v); err != nil {
			return err
		}
		fmt.Printf("v%d configs linked.\n", v)
		return nil
	}

	if err := svc.UnlinkConfig(v); err != nil {
		return err
	}
	fmt.Printf("v%d configs unlinked.\n", v)
	return nil
}

func runConfigStatus(cmd *cobra.Command, args []string) error {
	v, err := parseVersion(args[0])
	if err != nil {
		return err
	}

	svc, err := initService()
	if err != nil {
		return fmt.Errorf("initializing service: %w", err)
	}
	defer closeService(svc)

	state, method, err := svc.ConfigLinkState(v)
	if err != nil {
		return err
	}
	if state == domain.ConfigLinked {
		fmt.Printf("v%d: %s (%s)\n", v, state, method)
		return nil
	}
	fmt.Printf("v%d: %s\n", v, state)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	v, err := parseVersion(args[0])
	if err != nil {
		return err
	}
	section, key, err := parseEntryKey(args[2])
	if err != nil {
		return err
	}

	svc, err := initService()
	if err != nil {
		return fmt.Errorf("initializing service: %w", err)
	}
	defer closeService(svc)

	edit := domain.ConfigEdit{Section: section, Key: key, Value: args[3]}
	written, err := svc.SetConfigEntry(cmd.Context(), v, args[1], edit)
	if err != nil {
		return err
	}
	for _, rel := range written {
		fmt.Printf("%s: [%s] %s = %s\n", rel, section, key, args[3])
	}
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	v, err := parseVersion(args[0])
	if err != nil {
		return err
	}
	section, key, err := parseEntryKey(args[2])
	if err != nil {
		return err
	}

	svc, err := initService()
	if err != nil {
		return fmt.Errorf("initializing service: %w", err)
	}
	defer closeService(svc)

	value, ok, err := svc.ConfigEntry(v, args[1], section, key)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s has no entry %s in [%s]", args[1], key, section)
	}
	fmt.Println(value)
	return nil
}

func runConfigChains(cmd *cobra.Command, args []string) error {
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

	paths, confirmed, err := svc.ModChains(cmd.Context(), v, id)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		fmt.Printf("%s shares no configs.\n", id)
		return nil
	}
	for _, p := range paths {
		fmt.Println(p)
	}
	if !confirmed {
		fmt.Println("\nnote: matched by name; install the mod to confirm")
	}
	return nil
}

// parseEntryKey splits "Section.Key" at the first dot
func parseEntryKey(s string) (string, string, error) {
	i := strings.Index(s, ".")
	if i <= 0 || i == len(s)-1 {
		return "", "", fmt.Errorf("invalid entry %q, want Section.Key", s)
	}
	return s[:i], s[i+1:], nil
}
