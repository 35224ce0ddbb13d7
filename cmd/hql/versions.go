package main

import (
	"fmt"
	"os"
	"slices"
	"sort"
	"text/tabwriter"

	"github.com/hq-launcher/hql/internal/domain"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var versionsCmd = &cobra.Command{
	Use:   "versions",
	Short: "List game versions and their install state",
	Args:  cobra.NoArgs,
	RunE:  runVersions,
}

var manifestRefresh bool

var manifestCmd = &cobra.Command{
	Use:   "manifest",
	Short: "Show the remote manifest",
	Long: `Show the remote manifest: the game versions it offers, its mods and its
config chains. The manifest is fetched once per run; --refresh also drops
the cached package index.`,
	Args: cobra.NoArgs,
	RunE: runManifest,
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage downloaded mod archives",
}

var cacheSizeCmd = &cobra.Command{
	Use:   "size",
	Short: "Show the size of the download cache",
	Args:  cobra.NoArgs,
	RunE:  runCacheSize,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached archive",
	Args:  cobra.NoArgs,
	RunE:  runCacheClear,
}

func init() {
	manifestCmd.Flags().BoolVar(&manifestRefresh, "refresh", false, "fetch the manifest again")

	cacheCmd.AddCommand(cacheSizeCmd)
	cacheCmd.AddCommand(cacheClearCmd)

	rootCmd.AddCommand(versionsCmd)
	rootCmd.AddCommand(manifestCmd)
	rootCmd.AddCommand(cacheCmd)
}

func runVersions(cmd *cobra.Command, args []string) error {
	svc, err := initService()
	if err != nil {
		return fmt.Errorf("initializing service: %w", err)
	}
	defer closeService(svc)

	installed, err := svc.InstalledVersions()
	if err != nil {
		return err
	}
	isInstalled := make(map[int]bool, len(installed))
	for _, v := range installed {
		isInstalled[v] = true
	}

	// installed versions are listed even when the manifest is unreachable
	var offered []int
	m, err := svc.Manifest(cmd.Context(), false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: %s\n", domain.Describe(err))
	} else {
		offered = m.Versions()
	}

	all := append([]int(nil), offered...)
	for _, v := range installed {
		if !slices.Contains(offered, v) {
			all = append(all, v)
		}
	}
	sort.Ints(all)

	if len(all) == 0 {
		fmt.Println("No versions available.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tINSTALLED\tMODS\tCONFIG")
	fmt.Fprintln(w, "-------\t---------\t----\t------")
	for _, v := range all {
		if !isInstalled[v] {
			fmt.Fprintf(w, "v%d\tno\t-\t-\n", v)
			continue
		}
		mods, err := svc.InstalledMods(v)
		if err != nil {
			return err
		}
		link, _, err := svc.ConfigLinkState(v)
		if err != nil {
			return err
		}
		status := "yes"
		if task, ok := svc.Orchestrator().Snapshot(v); ok && !task.Phase.IsTerminal() {
			status = task.Phase.String()
		}
		fmt.Fprintf(w, "v%d\t%s\t%d\t%s\n", v, status, len(mods), link)
	}
	w.Flush()
	return nil
}

func runManifest(cmd *cobra.Command, args []string) error {
	svc, err := initService()
	if err != nil {
		return fmt.Errorf("initializing service: %w", err)
	}
	defer closeService(svc)

	m, err := svc.Manifest(cmd.Context(), manifestRefresh)
	if err != nil {
		return err
	}

	fmt.Printf("Revision %d\n\n", m.Revision)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tDEPOT MANIFEST")
	for _, v := range m.Versions() {
		fmt.Fprintf(w, "v%d\t%s\n", v, m.Depots[v])
	}
	w.Flush()

	fmt.Println()
	w = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MOD\tENABLED\tVERSIONS\tPINS")
	for _, mod := range m.Mods {
		enabled := "yes"
		if !mod.Enabled {
			enabled = "no"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", mod.ID(), enabled, boundsText(mod), len(mod.VersionPins))
	}
	w.Flush()

	if verbose && len(m.Chains) > 0 {
		fmt.Println("\nConfig chains:")
		for _, chain := range m.Chains {
			fmt.Printf("  %v\n", chain)
		}
	}
	return nil
}

func boundsText(mod domain.ModEntry) string {
	switch {
	case mod.LowBound == nil && mod.HighBound == nil:
		return "all"
	case mod.LowBound == nil:
		return fmt.Sprintf("<= v%d", *mod.HighBound)
	case mod.HighBound == nil:
		return fmt.Sprintf(">= v%d", *mod.LowBound)
	default:
		return fmt.Sprintf("v%d-v%d", *mod.LowBound, *mod.HighBound)
	}
}

func runCacheSize(cmd *cobra.Command, args []string) error {
	svc, err := initService()
	if err != nil {
		return fmt.Errorf("initializing service: %w", err)
	}
	defer closeService(svc)

	size, err := svc.CacheSize()
	if err != nil {
		return err
	}
	fmt.Printf("Cache: %s (%s)\n", humanize.Bytes(uint64(size)), svc.Layout().CacheDir())
	return nil
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	svc, err := initService()
	if err != nil {
		return fmt.Errorf("initializing service: %w", err)
	}
	defer closeService(svc)

	size, err := svc.CacheSize()
	if err != nil {
		return err
	}
	if err := svc.ClearCache(); err != nil {
		return err
	}
	fmt.Printf("Freed %s.\n", humanize.Bytes(uint64(size)))
	return nil
}
