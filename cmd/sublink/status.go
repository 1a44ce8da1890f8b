package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"sublink/internal/builder"
	"sublink/internal/collectors"
	"sublink/internal/config"
	"sublink/internal/logger"
	"sublink/internal/publishers"
	"sublink/internal/rules"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration, plugins and store usage",
	Long:  `Displays a dashboard of the loaded configuration: store location and size, registered plugins, rule presets, and the configured collectors, builds and publishers.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			logger.Log.Fatalf("Error loading config: %v", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)

		fmt.Println("\n📊 \033[1mSUBLINK STATUS DASHBOARD\033[0m")
		fmt.Println("────────────────────────────────────────")

		// System Section
		fmt.Fprintln(w, "\033[1;36m[ SYSTEM ]\033[0m\t")
		fmt.Fprintf(w, "  Listen:\t%s\n", cfg.Server.Listen)
		fmt.Fprintf(w, "  Store:\t%s (%s)\n", cfg.Store.Path, cfg.Store.Driver)
		fmt.Fprintf(w, "  Store Size:\t%s\n", formatBytes(getFileSize(cfg.Store.Path)))
		if walSize := getFileSize(cfg.Store.Path + "-wal"); walSize > 0 {
			fmt.Fprintf(w, "  WAL Size:\t%s (pending checkpoint)\n", formatBytes(walSize))
		}
		geo := "missing (no region groups)"
		if getFileSize(cfg.GeoIP.CountryPath) > 0 {
			geo = cfg.GeoIP.CountryPath
		}
		fmt.Fprintf(w, "  GeoIP:\t%s\n", geo)
		fmt.Fprintln(w, "\t")

		// Plugins Section
		targets := make([]string, 0)
		for _, t := range builder.Targets() {
			targets = append(targets, string(t))
		}
		fmt.Fprintln(w, "\033[1;36m[ PLUGINS ]\033[0m\t")
		fmt.Fprintf(w, "  Targets:\t%s\n", strings.Join(targets, ", "))
		fmt.Fprintf(w, "  Collectors:\t%s\n", strings.Join(collectors.Names(), ", "))
		fmt.Fprintf(w, "  Publishers:\t%s\n", strings.Join(publishers.Names(), ", "))
		fmt.Fprintf(w, "  Rule presets:\t%s (default %s)\n", strings.Join(rules.PresetNames(), ", "), cfg.Rules.DefaultPreset)
		fmt.Fprintln(w, "\t")

		// Pipeline Section
		fmt.Fprintln(w, "\033[1;36m[ PIPELINE ]\033[0m\t")
		if len(cfg.Collectors)+len(cfg.Builds)+len(cfg.Publishers) == 0 {
			fmt.Fprintln(w, "  (Nothing configured)")
		}
		for _, c := range cfg.Collectors {
			fmt.Fprintf(w, "  collector %s:\t%s\n", c.Name, c.Type)
		}
		for _, b := range cfg.Builds {
			sources := "all collectors"
			if len(b.Collectors) > 0 {
				sources = strings.Join(b.Collectors, ", ")
			}
			fmt.Fprintf(w, "  build %s:\t%s from %s\n", b.Name, b.Target, sources)
		}
		for _, p := range cfg.Publishers {
			builds := "all builds"
			if len(p.Builds) > 0 {
				builds = strings.Join(p.Builds, ", ")
			}
			fmt.Fprintf(w, "  publisher %s:\t%s <- %s\n", p.Name, p.Type, builds)
		}

		w.Flush()
		fmt.Println("")
	},
}

// Helpers

func getFileSize(path string) int64 {
	fi, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return fi.Size()
}

func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
