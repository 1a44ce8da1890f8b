package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"sublink/internal/config"
	"sublink/internal/logger"
	"sublink/internal/publishers"
)

var (
	buildParams map[string]string
	buildDedupe bool
	buildOutDir string
	buildReport bool
)

var buildCmd = &cobra.Command{
	Use:   "build [build_names...]",
	Short: "Collect links and render the configured builds",
	Long: `Run the collectors referenced by each build in config.yaml and render the
build's target config. Artifacts go to stdout, or to --out as one file each.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			logger.Log.Fatalf("Error loading config: %v", err)
		}
		if len(args) > 0 {
			cfg.FilterBuilds(args)
		}
		if len(cfg.Builds) == 0 {
			logger.Log.Warn("No builds matched the provided names.")
			return
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		initGeoIP(cfg)
		st := openStore(cfg, cfg.Builds)
		if st != nil {
			defer st.Close()
		}

		p := newPipeline(cfg, st)
		p.collectorParams = buildParams
		p.dedupe = p.dedupe || buildDedupe
		artifacts := p.buildAll(ctx, cfg.Builds)
		if buildReport {
			p.report.PrintReport(os.Stderr)
		}
		if len(artifacts) == 0 {
			logger.Log.Fatal("❌ No builds succeeded.")
		}

		pubType, params := "stdout", map[string]interface{}{}
		if buildOutDir != "" {
			pubType, params = "file", map[string]interface{}{"dir": buildOutDir}
		}
		out, err := publishers.Get(pubType)
		if err != nil {
			logger.Log.Fatalf("%v", err)
		}
		if err := out.Publish(ctx, artifacts, params); err != nil {
			logger.Log.Fatalf("Failed to write artifacts: %v", err)
		}
	},
}

func init() {
	buildCmd.Flags().StringToStringVarP(&buildParams, "param", "p", nil, "Override collector params")
	buildCmd.Flags().BoolVar(&buildDedupe, "dedupe", false, "Drop nodes that describe the same server")
	buildCmd.Flags().StringVarP(&buildOutDir, "out", "o", "", "Write artifacts into this directory")
	buildCmd.Flags().BoolVar(&buildReport, "report", true, "Print the build report to stderr")
	rootCmd.AddCommand(buildCmd)
}
