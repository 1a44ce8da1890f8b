package main

import (
	"context"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"sublink/internal/builder"
	"sublink/internal/config"
	"sublink/internal/convert"
	"sublink/internal/geoip"
	"sublink/internal/logger"
	"sublink/internal/store"
)

var (
	convertRules    string
	convertCustom   string
	convertConfigID string
	convertValidate bool
	convertInput    string
)

var convertCmd = &cobra.Command{
	Use:   "convert <target>",
	Short: "Convert links or subscription URLs into one config",
	Long: `Reads share links and subscription URLs from --input (or stdin) and writes
the rendered singbox, clash, surge or xray config to stdout.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			logger.Log.Fatalf("Error loading config: %v", err)
		}
		target, err := builder.ParseTarget(args[0])
		if err != nil {
			logger.Log.Fatalf("%v", err)
		}

		var raw []byte
		if convertInput == "" || convertInput == "-" {
			raw, err = io.ReadAll(os.Stdin)
		} else {
			raw, err = os.ReadFile(convertInput)
		}
		if err != nil {
			logger.Log.Fatalf("Failed to read input: %v", err)
		}

		var st store.Store
		if convertConfigID != "" {
			st, err = store.Open(cfg.Store.Driver, cfg.Store.Path)
			if err != nil {
				logger.Log.Fatalf("Error opening store: %v", err)
			}
			defer st.Close()
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		initGeoIP(cfg)

		selected := convertRules
		if selected == "" {
			selected = cfg.Rules.DefaultPreset
		}
		out, stats, err := convert.Run(ctx, st, convert.Request{
			Target:        target,
			Input:         string(raw),
			SelectedRules: selected,
			CustomRules:   convertCustom,
			ConfigID:      convertConfigID,
			Sources:       cfg.Rules.Sources,
			Regions:       geoip.Default(),
			Validate:      convertValidate || cfg.Builder.Validate,
			Options: convert.Options{
				UserAgent: cfg.Fetch.UserAgent,
				Timeout:   cfg.Fetch.Timeout,
				ProxyURL:  cfg.Fetch.ProxyURL,
				Dedupe:    cfg.Builder.Dedupe,
			},
		})
		if err != nil {
			logger.Log.Fatalf("❌ Conversion failed: %v", err)
		}
		logger.Log.Infof("✅ %d nodes from %d lines (%d unparsable, %d subscriptions failed)",
			stats.Nodes, stats.Lines, stats.ParseFailures, stats.FetchFailures)
		os.Stdout.Write(out)
	},
}

func init() {
	convertCmd.Flags().StringVarP(&convertInput, "input", "i", "", "File with links (default stdin)")
	convertCmd.Flags().StringVarP(&convertRules, "rules", "r", "", "Preset name or JSON list of rule categories")
	convertCmd.Flags().StringVar(&convertCustom, "custom-rules", "", "JSON array of custom rules")
	convertCmd.Flags().StringVar(&convertConfigID, "config-id", "", "Stored base config id")
	convertCmd.Flags().BoolVar(&convertValidate, "validate", false, "Check sing-box output with sing-box's option parser")
	rootCmd.AddCommand(convertCmd)
}
