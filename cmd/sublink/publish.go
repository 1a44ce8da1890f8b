package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"sublink/internal/config"
	"sublink/internal/logger"
	"sublink/internal/publishers"
)

var publishParams map[string]string

var publishCmd = &cobra.Command{
	Use:   "publish [publisher_names...]",
	Short: "Build and publish artifacts",
	Long: `Run all publishers or specific ones. Each publisher receives the builds it
lists (all builds when empty). Use --param to override publisher configuration.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			logger.Log.Fatalf("Error loading config: %v", err)
		}

		// 1. Filter Publishers based on args
		if len(args) > 0 {
			cfg.FilterPublishers(args)
		}
		if len(cfg.Publishers) == 0 {
			logger.Log.Warn("No publishers matched.")
			return
		}

		// 2. Only build what some publisher needs
		var wanted []string
		for _, pubCfg := range cfg.Publishers {
			if len(pubCfg.Builds) == 0 {
				wanted = nil
				break
			}
			wanted = append(wanted, pubCfg.Builds...)
		}
		if len(wanted) > 0 {
			cfg.FilterBuilds(lo.Uniq(wanted))
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		initGeoIP(cfg)
		st := openStore(cfg, cfg.Builds)
		if st != nil {
			defer st.Close()
		}
		artifacts := newPipeline(cfg, st).buildAll(ctx, cfg.Builds)
		byName := lo.GroupBy(artifacts, func(a publishers.Artifact) string { return a.Name })

		for _, pubCfg := range cfg.Publishers {
			logger.Log.Infof("📨 Running Publisher: %s (%s)...", pubCfg.Name, pubCfg.Type)

			plugin, err := publishers.Get(pubCfg.Type)
			if err != nil {
				logger.Log.Warnf("Plugin not found: %v", err)
				continue
			}

			selected := artifacts
			if len(pubCfg.Builds) > 0 {
				selected = nil
				for _, name := range pubCfg.Builds {
					selected = append(selected, byName[name]...)
				}
			}
			if len(selected) == 0 {
				logger.Log.Warnf("Publisher %s has nothing to publish.", pubCfg.Name)
				continue
			}

			params := applyParams(pubCfg.Params, publishParams)
			params["_timeout"] = cfg.Fetch.Timeout
			if cfg.Fetch.ProxyURL != "" {
				params["_proxy_url"] = cfg.Fetch.ProxyURL
			}
			if err := plugin.Publish(ctx, selected, params); err != nil {
				logger.Log.Errorf("Publish failed: %v", err)
			} else {
				logger.Log.Info("✅ Published successfully.")
			}
		}
	},
}

func init() {
	publishCmd.Flags().StringToStringVarP(&publishParams, "param", "p", nil, "Override publisher params (e.g. -p dir=out)")
	rootCmd.AddCommand(publishCmd)
}
