package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"sublink/internal/config"
	"sublink/internal/geoip"
	"sublink/internal/logger"
	"sublink/internal/server"
	"sublink/internal/store"
)

var serveListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the conversion HTTP server",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			logger.Log.Fatalf("Error loading config: %v", err)
		}
		if serveListen != "" {
			cfg.Server.Listen = serveListen
		}

		st, err := store.Open(cfg.Store.Driver, cfg.Store.Path)
		if err != nil {
			logger.Log.Fatalf("Error opening store: %v", err)
		}
		defer st.Close()

		initGeoIP(cfg)
		defer geoip.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		srv := server.New(cfg, st, geoip.Default())
		if err := srv.ListenAndServe(ctx); err != nil {
			logger.Log.Errorf("Server stopped: %v", err)
		}
	},
}

func init() {
	serveCmd.Flags().StringVarP(&serveListen, "listen", "l", "", "Listen address (overrides server.listen)")
	rootCmd.AddCommand(serveCmd)
}
