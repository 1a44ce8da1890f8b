package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/spf13/cobra"
	"sublink/internal/config"
	"sublink/internal/logger"
	"sublink/internal/store"
)

var storeTTL time.Duration

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Manage base configs and short links in the key-value store",
}

func mustOpenStore() (*config.Config, store.Store) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		logger.Log.Fatalf("Error loading config: %v", err)
	}
	st, err := store.Open(cfg.Store.Driver, cfg.Store.Path)
	if err != nil {
		logger.Log.Fatalf("Error opening store: %v", err)
	}
	return cfg, st
}

var storeUploadCmd = &cobra.Command{
	Use:   "upload <type> <file>",
	Short: "Store a base config and print its id",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		_, st := mustOpenStore()
		defer st.Close()

		content, err := os.ReadFile(args[1])
		if err != nil {
			logger.Log.Fatalf("Failed to read %s: %v", args[1], err)
		}
		id, err := store.SaveBaseConfig(context.Background(), st, args[0], string(content))
		if err != nil {
			logger.Log.Fatalf("❌ %v", err)
		}
		fmt.Println(id)
	},
}

var storeShortenCmd = &cobra.Command{
	Use:   "shorten <url> [code]",
	Short: "Store the query of a conversion URL under a short code",
	Args:  cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		_, st := mustOpenStore()
		defer st.Close()

		u, err := url.Parse(args[0])
		if err != nil {
			logger.Log.Fatalf("Invalid URL: %v", err)
		}
		query := ""
		if u.RawQuery != "" {
			query = "?" + u.RawQuery
		}
		code := store.NewCode(store.DefaultCodeLength)
		if len(args) == 2 {
			code = args[1]
		}
		if err := st.Put(context.Background(), code, query, storeTTL); err != nil {
			logger.Log.Fatalf("❌ %v", err)
		}
		fmt.Println(code)
	},
}

var storeGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print a stored value",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		_, st := mustOpenStore()
		defer st.Close()

		v, ok, err := st.Get(context.Background(), args[0])
		if err != nil {
			logger.Log.Fatalf("❌ %v", err)
		}
		if !ok {
			logger.Log.Fatalf("Key %s not found", args[0])
		}
		fmt.Println(v)
	},
}

func init() {
	storeShortenCmd.Flags().DurationVar(&storeTTL, "ttl", 0, "Expire the short link after this long (0 keeps it)")
	storeCmd.AddCommand(storeUploadCmd, storeShortenCmd, storeGetCmd)
	rootCmd.AddCommand(storeCmd)
}
