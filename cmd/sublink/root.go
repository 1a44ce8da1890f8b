package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"sublink/internal/logger"
)

var cfgFile string
var verbose bool
var logFile string

var rootCmd = &cobra.Command{
	Use:   "sublink",
	Short: "Convert proxy share links into sing-box, Clash, Surge and Xray configs",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Init(verbose, logFile)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// applyParams overlays --param values on plugin params. Integer-looking
// values become ints.
func applyParams(params map[string]interface{}, overrides map[string]string) map[string]interface{} {
	if params == nil {
		params = make(map[string]interface{})
	}
	for k, v := range overrides {
		if intVal, err := strconv.Atoi(v); err == nil {
			params[k] = intVal
		} else {
			params[k] = v
		}
	}
	return params
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write logs to file instead of stderr (overwrites file)")
}
