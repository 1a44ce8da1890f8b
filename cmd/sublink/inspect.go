package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"sublink/internal/config"
	"sublink/internal/geoip"
	"sublink/internal/logger"
	"sublink/internal/parser"
)

var inspectURI bool

var inspectCmd = &cobra.Command{
	Use:   "inspect [links...]",
	Short: "Parse share links and print the resulting nodes",
	Long:  `Parses each link (arguments, or stdin lines when none) and prints the node as JSON, or its canonical share link with --uri.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			logger.Log.Fatalf("Error loading config: %v", err)
		}
		initGeoIP(cfg)

		links := args
		if len(links) == 0 {
			sc := bufio.NewScanner(os.Stdin)
			sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
			for sc.Scan() {
				if line := strings.TrimSpace(sc.Text()); line != "" {
					links = append(links, line)
				}
			}
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")

		failed := 0
		for _, link := range links {
			res, err := parser.Parse(link)
			if err != nil {
				failed++
				logger.Log.Warnf("❌ %v", err)
				continue
			}
			if res.Subscription != "" {
				fmt.Printf("# subscription: %s\n", res.Subscription)
				continue
			}
			n := res.Node
			if inspectURI {
				fmt.Println(n.ToURI())
				continue
			}
			region := "??"
			if code, ok := geoip.Default().Country(n.Server); ok {
				region = geoip.Flag(code) + " " + code
			}
			fmt.Printf("# %s  hash=%s  region=%s\n", n.Tag, n.Hash(), region)
			enc.Encode(n)
		}
		if failed > 0 {
			logger.Log.Warnf("%d of %d links failed to parse", failed, len(links))
		}
	},
}

func init() {
	inspectCmd.Flags().BoolVar(&inspectURI, "uri", false, "Print canonical share links instead of JSON")
	rootCmd.AddCommand(inspectCmd)
}
