package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set via ldflags at build time
var (
	Version   = "dev"
	BuildTime = ""
	GitCommit = ""
)

var rootCmd = &cobra.Command{
	Use:   "newsanalytics",
	Short: "News view-count telemetry with a USOS-protected dashboard",
	Long: `Counts news item views reported by the tracking tag on /track and serves
an admin dashboard, behind USOS login, for reviewing and hiding them.`,
	Version:      Version,
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	rootCmd.SetVersionTemplate("newsanalytics version {{.Version}}\n")
	addFlags(rootCmd)
}

func addFlags(c *cobra.Command) {
	c.Flags().String("config", "config/config.json", "Path to the application config file")
	c.Flags().String("credentials", "credentials/usosApi.json", "Path to the USOS credentials file")
	c.Flags().String("host", "", "Host to bind to (overrides app_host)")
	c.Flags().IntP("port", "p", 0, "Port to listen on (overrides app_port)")
	c.Flags().String("log-level", "", "Log level: debug, info, warn, error (env: NEWSANALYTICS_LOG_LEVEL)")
	c.Flags().String("log-format", "", "Log format: text or json (env: NEWSANALYTICS_LOG_FORMAT)")
	c.Flags().String("metrics", "", "Telemetry exporter: none or stdout (env: NEWSANALYTICS_METRICS_EXPORTER)")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
