package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ashley-ai/sentinel/internal/config"
)

// Version is set at build time with -ldflags "-X ...cmd.Version=...".
var Version = "dev"

var (
	configPath  string
	dataDir     string
	redisURL    string
	postgresDSN string
	logLevel    string
	logFile     string
)

var rootCmd = &cobra.Command{
	Use:   "sentinel",
	Short: "Sentinel is the security core of the ERP platform",
	Long: `Session management, audit logging, rate limiting, password policy and
upload validation for the ERP platform, served over HTTP and managed from
the command line.`,
	SilenceUsage: true,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "Path to a YAML configuration file")
	pf.StringVar(&dataDir, "data-dir", "", "Directory for the embedded database (overrides config)")
	pf.StringVar(&redisURL, "redis-url", "", "Redis URL for shared rate limit counters and caches")
	pf.StringVar(&postgresDSN, "postgres-dsn", "", "PostgreSQL DSN for session and audit storage")
	pf.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error")
	pf.StringVar(&logFile, "log-file", "", "Also write logs to this file, rotated by size")
}

// loadConfig reads the configuration file and environment, then applies
// any persistent flags the user set explicitly.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}
	flags := cmd.Flags()
	if flags.Changed("data-dir") {
		cfg.DataDir = dataDir
	}
	if flags.Changed("redis-url") {
		cfg.RedisURL = redisURL
	}
	if flags.Changed("postgres-dsn") {
		cfg.PostgresDSN = postgresDSN
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if flags.Changed("log-file") {
		cfg.Log.File = logFile
	}
	return cfg, nil
}
