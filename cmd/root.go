package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
	dataDir string
	logger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "sitewarden",
	Short: "Website security posture scanning and report aggregation",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional, real env vars win
		_ = godotenv.Load()

		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		} else {
			viper.AddConfigPath("$HOME")
			viper.SetConfigName(".sitewarden")
			viper.SetConfigType("yaml")
		}
		viper.SetEnvPrefix("SITEWARDEN")
		viper.AutomaticEnv()
		_ = viper.ReadInConfig()

		if dataDir == "" {
			dataDir = viper.GetString("data_dir")
		}
		if dataDir == "" {
			dataDir = "./data"
		}
		if abs, err := filepath.Abs(dataDir); err == nil {
			dataDir = abs
		}
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}

		l, err := zap.NewProduction()
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		logger = l

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.sitewarden.yaml)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory for the JSON backend (default ./data)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(versionCmd)
}
