package cmd

import (
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "marketpulse",
	Short: "Marketplace licensing event reconciliation",
	Long: `marketpulse reconciles the marketplace vendor reporting exports into a
daily feed of new trials, new licenses, trial conversions, and churn,
merged per product and posted to Slack.`,
	Version: "0.1.0",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml or /etc/marketpulse/config.yaml)")
}
