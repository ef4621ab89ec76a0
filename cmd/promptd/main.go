package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"dailyprompt/internal/config"
	"dailyprompt/internal/prompter"
	"dailyprompt/internal/version"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:           "promptd",
	Short:         "Randomized daily prompt scheduler",
	Long:          "promptd picks a few random prompt times inside a daily window, one per block, and reports every scheduling decision.",
	Version:       version.Lookup(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "./promptd.yaml", "path to config file (yaml or json)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads and validates the config file named by --config.
func loadConfig() (*config.ConfigManager, *config.Config, error) {
	m := config.NewConfigManager(cfgPath)
	cfg, err := m.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config %s: %w", cfgPath, err)
	}
	return m, cfg, nil
}

func promptConfig(cfg *config.Config) (prompter.Config, error) {
	tc, err := cfg.Schedule.Trigger()
	if err != nil {
		return prompter.Config{}, err
	}
	iv, err := cfg.Schedule.Interval()
	if err != nil {
		return prompter.Config{}, err
	}
	return prompter.Config{
		Trigger:      tc,
		Interval:     iv,
		Participants: cfg.Schedule.ParticipantIDs(),
	}, nil
}
