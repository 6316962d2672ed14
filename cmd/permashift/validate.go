package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/goodtune/permashift/internal/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Long:  `Load and validate the configuration file, reporting problems and unknown keys.`,
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

// knownKeyPrefixes are the configuration sections the daemon reads.
var knownKeyPrefixes = []string{
	"server.",
	"vdr.",
	"timeshift.",
	"storage.",
	"journal.",
	"logging.",
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		color.Red("✗ %v", err)
		return fmt.Errorf("configuration is invalid")
	}

	// Surface keys the daemon would silently ignore, typically typos.
	v := viper.New()
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err == nil {
		unknown := unknownKeys(v.AllKeys())
		for _, key := range unknown {
			color.Yellow("! unknown key: %s", key)
		}
	}

	fmt.Printf("Config:     %s\n", configPath)
	fmt.Printf("VDR:        %s:%d\n", cfg.VDR.Host, cfg.VDR.SVDRPPort)
	fmt.Printf("Timeshift:  enabled=%t max_length=%dh pause=%d/%d\n",
		cfg.Timeshift.Enabled, cfg.Timeshift.MaxLengthHours,
		cfg.Timeshift.PausePriority, cfg.Timeshift.PauseLifetime)
	fmt.Printf("Storage:    %s\n", cfg.Storage.Type)
	fmt.Printf("Journal:    retention=%dd cleanup=%s\n",
		cfg.Journal.RetentionDays, cfg.Journal.CleanupTime)

	color.Green("✓ Configuration is valid")
	return nil
}

func unknownKeys(keys []string) []string {
	var unknown []string
	for _, key := range keys {
		known := false
		for _, prefix := range knownKeyPrefixes {
			if strings.HasPrefix(key, prefix) {
				known = true
				break
			}
		}
		if !known {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	return unknown
}
