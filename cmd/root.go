/*
Copyright © 2026 DesiroReboot <desiroreboot@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/DesiroReboot/VideoTranslate-Rework/internal/logx"
)

var version = "0.3.0"

var (
	cfgFile string

	log zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "vtrework",
	Short: "Fault-tolerant text transduction with consensus quality control",
	Long: `A CLI application that fans a noisy text transduction out across several
identical nodes, filters the candidates by mutual agreement, scores the
winner against thresholds learned from past runs, and repairs borderline
outputs with a local LLM before accepting them.

Supported backends: Google Translate, Ollama (LLM), MyMemory

Use "vtrework run --help" for options.`,
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := initConfig(); err != nil {
			return err
		}
		log = logx.Setup(viper.GetString("log.level"), viper.GetBool("log.pretty"))
		return nil
	},
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("vtrework")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "vtrework"))
		}
	}

	viper.SetEnvPrefix("VTREWORK")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	return nil
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default ./vtrework.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (trace|debug|info|warn|error)")
	rootCmd.PersistentFlags().Bool("log-pretty", true, "Human-readable console logging")

	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log.pretty", rootCmd.PersistentFlags().Lookup("log-pretty"))
}
