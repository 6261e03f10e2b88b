// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the cad-export CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/cad-export/internal/host"
	"github.com/pdiddy/cad-export/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// logger carries diagnostics on stderr. Progress lines go to stdout.
var logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "cad-export"})

// rootCmd is the base command for the cad-export CLI.
var rootCmd = &cobra.Command{
	Use:   "cad-export",
	Short: "Batch-export CAD projects and PCB boards to mesh, VRML and STEP",
	Long: `cad-export opens CAD project files and PCB board files in a headless host
application, finds each document's top-level objects, and exports them once
per requested format, mirroring the input directory layout under the output
directory.

Inputs may come from flags, a config file, or the FREECAD_INPUT_PATHS,
FREECAD_OUTPUT_PATH and FREECAD_EXPORT_TYPES environment variables
(newline-separated lists).`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			logger.SetLevel(log.DebugLevel)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./cad-export.yaml or ~/.config/cad-export/config.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug diagnostics")
}

// Legacy environment names. Lists are newline-separated.
const (
	envInputPaths  = "FREECAD_INPUT_PATHS"
	envOutputPath  = "FREECAD_OUTPUT_PATH"
	envExportTypes = "FREECAD_EXPORT_TYPES"
)

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("cad-export")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "cad-export"))
		}
	}

	setDefaults()

	viper.SetEnvPrefix("CAD_EXPORT")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// setDefaults registers defaults and the legacy environment bindings.
func setDefaults() {
	viper.SetDefault("on_unsupported", string(types.UnsupportedAbort))
	viper.SetDefault("dedupe", false)
	viper.SetDefault("keep_going", false)
	viper.SetDefault("host.mode", string(types.HostLocal))
	viper.SetDefault("host.image", host.DefaultImage)

	_ = viper.BindEnv("input_paths", envInputPaths)
	_ = viper.BindEnv("output_path", envOutputPath)
	_ = viper.BindEnv("export_types", envExportTypes)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
}
