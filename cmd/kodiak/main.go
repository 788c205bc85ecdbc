// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/Kodiak/pkg/logging"
)

// Config is the kodiak CLI configuration, read from config.yaml in the
// working directory when present.
type Config struct {
	// VenvPath is the Python virtualenv sessions execute against.
	VenvPath string `yaml:"venv_path"`

	// DataDir holds the session archive.
	DataDir string `yaml:"data_dir"`

	// TranscriptDir holds per-session human-readable logs.
	TranscriptDir string `yaml:"transcript_dir"`

	// Backend selects the generation backend: "anthropic" or "openai".
	Backend string `yaml:"llm_backend"`

	// MaxRepairs bounds repair attempts per session.
	MaxRepairs int `yaml:"max_repairs"`

	// ExecTimeoutSeconds bounds one script execution.
	ExecTimeoutSeconds int `yaml:"exec_timeout_seconds"`

	// InstallTimeoutSeconds bounds one package install.
	InstallTimeoutSeconds int `yaml:"install_timeout_seconds"`

	// ServerPort is used by `kodiak serve`.
	ServerPort string `yaml:"server_port"`

	// LogLevel is debug, info, warn, or error.
	LogLevel string `yaml:"log_level"`
}

var config Config
var logger *logging.Logger

// defaultConfig returns the configuration used when config.yaml is absent.
func defaultConfig() Config {
	home, err := os.UserHomeDir()
	base := ".kodiak"
	if err == nil {
		base = filepath.Join(home, ".kodiak")
	}
	return Config{
		VenvPath:      filepath.Join(base, "venv"),
		DataDir:       filepath.Join(base, "data"),
		TranscriptDir: "logs",
		Backend:       "anthropic",
		ServerPort:    "12310",
		LogLevel:      "info",
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}

func init() {
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		config = defaultConfig()

		configPath := "config.yaml"
		if yamlFile, err := os.ReadFile(configPath); err == nil {
			if err := yaml.Unmarshal(yamlFile, &config); err != nil {
				log.Fatalf("Error parsing config.yaml: %v", err)
			}
		}

		logger = logging.New(logging.Config{
			Level:   logging.ParseLevel(config.LogLevel),
			Service: "cli",
		})
	}
}
