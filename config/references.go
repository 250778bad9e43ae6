// Copyright 2025 The Coldforge Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"os"
	"path/filepath"
)

var (
	configDir string // Directory for configuration files
	keysDir   string // Directory for the signer keypair
	logDir    string // Directory for the hash-chained operation log
	certDir   string // Directory for emitted certificates
	stateDir  string // Directory for wipe operation state
)

func init() {
	if os.Geteuid() == 0 {
		configDir = "/etc/veriwipe"
	} else {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			panic(fmt.Sprintf("failed to get home directory: %v", err))
		}
		configDir = filepath.Join(homeDir, ".veriwipe")
	}

	keysDir = filepath.Join(configDir, "keys")
	logDir = filepath.Join(configDir, "log")
	certDir = filepath.Join(configDir, "certificates")
	stateDir = filepath.Join(configDir, "state")

	if err := EnsureDirectories(); err != nil {
		panic(fmt.Sprintf("failed to ensure configuration directories: %v", err))
	}
}

// GetConfigDir returns the appropriate configuration directory: the
// system path when running as root, the user path otherwise.
func GetConfigDir() string {
	return configDir
}

// GetKeysDir returns the directory holding the signer's keypair files.
func GetKeysDir() string {
	return keysDir
}

// GetLogDir returns the directory holding the hash-chained operation log.
func GetLogDir() string {
	return logDir
}

// GetCertDir returns the directory emitted certificates are written to.
func GetCertDir() string {
	return certDir
}

// GetStateDir returns the directory holding wipe operation state.
func GetStateDir() string {
	return stateDir
}

// EnsureDirectories creates the directories above if they do not exist.
func EnsureDirectories() error {
	dirs := []string{configDir, keysDir, logDir, certDir, stateDir}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
