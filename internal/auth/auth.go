// Package auth resolves the Gemini credential and classifies failures
// returned by the generation service.
package auth

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

const (
	credentialDir  = ".kimixchange"
	credentialFile = "credentials.gpg"
	passphraseFile = ".gpg-passphrase"
)

// apiKeyEnvVars are checked in order. API_KEY is the name used by the
// browser build of the app.
var apiKeyEnvVars = []string{"GEMINI_API_KEY", "API_KEY"}

// ErrNoAPIKey is returned by GetAPIKey when no source yields a key.
var ErrNoAPIKey = &ValidationError{
	Type:    ErrTypeNoKey,
	Message: "API key not found. Set GEMINI_API_KEY or store it in ~/" + credentialDir + "/" + credentialFile,
}

// GetAPIKey retrieves the Gemini API key from available sources.
// Priority order:
//  1. GEMINI_API_KEY, then API_KEY environment variables
//  2. GPG-encrypted file at ~/.kimixchange/credentials.gpg
//
// A missing key is not fatal for callers: every swap fails at call time instead.
func GetAPIKey() (string, error) {
	for _, name := range apiKeyEnvVars {
		if key := strings.TrimSpace(os.Getenv(name)); key != "" {
			log.Debug().Str("env", name).Msg("Using API key from environment variable")
			return key, nil
		}
	}

	key, err := getFromGPG()
	if err == nil && key != "" {
		log.Debug().Msg("Using API key from GPG encrypted file")
		return key, nil
	}

	log.Debug().Err(err).Msg("No API key source available")
	return "", ErrNoAPIKey
}

// getFromGPG decrypts the API key from the GPG-encrypted credentials file.
func getFromGPG() (string, error) {
	credPath, err := getCredentialPath()
	if err != nil {
		return "", err
	}

	if _, err := os.Stat(credPath); errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("GPG credentials file not found at %s", credPath)
	}

	log.Debug().Str("file", credPath).Msg("Decrypting GPG credentials")

	args := []string{"--decrypt", "--quiet"}
	if passphrasePath, ok := usablePassphraseFile(filepath.Dir(credPath)); ok {
		args = append(args, "--pinentry-mode", "loopback", "--passphrase-file", passphrasePath)
	}
	args = append(args, credPath)

	output, err := exec.Command("gpg", args...).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("GPG decryption failed: %s", string(exitErr.Stderr))
		}
		return "", fmt.Errorf("GPG decryption failed: %w", err)
	}

	return strings.TrimSpace(string(output)), nil
}

// usablePassphraseFile returns the passphrase file next to the credentials
// if it exists and is readable only by its owner.
func usablePassphraseFile(dir string) (string, bool) {
	path := filepath.Join(dir, passphraseFile)
	fi, err := os.Stat(path)
	if err != nil {
		return "", false
	}
	if mode := fi.Mode().Perm(); mode&0077 != 0 {
		log.Warn().
			Str("passphrase_file", path).
			Str("permissions", fmt.Sprintf("%04o", mode)).
			Msg("Passphrase file has insecure permissions (should be 0600); skipping")
		return "", false
	}
	return path, true
}

// getCredentialPath returns the full path to the credentials file.
func getCredentialPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, credentialDir, credentialFile), nil
}
