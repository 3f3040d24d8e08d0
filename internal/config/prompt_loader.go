package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// defaultPromptDir is the prompt directory under the user's home.
const defaultPromptDir = ".config/curator/prompts"

// LoadPromptContent reads a prompt template. An absolute configuredPath is
// read as is; anything else names a file in ~/.config/curator/prompts. When
// that file does not exist, fallback is returned instead.
func LoadPromptContent(configuredPath, fallback string) (string, error) {
	finalPath := configuredPath
	if !filepath.IsAbs(configuredPath) {
		if configuredPath == "" {
			return fallback, nil
		}
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get user home directory: %w", err)
		}
		finalPath = filepath.Join(homeDir, defaultPromptDir, configuredPath)
	}

	promptBytes, err := os.ReadFile(finalPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !filepath.IsAbs(configuredPath) {
			return fallback, nil
		}
		return "", fmt.Errorf("failed to read prompt file '%s': %w", finalPath, err)
	}
	return string(promptBytes), nil
}
