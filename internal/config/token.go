package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

const secretsFile = "secrets.json"

type secrets struct {
	APIToken string `json:"api_token"`
}

// APIToken returns the bearer token used to authenticate API requests,
// generating and persisting a new one on first use. The token lives in
// secrets.json under the data directory with 0600 permissions.
func APIToken(dataDir string) (string, error) {
	path := filepath.Join(dataDir, secretsFile)

	data, err := os.ReadFile(path)
	if err == nil {
		var s secrets
		if err := json.Unmarshal(data, &s); err != nil {
			return "", fmt.Errorf("parsing %s: %w", path, err)
		}
		if s.APIToken != "" {
			return s.APIToken, nil
		}
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}

	token := uuid.NewString()
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return "", fmt.Errorf("creating data directory: %w", err)
	}
	data, err = json.MarshalIndent(secrets{APIToken: token}, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return token, nil
}
