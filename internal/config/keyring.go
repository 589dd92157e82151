package config

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/zalando/go-keyring"
)

const (
	// KeyringService is the service name in the OS keychain
	KeyringService = "CodeSentinel"

	// KeyringAPIKeyItem is the key for the OpenAI API key
	KeyringAPIKeyItem = "openai-api-key"

	// KeyringSourceTokenItem is the key for the GitHub token
	KeyringSourceTokenItem = "github-token"
)

// KeyringManager handles secure credential storage in the OS keychain.
// macOS Keychain, Windows Credential Manager, Linux Secret Service.
type KeyringManager struct {
	logger *logrus.Entry
}

// NewKeyringManager creates a new keyring manager.
func NewKeyringManager() *KeyringManager {
	return &KeyringManager{
		logger: logrus.WithField("component", "keyring"),
	}
}

// SaveAPIKey stores the OpenAI API key in the OS keychain.
func (km *KeyringManager) SaveAPIKey(apiKey string) error {
	if apiKey == "" {
		return fmt.Errorf("api key cannot be empty")
	}
	if err := keyring.Set(KeyringService, KeyringAPIKeyItem, apiKey); err != nil {
		return fmt.Errorf("failed to save to OS keychain: %w", err)
	}
	km.logger.Info("api key saved to keychain")
	return nil
}

// GetAPIKey retrieves the OpenAI API key from the OS keychain. A missing
// entry is not an error.
func (km *KeyringManager) GetAPIKey() (string, error) {
	apiKey, err := keyring.Get(KeyringService, KeyringAPIKeyItem)
	if err == keyring.ErrNotFound {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read from OS keychain: %w", err)
	}
	return apiKey, nil
}

// GetSourceToken retrieves the GitHub token from the OS keychain.
func (km *KeyringManager) GetSourceToken() (string, error) {
	token, err := keyring.Get(KeyringService, KeyringSourceTokenItem)
	if err == keyring.ErrNotFound {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read from OS keychain: %w", err)
	}
	return token, nil
}

// SetSourceToken stores the GitHub token in the OS keychain.
func (km *KeyringManager) SetSourceToken(token string) error {
	if token == "" {
		return fmt.Errorf("source token cannot be empty")
	}
	if err := keyring.Set(KeyringService, KeyringSourceTokenItem, token); err != nil {
		return fmt.Errorf("failed to save to OS keychain: %w", err)
	}
	km.logger.Info("source token saved to keychain")
	return nil
}

// IsAvailable checks whether the OS keychain can be reached. Returns false
// on headless systems where no secret service is running.
func (km *KeyringManager) IsAvailable() bool {
	_, err := keyring.Get(KeyringService, "test-availability")
	if err == keyring.ErrNotFound {
		return true
	}
	if err != nil {
		km.logger.WithError(err).Debug("keychain not available")
		return false
	}
	return true
}

// MaskAPIKey masks a credential for display: "sk-proj...c123".
func MaskAPIKey(apiKey string) string {
	if apiKey == "" {
		return "(not set)"
	}
	if len(apiKey) < 12 {
		return "***"
	}
	return fmt.Sprintf("%s...%s", apiKey[:7], apiKey[len(apiKey)-4:])
}
