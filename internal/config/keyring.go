package config

import (
	"fmt"
	"log/slog"

	"github.com/zalando/go-keyring"
)

const (
	// KeyringService is the service name in the OS keychain.
	KeyringService = "graphkg"

	// KeyringGraphPasswordItem is the key for the graph-store password.
	KeyringGraphPasswordItem = "graph-password"

	// KeyringEmbeddingKeyItem is the key for the embedding provider's API key.
	KeyringEmbeddingKeyItem = "embedding-api-key"
)

// KeyringManager handles secure credential storage in the OS keychain, used
// by the composition root as the lowest-precedence source for secrets that
// were not supplied via environment variable (spec.md §6 "Environment").
type KeyringManager struct {
	logger *slog.Logger
}

// NewKeyringManager creates a new keyring manager.
func NewKeyringManager() *KeyringManager {
	return &KeyringManager{
		logger: slog.Default().With("component", "keyring"),
	}
}

// SetGraphPassword stores the graph-store password in the OS keychain.
func (km *KeyringManager) SetGraphPassword(password string) error {
	if password == "" {
		return fmt.Errorf("graph password cannot be empty")
	}
	if err := keyring.Set(KeyringService, KeyringGraphPasswordItem, password); err != nil {
		km.logger.Error("failed to save graph password to keychain", "error", err)
		return fmt.Errorf("failed to save to OS keychain: %w", err)
	}
	km.logger.Info("graph password saved to keychain")
	return nil
}

// GetGraphPassword retrieves the graph-store password from the OS keychain.
// Absence is not an error — callers fall back to other configuration
// sources.
func (km *KeyringManager) GetGraphPassword() (string, error) {
	password, err := keyring.Get(KeyringService, KeyringGraphPasswordItem)
	if err == keyring.ErrNotFound {
		return "", nil
	}
	if err != nil {
		km.logger.Error("failed to get graph password from keychain", "error", err)
		return "", fmt.Errorf("failed to read from OS keychain: %w", err)
	}
	return password, nil
}

// SetEmbeddingKey stores the embedding provider API key in the OS keychain.
func (km *KeyringManager) SetEmbeddingKey(apiKey string) error {
	if apiKey == "" {
		return fmt.Errorf("embedding api key cannot be empty")
	}
	if err := keyring.Set(KeyringService, KeyringEmbeddingKeyItem, apiKey); err != nil {
		km.logger.Error("failed to save embedding key to keychain", "error", err)
		return fmt.Errorf("failed to save to OS keychain: %w", err)
	}
	km.logger.Info("embedding key saved to keychain")
	return nil
}

// GetEmbeddingKey retrieves the embedding provider API key from the OS
// keychain.
func (km *KeyringManager) GetEmbeddingKey() (string, error) {
	key, err := keyring.Get(KeyringService, KeyringEmbeddingKeyItem)
	if err == keyring.ErrNotFound {
		return "", nil
	}
	if err != nil {
		km.logger.Error("failed to get embedding key from keychain", "error", err)
		return "", fmt.Errorf("failed to read from OS keychain: %w", err)
	}
	return key, nil
}

// DeleteEmbeddingKey removes the embedding provider key from the keychain.
func (km *KeyringManager) DeleteEmbeddingKey() error {
	err := keyring.Delete(KeyringService, KeyringEmbeddingKeyItem)
	if err == keyring.ErrNotFound {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to delete from OS keychain: %w", err)
	}
	return nil
}

// IsAvailable checks if the OS keychain is reachable. Returns false on
// headless systems (CI/CD, containers without a Secret Service) where the
// keychain backend cannot be reached.
func (km *KeyringManager) IsAvailable() bool {
	_, err := keyring.Get(KeyringService, "test-availability")
	if err == keyring.ErrNotFound {
		return true
	}
	if err != nil {
		km.logger.Debug("keychain not available", "error", err)
		return false
	}
	return true
}

// MaskSecret masks a secret for display: shows first 4 and last 4 characters.
func MaskSecret(secret string) string {
	if secret == "" {
		return "(not set)"
	}
	if len(secret) < 12 {
		return "***"
	}
	return fmt.Sprintf("%s...%s", secret[:4], secret[len(secret)-4:])
}
