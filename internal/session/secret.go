package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/milckywayy/ISOD-NewsAnalytics/internal/settings"
)

const (
	SecretEnvVar     = "NEWSANALYTICS_SESSION_SECRET"
	secretSettingKey = "session_secret"
)

// SecretSource says where a session secret came from.
type SecretSource string

const (
	SecretFromEnv      SecretSource = "environment"
	SecretGenerated    SecretSource = "generated"
	SecretFromDatabase SecretSource = "database"
)

// ResolveSecret returns envValue when it is set. Otherwise it loads the
// secret persisted in app_settings, generating one on first start so
// sessions survive restarts.
func ResolveSecret(ctx context.Context, envValue string, store *settings.Store) ([]byte, SecretSource, error) {
	if envValue != "" {
		if len(envValue) < 16 {
			return nil, "", ErrSecretTooShort
		}
		return []byte(envValue), SecretFromEnv, nil
	}

	value, created, err := store.GetOrCreate(ctx, secretSettingKey, generateSecret)
	if err != nil {
		return nil, "", fmt.Errorf("load session secret: %w", err)
	}
	if created {
		return []byte(value), SecretGenerated, nil
	}
	return []byte(value), SecretFromDatabase, nil
}

func generateSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}
