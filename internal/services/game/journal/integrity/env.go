package integrity

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

const (
	envHMACKeys  = "NAREQUENTA_GAME_JOURNAL_HMAC_KEYS"
	envHMACKey   = "NAREQUENTA_GAME_JOURNAL_HMAC_KEY"
	envHMACKeyID = "NAREQUENTA_GAME_JOURNAL_HMAC_KEY_ID"
	defaultKeyID = "v1"
)

// ErrNotConfigured is returned by KeyringFromEnv when no key is set.
var ErrNotConfigured = errors.New("journal hmac key is not configured")

// KeyringFromEnv loads the keyring from NAREQUENTA_GAME_JOURNAL_HMAC_KEYS
// ("id=secret,id2=secret2") or a single NAREQUENTA_GAME_JOURNAL_HMAC_KEY.
func KeyringFromEnv() (*Keyring, error) {
	keyID := strings.TrimSpace(os.Getenv(envHMACKeyID))
	if keyID == "" {
		keyID = defaultKeyID
	}

	keySpec := strings.TrimSpace(os.Getenv(envHMACKeys))
	if keySpec == "" {
		raw := strings.TrimSpace(os.Getenv(envHMACKey))
		if raw == "" {
			return nil, ErrNotConfigured
		}
		return NewKeyring(map[string][]byte{keyID: []byte(raw)}, keyID)
	}

	keys := make(map[string][]byte)
	for _, entry := range strings.Split(keySpec, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		id, value, ok := strings.Cut(entry, "=")
		id = strings.TrimSpace(id)
		value = strings.TrimSpace(value)
		if !ok || id == "" || value == "" {
			return nil, fmt.Errorf("invalid %s entry", envHMACKeys)
		}
		keys[id] = []byte(value)
	}
	return NewKeyring(keys, keyID)
}
