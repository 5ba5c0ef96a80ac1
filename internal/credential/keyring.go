package credential

import (
	"fmt"
	"strings"

	"github.com/99designs/keyring"
)

const (
	serviceName = "draftresponder"

	// RefPrefix marks a config value that names a keyring item instead of
	// holding the secret itself, e.g. "keyring:gemini-api-key".
	RefPrefix = "keyring:"
)

// openKeyring returns a configured keyring instance.
func openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/draftresponder/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("draftresponder-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Get retrieves a credential value by key from the system keyring.
// The application only ever reads from the keyring; storing secrets there
// is left to the user's own tooling.
func Get(key string) (string, error) {
	ring, err := openKeyring()
	if err != nil {
		return "", err
	}

	item, err := ring.Get(key)
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}

	return string(item.Data), nil
}

// IsRef reports whether value is a keyring reference.
func IsRef(value string) bool {
	return strings.HasPrefix(value, RefPrefix)
}

// Resolve returns value unchanged unless it is a keyring reference, in
// which case the referenced secret is looked up.
func Resolve(value string) (string, error) {
	if !IsRef(value) {
		return value, nil
	}

	key := strings.TrimSpace(strings.TrimPrefix(value, RefPrefix))
	if key == "" {
		return "", fmt.Errorf("empty keyring reference %q", value)
	}
	return Get(key)
}
