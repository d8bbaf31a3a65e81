package credential

import (
	"fmt"

	"github.com/99designs/keyring"
)

const serviceName = "roadmapboard"

// APIKeyName is the keyring entry holding the tracker API key.
const APIKeyName = "tracker_api_key"

// keyringConfig is replaced in tests with a file backend in a temp dir.
var keyringConfig = keyring.Config{
	ServiceName: serviceName,
	AllowedBackends: []keyring.BackendType{
		keyring.KeychainBackend,
		keyring.SecretServiceBackend,
		keyring.WinCredBackend,
		keyring.PassBackend,
		keyring.FileBackend,
	},
	FileDir:                  "~/.config/roadmapboard/credentials",
	FilePasswordFunc:         keyring.FixedStringPrompt("roadmapboard-file-key"),
	KeychainTrustApplication: true,
}

func openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyringConfig)
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Get retrieves a credential value by key from the system keyring.
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

// Set stores a credential value by key in the system keyring.
func Set(key string, value string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	err = ring.Set(keyring.Item{
		Key:   key,
		Data:  []byte(value),
		Label: "roadmapboard " + key,
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}

	return nil
}

// Delete removes a credential by key from the system keyring.
func Delete(key string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	if err := ring.Remove(key); err != nil {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}

	return nil
}
