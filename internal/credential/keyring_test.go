package credential

import (
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func useFileKeyring(t *testing.T) {
	t.Helper()
	original := keyringConfig
	t.Cleanup(func() { keyringConfig = original })

	keyringConfig = keyring.Config{
		ServiceName:      serviceName,
		AllowedBackends:  []keyring.BackendType{keyring.FileBackend},
		FileDir:          t.TempDir(),
		FilePasswordFunc: keyring.FixedStringPrompt("test-password"),
	}
}

func TestCredentialLifecycle(t *testing.T) {
	useFileKeyring(t)

	require.NoError(t, Set(APIKeyName, "secret-value"))

	value, err := Get(APIKeyName)
	require.NoError(t, err)
	assert.Equal(t, "secret-value", value)

	require.NoError(t, Delete(APIKeyName))

	_, err = Get(APIKeyName)
	assert.Error(t, err)
}

func TestGet_MissingKey(t *testing.T) {
	useFileKeyring(t)

	_, err := Get("does-not-exist")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does-not-exist")
}
