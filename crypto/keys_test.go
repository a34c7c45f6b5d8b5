package crypto

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddressRoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	require.NoError(t, err)
	addr := key.PubKey().Address()

	decoded, err := DecodeAddress(addr.String())
	require.NoError(t, err)
	require.Equal(t, addr, decoded)

	fromHex, err := ParseAddress(addr.Hex())
	require.NoError(t, err)
	require.Equal(t, addr, fromHex)
}

func TestDecodeAddressRejectsForeignPrefix(t *testing.T) {
	_, err := ParseAddress("0x1234")
	require.ErrorIs(t, err, ErrInvalidAddress)
}

func TestSignAndRecover(t *testing.T) {
	key, err := GeneratePrivateKey()
	require.NoError(t, err)
	payload := []byte(`{"op":"checkin"}`)
	sig, err := key.Sign(payload)
	require.NoError(t, err)

	recovered, err := RecoverAddress(payload, sig)
	require.NoError(t, err)
	require.Equal(t, key.PubKey().Address(), recovered)

	other, err := RecoverAddress([]byte(`{"op":"claim"}`), sig)
	require.NoError(t, err)
	require.NotEqual(t, key.PubKey().Address(), other)
}

func TestLoadOrCreateKeystore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "validator.keystore")
	first, created, err := LoadOrCreateKeystore(path, "secret", LightStrength)
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := LoadOrCreateKeystore(path, "secret", LightStrength)
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, first.PubKey().Address(), second.PubKey().Address())

	_, err = LoadFromKeystore(path, "wrong")
	require.Error(t, err)
}
