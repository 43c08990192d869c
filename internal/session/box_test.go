package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	box, err := NewBox("a sufficiently long cookie key")
	require.NoError(t, err)

	token := &UserToken{Login: "bob", Roles: []string{"USERS"}, XSRFToken: "abc", Expires: 123}

	encoded, err := box.EncryptToken(token)
	require.NoError(t, err)

	got, err := box.DecryptToken(encoded)
	require.NoError(t, err)
	assert.Equal(t, token, got)
}

func TestDecryptRejectsTamperedValue(t *testing.T) {
	box, err := NewBox("a sufficiently long cookie key")
	require.NoError(t, err)

	encoded, err := box.Encrypt([]byte("hello"))
	require.NoError(t, err)

	last := "x"
	if encoded[len(encoded)-1] == 'x' {
		last = "y"
	}
	tampered := encoded[:len(encoded)-1] + last
	_, err = box.Decrypt(tampered)
	assert.Error(t, err)
}

func TestDecryptRejectsCrossKey(t *testing.T) {
	boxA, err := NewBox("key number one, quite long")
	require.NoError(t, err)
	boxB, err := NewBox("key number two, also quite long")
	require.NoError(t, err)

	encoded, err := boxA.Encrypt([]byte("hello"))
	require.NoError(t, err)

	_, err = boxB.Decrypt(encoded)
	assert.Error(t, err)
}

func TestNewBoxRejectsEmptyKey(t *testing.T) {
	_, err := NewBox("")
	assert.Error(t, err)
}
