package password_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkrupp/studentportal/internal/util/password"
)

func newTestHasher() *password.Hasher {
	return password.NewHasher(password.Config{Time: 1, Memory: 1024, Threads: 1})
}

func TestHasher_HashAndVerify(t *testing.T) {
	t.Parallel()

	h := newTestHasher()

	encoded, err := h.Hash("secret")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, "$argon2id$v=19$m=1024,t=1,p=1$"))

	ok, err := h.Verify("secret", encoded)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Verify("Secret", encoded)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHasher_SaltsEachHash(t *testing.T) {
	t.Parallel()

	h := newTestHasher()

	first, err := h.Hash("secret")
	require.NoError(t, err)

	second, err := h.Hash("secret")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestHasher_VerifiesWithStoredParameters(t *testing.T) {
	t.Parallel()

	encoded, err := newTestHasher().Hash("secret")
	require.NoError(t, err)

	ok, err := password.NewHasher(password.Config{Time: 2, Memory: 2048, Threads: 2}).Verify("secret", encoded)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHasher_EmptyPassword(t *testing.T) {
	t.Parallel()

	_, err := newTestHasher().Hash("")
	assert.ErrorIs(t, err, password.ErrEmptyPassword)
}

func TestHasher_InvalidHash(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		encoded string
	}{
		{name: "empty", encoded: ""},
		{name: "plaintext", encoded: "secret"},
		{name: "wrong algorithm", encoded: "$bcrypt$v=19$m=1024,t=1,p=1$c2FsdA$aGFzaA"},
		{name: "wrong version", encoded: "$argon2id$v=16$m=1024,t=1,p=1$c2FsdA$aGFzaA"},
		{name: "bad params", encoded: "$argon2id$v=19$m=x,t=1,p=1$c2FsdA$aGFzaA"},
		{name: "bad salt", encoded: "$argon2id$v=19$m=1024,t=1,p=1$!!$aGFzaA"},
		{name: "empty key", encoded: "$argon2id$v=19$m=1024,t=1,p=1$c2FsdA$"},
	}

	h := newTestHasher()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ok, err := h.Verify("secret", tt.encoded)
			assert.ErrorIs(t, err, password.ErrInvalidHash)
			assert.False(t, ok)
		})
	}
}
