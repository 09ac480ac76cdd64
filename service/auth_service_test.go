package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// TestBcryptHasher_HashAndCheck ensures that password hashing and verification work together.
func TestBcryptHasher_HashAndCheck(t *testing.T) {
	hasher := NewBcryptHasher()
	password := "mySecretPassword123"

	hashed, err := hasher.Hash(password)
	require.NoError(t, err)
	assert.NotEqual(t, password, hashed)

	assert.True(t, hasher.Check(password, hashed))
	assert.False(t, hasher.Check("notMyPassword", hashed))
}

func TestBcryptHasher_Salted(t *testing.T) {
	hasher := NewBcryptHasher()

	first, err := hasher.Hash("pw1")
	require.NoError(t, err)
	second, err := hasher.Hash("pw1")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.True(t, hasher.Check("pw1", first))
	assert.True(t, hasher.Check("pw1", second))
}

func TestBcryptHasher_Cost(t *testing.T) {
	hashed, err := NewBcryptHasher().Hash("pw1")
	require.NoError(t, err)

	cost, err := bcrypt.Cost([]byte(hashed))
	require.NoError(t, err)
	assert.Equal(t, PasswordHashCost, cost)
}

func TestBcryptHasher_CheckRejectsEmptyOrMalformedHash(t *testing.T) {
	hasher := NewBcryptHasher()

	assert.False(t, hasher.Check("pw1", ""))
	assert.False(t, hasher.Check("pw1", "not-a-bcrypt-hash"))
}

func TestBcryptHasher_LongPasswords(t *testing.T) {
	hasher := NewBcryptHasher()
	base := strings.Repeat("p", 72)

	for _, password := range []string{base + "q", strings.Repeat("long", 50)} {
		hashed, err := hasher.Hash(password)
		require.NoError(t, err)
		assert.True(t, hasher.Check(password, hashed))
	}

	hashed, err := hasher.Hash(base + "a")
	require.NoError(t, err)
	assert.False(t, hasher.Check(base+"b", hashed), "bytes past 72 must still count")
	assert.False(t, hasher.Check(base, hashed))
}
