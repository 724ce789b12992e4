package cryptox

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncryptLoginPassword(t *testing.T) {
	t.Parallel()

	salt := []byte("0123456789abcdef")

	t.Run("decoy prefix then password", func(t *testing.T) {
		enc, err := EncryptLoginPassword([]byte("pw"), salt)
		require.NoError(t, err)
		require.NotEmpty(t, enc)
		require.NotEqual(t, "pw", enc)

		raw, err := Base64Decode(enc)
		require.NoError(t, err)
		// 4 IV blocks + 1 padded password block.
		require.Len(t, raw, 5*BlockSize)

		plain, err := DecryptCBC(raw, salt, LoginIV)
		require.NoError(t, err)
		require.Equal(t, bytes.Repeat(LoginIV, 4), plain[:4*BlockSize])
		require.Equal(t, []byte("pw"), plain[4*BlockSize:])
	})

	t.Run("deterministic for a given salt", func(t *testing.T) {
		a, err := EncryptLoginPassword([]byte("secret"), salt)
		require.NoError(t, err)
		b, err := EncryptLoginPassword([]byte("secret"), salt)
		require.NoError(t, err)
		require.Equal(t, a, b)
	})

	t.Run("salt changes ciphertext", func(t *testing.T) {
		a, err := EncryptLoginPassword([]byte("secret"), salt)
		require.NoError(t, err)
		b, err := EncryptLoginPassword([]byte("secret"), []byte("fedcba9876543210"))
		require.NoError(t, err)
		require.NotEqual(t, a, b)
	})

	t.Run("block aligned password", func(t *testing.T) {
		pw := []byte("exactly16bytes!!")
		enc, err := EncryptLoginPassword(pw, salt)
		require.NoError(t, err)

		raw, err := Base64Decode(enc)
		require.NoError(t, err)
		require.Len(t, raw, 6*BlockSize)
	})

	t.Run("rejects short salt", func(t *testing.T) {
		_, err := EncryptLoginPassword([]byte("pw"), []byte("short"))
		require.ErrorIs(t, err, ErrInvalidKeySize)
	})
}

func TestPasswordVectors(t *testing.T) {
	t.Parallel()

	t.Run("login", func(t *testing.T) {
		enc, err := EncryptLoginPassword([]byte("pw"), []byte("0123456789abcdef"))
		require.NoError(t, err)
		require.Equal(t, "C5sV2ktEoPUVHc/EwB811XdOjEzy1KOa9SoQa2jv+TRQqIFmdcZcioVrknG9szVQ8cQxKMCTq+ttBeGS21jlj/pg3NCk/e/f0kB9tA2n/p4=", enc)
	})

	t.Run("storage", func(t *testing.T) {
		enc, err := EncryptPasswordForStorage([]byte("hunter2"))
		require.NoError(t, err)
		require.Equal(t, "WwVHIX5OkF3MWC/O9QS2Iw==", enc)

		pw, err := DecryptStoredPassword("WwVHIX5OkF3MWC/O9QS2Iw==")
		require.NoError(t, err)
		require.Equal(t, []byte("hunter2"), pw)
	})
}

func TestStoredPasswordRoundTrip(t *testing.T) {
	t.Parallel()

	for _, pw := range []string{"", "password", "a much longer password with unicode 密码"} {
		enc, err := EncryptPasswordForStorage([]byte(pw))
		require.NoError(t, err)
		require.NotEqual(t, pw, enc)

		dec, err := DecryptStoredPassword(enc)
		require.NoError(t, err)
		require.Equal(t, pw, string(dec))
	}
}

func TestDecryptStoredPasswordErrors(t *testing.T) {
	t.Parallel()

	t.Run("not base64", func(t *testing.T) {
		_, err := DecryptStoredPassword("%%%")
		require.ErrorIs(t, err, ErrCipher)
	})

	t.Run("not block aligned", func(t *testing.T) {
		_, err := DecryptStoredPassword(Base64Encode([]byte("abc")))
		require.ErrorIs(t, err, ErrCipher)
	})
}
