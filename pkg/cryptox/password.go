package cryptox

import (
	"fmt"
)

// LoginIV is the constant IV used by the IDS login page scripts.
var LoginIV = []byte("xidianscriptsxdu")

// storageKey is the fixed key for passwords persisted outside of a live login.
var storageKey = []byte("x_l4rsforxdsign.")

// loginIVCopies is the number of IV blocks prepended to the padded password.
const loginIVCopies = 4

// EncryptLoginPassword produces the password field for an IDS login form.
//
// The plaintext is four copies of LoginIV followed by the padded password,
// encrypted under the page salt with LoginIV as the IV. The server decrypts
// the whole buffer and keeps what follows the 64 byte prefix, so the prefix
// must be present byte-for-byte.
func EncryptLoginPassword(password, salt []byte) (string, error) {
	if len(salt) != 16 {
		return "", fmt.Errorf("%w: salt is %d bytes", ErrInvalidKeySize, len(salt))
	}

	buf := make([]byte, 0, loginIVCopies*BlockSize+len(password)+BlockSize)
	for range loginIVCopies {
		buf = append(buf, LoginIV...)
	}
	buf = append(buf, Pad(password, BlockSize)...)

	enc, err := EncryptCBC(buf, salt, buf[:BlockSize])
	if err != nil {
		return "", fmt.Errorf("encrypt login password: %w", err)
	}
	return Base64Encode(enc), nil
}

// EncryptPasswordForStorage encrypts a password with the fixed storage key so
// it can be kept at rest and handed back to DecryptStoredPassword later.
func EncryptPasswordForStorage(password []byte) (string, error) {
	enc, err := EncryptCBC(Pad(password, BlockSize), storageKey, LoginIV)
	if err != nil {
		return "", fmt.Errorf("encrypt stored password: %w", err)
	}
	return Base64Encode(enc), nil
}

// DecryptStoredPassword reverses EncryptPasswordForStorage.
func DecryptStoredPassword(encoded string) ([]byte, error) {
	raw, err := Base64Decode(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCipher, err)
	}
	return DecryptCBC(raw, storageKey, LoginIV)
}
