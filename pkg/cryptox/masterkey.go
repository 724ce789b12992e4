package cryptox

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// MasterKeySize is the entropy of a generated master key, in bytes.
const MasterKeySize = 32

// ErrKeyFileExists is returned instead of overwriting a master key, which
// would make every sealed snapshot unreadable.
var ErrKeyFileExists = errors.New("cryptox: master key file already exists")

// GenerateMasterKey returns size random bytes as unpadded base64url text,
// suitable for a key file or XDAUTH_MASTER_KEY.
func GenerateMasterKey(size int) (string, error) {
	if size <= 0 {
		return "", fmt.Errorf("key size must be positive, got %d", size)
	}

	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate master key: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// WriteMasterKey generates a key and writes it to path with owner-only
// permissions, creating parent directories as needed.
func WriteMasterKey(path string) error {
	path = filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}

	key, err := GenerateMasterKey(MasterKeySize)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if errors.Is(err, os.ErrExist) {
		return fmt.Errorf("%w: %s", ErrKeyFileExists, path)
	}
	if err != nil {
		return err
	}
	if _, err := f.WriteString(key); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
