package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"fmt"
)

// BlockSize is the AES block size used by every portal cipher.
const BlockSize = aes.BlockSize

var (
	// ErrInvalidKeySize is returned when the key is not exactly 16 bytes.
	ErrInvalidKeySize = errors.New("cryptox: key must be 16 bytes")
	// ErrInvalidIVSize is returned when the IV is not exactly one block.
	ErrInvalidIVSize = errors.New("cryptox: iv must be 16 bytes")
	// ErrUnalignedInput is returned when the plaintext handed to EncryptCBC
	// has not been padded to a block boundary.
	ErrUnalignedInput = errors.New("cryptox: input is not a multiple of the block size")
	// ErrCipher reports malformed ciphertext or invalid padding.
	ErrCipher = errors.New("cryptox: cipher error")
)

// EncryptCBC encrypts already padded data with AES-128 in CBC mode. No padding
// is applied here; callers pad with Pad first.
func EncryptCBC(padded, key, iv []byte) ([]byte, error) {
	block, err := newBlock(key, iv)
	if err != nil {
		return nil, err
	}
	if len(padded)%BlockSize != 0 {
		return nil, ErrUnalignedInput
	}

	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)
	return out, nil
}

// DecryptCBC decrypts AES-128-CBC ciphertext and strips the block padding.
func DecryptCBC(ciphertext, key, iv []byte) ([]byte, error) {
	block, err := newBlock(key, iv)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) == 0 || len(ciphertext)%BlockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext length %d", ErrCipher, len(ciphertext))
	}

	out := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ciphertext)
	return Unpad(out, BlockSize)
}

func newBlock(key, iv []byte) (cipher.Block, error) {
	if len(key) != 16 {
		return nil, ErrInvalidKeySize
	}
	if len(iv) != BlockSize {
		return nil, ErrInvalidIVSize
	}
	return aes.NewCipher(key)
}

// PadBlocks splits data into fixed-size blocks after applying PKCS#7 style
// padding: every pad byte holds the number of pad bytes. Block-aligned input
// still receives one full block of padding.
func PadBlocks(data []byte, blockSize int) [][]byte {
	padded := Pad(data, blockSize)
	blocks := make([][]byte, 0, len(padded)/blockSize)
	for i := 0; i < len(padded); i += blockSize {
		blocks = append(blocks, padded[i:i+blockSize:i+blockSize])
	}
	return blocks
}

// Pad is PadBlocks flattened into a single buffer.
func Pad(data []byte, blockSize int) []byte {
	if blockSize <= 0 || blockSize > 255 {
		panic(fmt.Sprintf("cryptox: invalid block size %d", blockSize))
	}
	n := blockSize - len(data)%blockSize
	out := make([]byte, len(data), len(data)+n)
	copy(out, data)
	for range n {
		out = append(out, byte(n))
	}
	return out
}

// Unpad removes PKCS#7 style padding, rejecting anything malformed.
func Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, fmt.Errorf("%w: padded length %d", ErrCipher, len(data))
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize {
		return nil, fmt.Errorf("%w: invalid padding", ErrCipher)
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, fmt.Errorf("%w: invalid padding", ErrCipher)
		}
	}
	return data[:len(data)-n], nil
}
