package bridge

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"

	"moff.io/wemove/pkg/errors"
)

// Aes256Encrypt encrypts content with AES-256-CBC and PKCS#7 padding.
func Aes256Encrypt(content, encryptionKey, iv []byte) ([]byte, error) {
	bPlaintext := pkcs7Padding(content, aes.BlockSize)
	block, err := aes.NewCipher(encryptionKey)
	if err != nil {
		return nil, errors.Wrap(err, "create new cipher block")
	}
	if len(iv) != block.BlockSize() {
		return nil, errors.Errorf("invalid iv length %d", len(iv))
	}
	ciphertext := make([]byte, len(bPlaintext))
	mode := cipher.NewCBCEncrypter(block, iv)
	mode.CryptBlocks(ciphertext, bPlaintext)
	return ciphertext, nil
}

// Aes256Decrypt reverses Aes256Encrypt.
func Aes256Decrypt(cipherText, encryptionKey, iv []byte) ([]byte, error) {
	block, err := aes.NewCipher(encryptionKey)
	if err != nil {
		return nil, errors.Wrap(err, "create new cipher block")
	}
	if len(iv) != block.BlockSize() {
		return nil, errors.Errorf("invalid iv length %d", len(iv))
	}
	if len(cipherText) == 0 || len(cipherText)%block.BlockSize() != 0 {
		return nil, errors.New("cipher text is not a multiple of the block size")
	}
	plain := make([]byte, len(cipherText))
	mode := cipher.NewCBCDecrypter(block, iv)
	mode.CryptBlocks(plain, cipherText)
	return pkcs7Unpadding(plain, block.BlockSize())
}

func pkcs7Padding(plain []byte, blockSize int) []byte {
	padding := blockSize - len(plain)%blockSize
	padText := bytes.Repeat([]byte{byte(padding)}, padding)
	return append(plain, padText...)
}

func pkcs7Unpadding(plain []byte, blockSize int) ([]byte, error) {
	n := int(plain[len(plain)-1])
	if n == 0 || n > blockSize || n > len(plain) {
		return nil, errors.New("invalid padding")
	}
	for _, b := range plain[len(plain)-n:] {
		if int(b) != n {
			return nil, errors.New("invalid padding")
		}
	}
	return plain[:len(plain)-n], nil
}

func GenerateRandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, errors.Wrap(err, "read random bytes")
	}
	return b, nil
}

func HmacSha256(data, secret []byte) []byte {
	h := hmac.New(sha256.New, secret)
	h.Write(data)
	return h.Sum(nil)
}
