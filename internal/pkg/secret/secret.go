package secret

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"io"

	"github.com/rotisserie/eris"
	"golang.org/x/crypto/nacl/secretbox"
)

const nonceSize = 24

var (
	ErrInvalidKey    = eris.New("secret: key must be 32 bytes hex encoded")
	ErrInvalidCipher = eris.New("secret: invalid ciphertext")
)

// Box 用对称密钥加解密站点密码
type Box struct {
	key [32]byte
}

// NewBox 从 64 位 hex 字符串创建
func NewBox(hexKey string) (*Box, error) {
	raw, err := hex.DecodeString(hexKey)
	if err != nil || len(raw) != 32 {
		return nil, ErrInvalidKey
	}

	b := &Box{}
	copy(b.key[:], raw)
	return b, nil
}

// Seal 加密，返回 base64(nonce || box)
func (b *Box) Seal(plaintext string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", eris.Wrap(err, "secret: read nonce")
	}

	out := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &b.key)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Open 解密 Seal 的输出
func (b *Box) Open(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil || len(raw) < nonceSize+secretbox.Overhead {
		return "", ErrInvalidCipher
	}

	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])

	plain, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &b.key)
	if !ok {
		return "", ErrInvalidCipher
	}
	return string(plain), nil
}

// GenerateKey 生成新的 hex 密钥，供 jobctl 初始化配置使用
func GenerateKey() (string, error) {
	var key [32]byte
	if _, err := io.ReadFull(rand.Reader, key[:]); err != nil {
		return "", eris.Wrap(err, "secret: generate key")
	}
	return hex.EncodeToString(key[:]), nil
}
