// Package envelope implements the authenticated encryption primitive that
// seals custody secrets at rest. An envelope carries its own integrity proof:
// tampering with any field makes Open fail closed.
package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/scrypt"

	"github.com/OpenCustody/wallet_layer/internal/errors"
)

// scrypt parameters for the master-secret KDF. Memory-hard on purpose so a
// leaked database plus a weak master secret stays expensive to brute-force.
// N=2^15 costs ~32MB per derivation, acceptable for request-scoped use on
// server hardware.
const (
	scryptN      = 1 << 15
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 32

	nonceLen = 12
	tagLen   = 16

	// MinMasterSecretLen is the minimum accepted master secret size.
	MinMasterSecretLen = 32
)

// applicationSalt is fixed so the same master secret always derives the same
// key. Uniqueness per ciphertext comes from the random GCM nonce, not the
// salt.
var applicationSalt = []byte("wallet_layer/custody-envelope/v1")

// Envelope is a sealed secret. The persisted encoding is
// hex(nonce):hex(tag):hex(ciphertext), lowercase, exactly three fields; that
// format is stable for data interoperability.
type Envelope struct {
	Nonce      []byte
	Tag        []byte
	Ciphertext []byte
}

// Encode renders the stable three-field wire form.
func (e Envelope) Encode() string {
	return hex.EncodeToString(e.Nonce) + ":" + hex.EncodeToString(e.Tag) + ":" + hex.EncodeToString(e.Ciphertext)
}

// Parse decodes the wire form, rejecting anything structurally malformed
// before cryptography is ever invoked.
func Parse(encoded string) (Envelope, error) {
	parts := strings.Split(encoded, ":")
	if len(parts) != 3 {
		return Envelope{}, fmt.Errorf("%w: expected 3 fields, got %d", errors.ErrIntegrityViolation, len(parts))
	}

	nonce, err := hex.DecodeString(parts[0])
	if err != nil {
		return Envelope{}, fmt.Errorf("%w: bad nonce encoding", errors.ErrIntegrityViolation)
	}
	tag, err := hex.DecodeString(parts[1])
	if err != nil {
		return Envelope{}, fmt.Errorf("%w: bad tag encoding", errors.ErrIntegrityViolation)
	}
	ciphertext, err := hex.DecodeString(parts[2])
	if err != nil {
		return Envelope{}, fmt.Errorf("%w: bad ciphertext encoding", errors.ErrIntegrityViolation)
	}

	if len(nonce) != nonceLen || len(tag) != tagLen || len(ciphertext) == 0 {
		return Envelope{}, fmt.Errorf("%w: malformed envelope fields", errors.ErrIntegrityViolation)
	}

	return Envelope{Nonce: nonce, Tag: tag, Ciphertext: ciphertext}, nil
}

// Seal encrypts plaintext under a key derived from masterSecret. A fresh
// random nonce is generated per call; the derived key is not cached.
func Seal(plaintext, masterSecret []byte) (Envelope, error) {
	if len(plaintext) == 0 {
		return Envelope{}, errors.Validation("plaintext must not be empty")
	}
	aead, err := newAEAD(masterSecret)
	if err != nil {
		return Envelope{}, err
	}

	nonce := make([]byte, nonceLen)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return Envelope{}, fmt.Errorf("generate nonce: %w", err)
	}

	sealed := aead.Seal(nil, nonce, plaintext, nil)

	// GCM appends the tag to the ciphertext; split it out so the persisted
	// format keeps nonce, tag, and ciphertext as unambiguous fields.
	split := len(sealed) - tagLen
	return Envelope{
		Nonce:      nonce,
		Tag:        sealed[split:],
		Ciphertext: sealed[:split],
	}, nil
}

// Open authenticates and decrypts an envelope. Any tamper of ciphertext,
// nonce, or tag yields ErrIntegrityViolation and no plaintext.
func Open(env Envelope, masterSecret []byte) ([]byte, error) {
	if len(env.Nonce) != nonceLen || len(env.Tag) != tagLen || len(env.Ciphertext) == 0 {
		return nil, fmt.Errorf("%w: malformed envelope", errors.ErrIntegrityViolation)
	}
	aead, err := newAEAD(masterSecret)
	if err != nil {
		return nil, err
	}

	sealed := make([]byte, 0, len(env.Ciphertext)+tagLen)
	sealed = append(sealed, env.Ciphertext...)
	sealed = append(sealed, env.Tag...)

	plaintext, err := aead.Open(nil, env.Nonce, sealed, nil)
	if err != nil {
		return nil, errors.ErrIntegrityViolation
	}
	return plaintext, nil
}

func newAEAD(masterSecret []byte) (cipher.AEAD, error) {
	if len(masterSecret) < MinMasterSecretLen {
		return nil, errors.Validation("master secret must be at least %d bytes", MinMasterSecretLen)
	}

	key, err := scrypt.Key(masterSecret, applicationSalt, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	defer clear(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	return cipher.NewGCM(block)
}
