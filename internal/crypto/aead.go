// Copyright 2026 The EFS Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package crypto implements C1, the authenticated-encryption layer
// every record passes through before it reaches the key-value store.
package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/efs-go/efs/errno"
)

// KeySize is the required length, in bytes, of a root key accepted by
// New.
const KeySize = chacha20poly1305.KeySize

// info strings used to derive independent subkeys from a single root
// key via HKDF, so that ciphertext from one record class can never be
// mistaken for another's during decryption.
const (
	infoMeta    = "efs/v1/inode-meta"
	infoBlock   = "efs/v1/block-data"
	infoDirent  = "efs/v1/dirent"
	infoCounter = "efs/v1/counter"
)

// Domain selects which derived subkey a Sealer uses. Keeping record
// classes on separate subkeys means a crash-consistency bug that
// copies a stale ciphertext from one domain into another is caught by
// AEAD authentication instead of silently "working".
type Domain int

const (
	DomainMeta Domain = iota
	DomainBlock
	DomainDirent
	DomainCounter
)

// Sealer encrypts and decrypts fixed records for one Domain. It is
// safe for concurrent use.
type Sealer interface {
	// Seal returns iv||ciphertext||tag for plaintext.
	Seal(plaintext []byte) ([]byte, error)
	// Open authenticates and decrypts a blob produced by Seal. It
	// returns errno.Corruption if the tag check fails or the blob is
	// shorter than a valid record can be.
	Open(blob []byte) ([]byte, error)
}

// AEAD holds the root key; per-domain subkeys are derived from it on
// demand.
type AEAD struct {
	rootKey [KeySize]byte
}

// New derives an AEAD context from a root key, which must be exactly
// KeySize bytes (already in "accepted form" per spec; stretching a
// passphrase into that form is the caller's concern — cmd/efsctl reads
// the key as exactly 32 raw bytes from a file).
func New(rootKey []byte) (*AEAD, error) {
	if len(rootKey) != KeySize {
		return nil, fmt.Errorf("efs/crypto: root key must be %d bytes, got %d", KeySize, len(rootKey))
	}
	a := &AEAD{}
	copy(a.rootKey[:], rootKey)
	return a, nil
}

// Fingerprint returns a stable, non-reversible identifier for the
// block-domain subkey, stored unencrypted in the store's meta domain
// so that Open reports a mismatched key as errno.KeyMismatch instead
// of a later decrypt failure.
func (a *AEAD) Fingerprint() [32]byte {
	sub := a.subkey(DomainBlock)
	return sha256.Sum256(sub[:])
}

func (a *AEAD) subkey(d Domain) [KeySize]byte {
	var info string
	switch d {
	case DomainMeta:
		info = infoMeta
	case DomainBlock:
		info = infoBlock
	case DomainDirent:
		info = infoDirent
	case DomainCounter:
		info = infoCounter
	default:
		panic("efs/crypto: unknown domain")
	}
	r := hkdf.New(sha256.New, a.rootKey[:], nil, []byte(info))
	var out [KeySize]byte
	if _, err := io.ReadFull(r, out[:]); err != nil {
		// hkdf.New with a valid hash never fails to produce output
		// of this size; a failure here means the runtime's crypto
		// primitives are broken beyond anything we can recover from.
		panic(fmt.Sprintf("efs/crypto: hkdf expand failed: %v", err))
	}
	return out
}

// Sealer returns the Sealer for the given domain.
func (a *AEAD) Sealer(d Domain) Sealer {
	key := a.subkey(d)
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		panic(fmt.Sprintf("efs/crypto: chacha20poly1305.New: %v", err))
	}
	return &sealer{aead: aead}
}

type sealer struct {
	aead interface {
		Seal(dst, nonce, plaintext, additionalData []byte) []byte
		Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
		NonceSize() int
		Overhead() int
	}
}

func (s *sealer) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("efs/crypto: reading nonce: %w", err)
	}
	out := make([]byte, 0, len(nonce)+len(plaintext)+s.aead.Overhead())
	out = append(out, nonce...)
	out = s.aead.Seal(out, nonce, plaintext, nil)
	return out, nil
}

func (s *sealer) Open(blob []byte) ([]byte, error) {
	ns := s.aead.NonceSize()
	if len(blob) < ns+s.aead.Overhead() {
		return nil, errno.Corruption
	}
	nonce, ciphertext := blob[:ns], blob[ns:]
	plaintext, err := s.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, errno.Corruption
	}
	return plaintext, nil
}
