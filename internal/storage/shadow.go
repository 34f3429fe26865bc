package storage

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"

	cr "github.com/project-89/Quantum-Veil/internal/crypto"
	"github.com/project-89/Quantum-Veil/internal/shifter"
)

const shadowSaltSize = 32

var shadowInfo = []byte("shadow/fragment/v1")

var ErrShadowSealShort = errors.New("storage: sealed payload too short")

// ShadowStore wraps another backend and seals each fragment's payload
// before it leaves the process. Fragment metadata (id, timeline, links,
// sequence) stays readable so the inner store can still index, but the
// carried ciphertext slice gets a second, independent layer keyed off a
// deployment secret. Losing the inner store's contents to an attacker
// reveals only doubly-encrypted bytes.
type ShadowStore struct {
	inner shifter.Backend
	kek   []byte
}

// NewShadowStore derives a key-encryption key from the secret with
// Argon2id and the fixed deployment salt. The same secret and salt must
// be used to read fragments back.
func NewShadowStore(inner shifter.Backend, secret, salt []byte) *ShadowStore {
	kek := argon2.IDKey(secret, salt, 3, 128*1024, 4, 32)
	return &ShadowStore{inner: inner, kek: kek}
}

func (s *ShadowStore) Store(ctx context.Context, f *shifter.Fragment) (string, error) {
	sealed, err := s.seal(f.Data, []byte(f.ID))
	if err != nil {
		return "", err
	}
	cp := *f
	cp.Data = sealed
	ref, err := s.inner.Store(ctx, &cp)
	if err != nil {
		return "", err
	}
	return "shadow+" + ref, nil
}

func (s *ShadowStore) Retrieve(ctx context.Context, id string) (*shifter.Fragment, error) {
	f, err := s.inner.Retrieve(ctx, id)
	if err != nil {
		return nil, err
	}
	data, err := s.open(f.Data, []byte(f.ID))
	if err != nil {
		return nil, err
	}
	f.Data = data
	return f, nil
}

func (s *ShadowStore) Exists(ctx context.Context, id string) (bool, error) {
	return s.inner.Exists(ctx, id)
}

func (s *ShadowStore) Delete(ctx context.Context, id string) error {
	return s.inner.Delete(ctx, id)
}

// seal encrypts data under a per-fragment subkey. Layout: [salt||ct].
func (s *ShadowStore) seal(data, aad []byte) ([]byte, error) {
	salt := make([]byte, shadowSaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	key, nonce, err := s.subkeys(salt)
	if err != nil {
		return nil, err
	}
	defer cr.Zero(key)

	ct, err := cr.Seal(key, nonce, data, aad)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, shadowSaltSize+len(ct))
	out = append(out, salt...)
	out = append(out, ct...)
	return out, nil
}

func (s *ShadowStore) open(sealed, aad []byte) ([]byte, error) {
	if len(sealed) < shadowSaltSize {
		return nil, ErrShadowSealShort
	}
	key, nonce, err := s.subkeys(sealed[:shadowSaltSize])
	if err != nil {
		return nil, err
	}
	defer cr.Zero(key)
	return cr.Open(key, nonce, sealed[shadowSaltSize:], aad)
}

func (s *ShadowStore) subkeys(salt []byte) (key, nonce []byte, err error) {
	stream := hkdf.New(sha256.New, s.kek, salt, shadowInfo)
	key = make([]byte, cr.KeySize)
	nonce = make([]byte, cr.NonceSize)
	if _, err = io.ReadFull(stream, key); err != nil {
		return nil, nil, err
	}
	if _, err = io.ReadFull(stream, nonce); err != nil {
		return nil, nil, err
	}
	return key, nonce, nil
}
