// Package vault owns per-asset symmetric key material: entropy-derived key
// generation, time-gated rotation, and the authenticated encrypt/decrypt
// primitives the rest of the system builds on.
package vault

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/crypto/sha3"

	cr "github.com/project-89/Quantum-Veil/internal/crypto"
	"github.com/project-89/Quantum-Veil/internal/entropy"
	"github.com/project-89/Quantum-Veil/internal/mask"
)

var ErrConfigNotFound = errors.New("vault: config not found")

// Vault caches key configurations by asset id. All state is process
// lifetime only; there is deliberately no durable store behind the cache.
type Vault struct {
	collector *entropy.Collector

	mu      sync.RWMutex
	configs map[string]*KeyConfig

	// rotation serializes key regeneration per asset so two concurrent
	// rotations cannot overwrite one another's result.
	rotMu    sync.Mutex
	rotation map[string]*sync.Mutex
}

func New(collector *entropy.Collector) *Vault {
	return &Vault{
		collector: collector,
		configs:   make(map[string]*KeyConfig),
		rotation:  make(map[string]*sync.Mutex),
	}
}

// CreateConfig derives fresh key material from the requested entropy
// sources and caches the resulting configuration keyed by asset id,
// replacing any previous entry.
func (v *Vault) CreateConfig(ctx context.Context, owner, asset string, sources []entropy.SourceKind, rotationInterval time.Duration, policy mask.Policy) (*KeyConfig, error) {
	key, nonce, err := v.deriveKey(ctx, sources)
	if err != nil {
		return nil, err
	}
	cfg := &KeyConfig{
		Owner:            owner,
		Asset:            asset,
		Key:              key,
		Nonce:            nonce,
		EntropySources:   append([]entropy.SourceKind(nil), sources...),
		RotationInterval: int64(rotationInterval / time.Second),
		LastRotation:     time.Now().Unix(),
		Mask:             policy.Clone(),
	}
	v.mu.Lock()
	v.configs[asset] = cfg
	v.mu.Unlock()
	return cfg.Clone(), nil
}

// Config returns a copy of the cached configuration for the asset.
func (v *Vault) Config(asset string) (*KeyConfig, error) {
	v.mu.RLock()
	cfg, ok := v.configs[asset]
	v.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, asset)
	}
	return cfg.Clone(), nil
}

// UpdateConfig replaces the cached configuration for an existing asset.
func (v *Vault) UpdateConfig(asset string, cfg *KeyConfig) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.configs[asset]; !ok {
		return fmt.Errorf("%w: %s", ErrConfigNotFound, asset)
	}
	v.configs[asset] = cfg.Clone()
	return nil
}

// UpdateMaskPolicy swaps the embedded mask policy, leaving key material
// untouched.
func (v *Vault) UpdateMaskPolicy(asset string, policy mask.Policy) (*KeyConfig, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	cfg, ok := v.configs[asset]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, asset)
	}
	cfg.Mask = policy.Clone()
	return cfg.Clone(), nil
}

// AddTrustedAgent grants an agent blanket bypass on the embedded mask
// policy. Adding an agent twice is a no-op.
func (v *Vault) AddTrustedAgent(asset, agent string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	cfg, ok := v.configs[asset]
	if !ok {
		return fmt.Errorf("%w: %s", ErrConfigNotFound, asset)
	}
	for _, a := range cfg.Mask.TrustedAgents {
		if a == agent {
			return nil
		}
	}
	cfg.Mask.TrustedAgents = append(cfg.Mask.TrustedAgents, agent)
	return nil
}

// RemoveTrustedAgent revokes a previously granted bypass.
func (v *Vault) RemoveTrustedAgent(asset, agent string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	cfg, ok := v.configs[asset]
	if !ok {
		return fmt.Errorf("%w: %s", ErrConfigNotFound, asset)
	}
	agents := cfg.Mask.TrustedAgents[:0]
	for _, a := range cfg.Mask.TrustedAgents {
		if a != agent {
			agents = append(agents, a)
		}
	}
	cfg.Mask.TrustedAgents = agents
	return nil
}

// IsTrustedAgent reports whether the agent bypasses the asset's mask.
func (v *Vault) IsTrustedAgent(asset, agent string) (bool, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	cfg, ok := v.configs[asset]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrConfigNotFound, asset)
	}
	for _, a := range cfg.Mask.TrustedAgents {
		if a == agent {
			return true, nil
		}
	}
	return false, nil
}

// RotateKey regenerates the key and nonce from the asset's configured
// entropy sources and stamps the rotation time. Rotations for the same
// asset are serialized; different assets rotate in parallel.
func (v *Vault) RotateKey(ctx context.Context, asset string) (*KeyConfig, error) {
	lock := v.rotationLock(asset)
	lock.Lock()
	defer lock.Unlock()

	v.mu.RLock()
	cfg, ok := v.configs[asset]
	v.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, asset)
	}
	sources := append([]entropy.SourceKind(nil), cfg.EntropySources...)

	// Entropy collection can block on network I/O; do it outside the
	// cache lock.
	key, nonce, err := v.deriveKey(ctx, sources)
	if err != nil {
		return nil, err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	cfg, ok = v.configs[asset]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, asset)
	}
	cr.Zero(cfg.Key)
	cfg.Key = key
	cfg.Nonce = nonce
	cfg.LastRotation = time.Now().Unix()
	return cfg.Clone(), nil
}

// Encrypt seals plaintext with the asset's current key material. The asset
// id is bound in as associated data.
func (v *Vault) Encrypt(asset string, plaintext []byte) ([]byte, error) {
	v.mu.RLock()
	cfg, ok := v.configs[asset]
	v.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, asset)
	}
	return cr.Seal(cfg.Key, cfg.Nonce, plaintext, assetAAD(asset))
}

// Decrypt opens a ciphertext produced by Encrypt. Tampering or a since
// rotated key surfaces crypto.ErrAuthenticationFailed.
func (v *Vault) Decrypt(asset string, ciphertext []byte) ([]byte, error) {
	v.mu.RLock()
	cfg, ok := v.configs[asset]
	v.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, asset)
	}
	return cr.Open(cfg.Key, cfg.Nonce, ciphertext, assetAAD(asset))
}

// ConfigHash returns a stable SHA3-512 digest of the serialized config,
// base64 encoded. External collaborators anchor this value on-chain as an
// opaque pointer; the vault does not interpret it.
func ConfigHash(cfg *KeyConfig) (string, error) {
	b, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}
	sum := sha3.Sum512(b)
	return base64.StdEncoding.EncodeToString(sum[:]), nil
}

func (v *Vault) deriveKey(ctx context.Context, sources []entropy.SourceKind) (key, nonce []byte, err error) {
	seed, err := v.collector.Gather(ctx, sources)
	if err != nil {
		return nil, nil, err
	}
	defer cr.Zero(seed)
	key, nonce = cr.DeriveFromSeed(seed)
	return key, nonce, nil
}

func (v *Vault) rotationLock(asset string) *sync.Mutex {
	v.rotMu.Lock()
	defer v.rotMu.Unlock()
	lock, ok := v.rotation[asset]
	if !ok {
		lock = &sync.Mutex{}
		v.rotation[asset] = lock
	}
	return lock
}

func assetAAD(asset string) []byte {
	return []byte("asset:" + asset)
}
