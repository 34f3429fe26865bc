package vault

import (
	"time"

	"github.com/project-89/Quantum-Veil/internal/entropy"
	"github.com/project-89/Quantum-Veil/internal/mask"
)

// KeyConfig is the per-asset key material and privacy configuration. One
// exists per asset, created on first request and mutated in place by
// rotation and policy updates. Held only in the vault's in-memory cache.
type KeyConfig struct {
	Owner string `json:"owner"`
	Asset string `json:"asset"`

	Key   []byte `json:"key"`   // 32 bytes
	Nonce []byte `json:"nonce"` // 12 bytes

	EntropySources []entropy.SourceKind `json:"entropy_sources"`
	// RotationInterval is the rotation policy in seconds.
	RotationInterval int64 `json:"rotation_interval_s"`
	// LastRotation is the unix timestamp of the last key generation.
	LastRotation int64 `json:"last_rotation"`

	Mask mask.Policy `json:"mask"`
}

// NeedsRotationAt reports whether the key is older than the rotation
// interval at the given instant. Pure; no side effects.
func (c *KeyConfig) NeedsRotationAt(now time.Time) bool {
	return now.Unix()-c.LastRotation > c.RotationInterval
}

// NeedsRotation is NeedsRotationAt against the wall clock.
func (c *KeyConfig) NeedsRotation() bool {
	return c.NeedsRotationAt(time.Now())
}

// TimeUntilRotation returns how long until the next scheduled rotation,
// zero if one is already due.
func (c *KeyConfig) TimeUntilRotation() time.Duration {
	elapsed := time.Now().Unix() - c.LastRotation
	if elapsed >= c.RotationInterval {
		return 0
	}
	return time.Duration(c.RotationInterval-elapsed) * time.Second
}

// Clone deep-copies the config so cached state never escapes by reference.
func (c *KeyConfig) Clone() *KeyConfig {
	out := *c
	out.Key = append([]byte(nil), c.Key...)
	out.Nonce = append([]byte(nil), c.Nonce...)
	out.EntropySources = append([]entropy.SourceKind(nil), c.EntropySources...)
	out.Mask = c.Mask.Clone()
	return &out
}
