// Package entropy collects raw entropy from configurable sources and mixes
// it into key material for the vault.
package entropy

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"time"
)

// SourceKind names a configured entropy source. The set is part of a
// config's identity: rotation re-collects from the same kinds.
type SourceKind string

const (
	// ChainHash mixes in a recent hash fetched from an external ledger.
	ChainHash SourceKind = "chain_hash"
	// Time mixes in the current clock with nanosecond precision.
	Time SourceKind = "time"
	// Random mixes in 64 bytes from the OS CSPRNG.
	Random SourceKind = "random"
	// Behavior mixes in recent agent behavior metrics. Until a live metrics
	// feed is attached this draws 32 random bytes, like the collectors it
	// stands in for.
	Behavior SourceKind = "behavior"
)

// HashProvider returns a recent hash from an external chain. Implementations
// are expected to block on network I/O and must honor ctx.
type HashProvider interface {
	RecentHash(ctx context.Context) ([]byte, error)
}

// HashProviderFunc adapts a function to the HashProvider interface.
type HashProviderFunc func(ctx context.Context) ([]byte, error)

func (f HashProviderFunc) RecentHash(ctx context.Context) ([]byte, error) { return f(ctx) }

// Collector gathers entropy from a configured set of source kinds.
type Collector struct {
	chain HashProvider // nil means ChainHash sources are skipped
}

func NewCollector(chain HashProvider) *Collector {
	return &Collector{chain: chain}
}

// Gather concatenates entropy from each requested source, in order, and
// always appends a final 32-byte CSPRNG draw so the result is unpredictable
// even when every configured source fails or repeats.
func (c *Collector) Gather(ctx context.Context, kinds []SourceKind) ([]byte, error) {
	var buf []byte
	for _, kind := range kinds {
		b, err := c.collect(ctx, kind)
		if err != nil {
			return nil, fmt.Errorf("entropy: collect %s: %w", kind, err)
		}
		buf = append(buf, b...)
	}
	tail := make([]byte, 32)
	if _, err := rand.Read(tail); err != nil {
		return nil, err
	}
	return append(buf, tail...), nil
}

func (c *Collector) collect(ctx context.Context, kind SourceKind) ([]byte, error) {
	switch kind {
	case ChainHash:
		if c.chain == nil {
			return nil, nil
		}
		return c.chain.RecentHash(ctx)
	case Time:
		b := make([]byte, 8)
		binary.LittleEndian.PutUint64(b, uint64(time.Now().UnixNano()))
		return b, nil
	case Random:
		b := make([]byte, 64)
		_, err := rand.Read(b)
		return b, err
	case Behavior:
		b := make([]byte, 32)
		_, err := rand.Read(b)
		return b, err
	default:
		return nil, fmt.Errorf("unknown source kind %q", kind)
	}
}
