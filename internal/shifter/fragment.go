package shifter

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"time"

	"github.com/zeebo/blake3"
)

// LocationKind classifies where a fragment is stored.
type LocationKind string

const (
	LocationOnchain          LocationKind = "onchain"
	LocationContentAddressed LocationKind = "content_addressed"
	LocationPermanent        LocationKind = "permanent"
	LocationShadow           LocationKind = "shadow"
)

// Location describes a fragment's storage placement. Ref is backend
// specific: a ledger account, a content id, an archive transaction id, or a
// shadow access path. Backends fill it in on store.
type Location struct {
	Kind LocationKind `json:"kind"`
	Ref  string       `json:"ref,omitempty"`
}

// Fragment is one contiguous slice of an encrypted payload. Immutable once
// stored. Seq records the slice's position in the original ciphertext so
// reassembly does not depend on creation timestamps, which fragments from
// one fracture operation routinely share.
type Fragment struct {
	ID        string   `json:"id" cbor:"1,keyasint"`
	Timeline  Timeline `json:"timeline" cbor:"2,keyasint"`
	Seq       int      `json:"seq" cbor:"3,keyasint"`
	Data      []byte   `json:"data" cbor:"4,keyasint"`
	Links     []string `json:"links" cbor:"5,keyasint"`
	CreatedAt int64    `json:"created_at" cbor:"6,keyasint"`
	Location  Location `json:"location" cbor:"7,keyasint"`
}

// LinkedTo reports whether the fragment links to the given sibling.
func (f *Fragment) LinkedTo(id string) bool {
	for _, l := range f.Links {
		if l == id {
			return true
		}
	}
	return false
}

// Backend is the storage capability the shifter consumes. Concrete
// transports (ledger writes, content-addressed puts, archive transactions,
// private encrypted stores) live in internal/storage; the shifter is
// agnostic to which one serves a timeline.
type Backend interface {
	Store(ctx context.Context, f *Fragment) (string, error)
	Retrieve(ctx context.Context, id string) (*Fragment, error)
	Exists(ctx context.Context, id string) (bool, error)
	Delete(ctx context.Context, id string) error
}

const fragmentIDLen = 16

// newFragmentID derives a short unique token from the asset, timeline,
// creation time, and a fresh random draw.
func newFragmentID(asset string, timeline Timeline, now time.Time) string {
	var draw [8]byte
	_, _ = rand.Read(draw[:])

	h := blake3.New()
	h.Write([]byte(asset))
	h.Write([]byte(timeline))
	var ts [8]byte
	binary.LittleEndian.PutUint64(ts[:], uint64(now.UnixNano()))
	h.Write(ts[:])
	h.Write(draw[:])

	id := base64.RawURLEncoding.EncodeToString(h.Sum(nil))
	return id[:fragmentIDLen]
}
