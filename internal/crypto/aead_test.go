package crypto

import (
	"bytes"
	"crypto/rand"
	"errors"
	"testing"
)

func randBytes(t testing.TB, n int) []byte {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		t.Fatalf("rand.Read: %v", err)
	}
	return b
}

func TestSealOpenRoundTrip(t *testing.T) {
	key := randBytes(t, KeySize)
	nonce := randBytes(t, NonceSize)
	pt := randBytes(t, 4096)
	aad := []byte("context")

	ct, err := Seal(key, nonce, pt, aad)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	out, err := Open(key, nonce, ct, aad)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !bytes.Equal(pt, out) {
		t.Fatal("plaintext mismatch")
	}
}

func TestSealRejectsBadMaterial(t *testing.T) {
	key := randBytes(t, KeySize)
	nonce := randBytes(t, NonceSize)

	if _, err := Seal(key[:16], nonce, []byte("x"), nil); !errors.Is(err, ErrInvalidKeyLength) {
		t.Fatalf("short key: got %v", err)
	}
	if _, err := Seal(key, nonce[:8], []byte("x"), nil); !errors.Is(err, ErrInvalidNonceLength) {
		t.Fatalf("short nonce: got %v", err)
	}
	if _, err := Open(key[:16], nonce, []byte("x"), nil); !errors.Is(err, ErrInvalidKeyLength) {
		t.Fatalf("open short key: got %v", err)
	}
	if _, err := Open(key, nonce[:8], []byte("x"), nil); !errors.Is(err, ErrInvalidNonceLength) {
		t.Fatalf("open short nonce: got %v", err)
	}
}

func TestOpenWrongKey(t *testing.T) {
	key := randBytes(t, KeySize)
	nonce := randBytes(t, NonceSize)
	ct, err := Seal(key, nonce, []byte("secret-data"), nil)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	other := randBytes(t, KeySize)
	if _, err := Open(other, nonce, ct, nil); !errors.Is(err, ErrAuthenticationFailed) {
		t.Fatalf("expected auth failure with wrong key, got %v", err)
	}
}

func TestOpenSingleByteTamper(t *testing.T) {
	key := randBytes(t, KeySize)
	nonce := randBytes(t, NonceSize)
	ct, err := Seal(key, nonce, []byte("hello"), nil)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	for i := range ct {
		mut := append([]byte(nil), ct...)
		mut[i] ^= 0x01
		if _, err := Open(key, nonce, mut, nil); !errors.Is(err, ErrAuthenticationFailed) {
			t.Fatalf("flip at %d: got %v", i, err)
		}
	}
}

func TestOpenAADMismatch(t *testing.T) {
	key := randBytes(t, KeySize)
	nonce := randBytes(t, NonceSize)
	ct, err := Seal(key, nonce, []byte("payload"), []byte("aad-1"))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if _, err := Open(key, nonce, ct, []byte("aad-2")); !errors.Is(err, ErrAuthenticationFailed) {
		t.Fatalf("expected auth failure with mismatched AAD, got %v", err)
	}
}

func TestDeriveFromSeedDeterministic(t *testing.T) {
	seed := []byte("test seed for key derivation")
	k1, n1 := DeriveFromSeed(seed)
	k2, n2 := DeriveFromSeed(seed)
	if !bytes.Equal(k1, k2) || !bytes.Equal(n1, n2) {
		t.Fatal("derivation not deterministic")
	}
	if len(k1) != KeySize || len(n1) != NonceSize {
		t.Fatalf("unexpected sizes: key=%d nonce=%d", len(k1), len(n1))
	}
	k3, _ := DeriveFromSeed([]byte("another seed"))
	if bytes.Equal(k1, k3) {
		t.Fatal("distinct seeds produced identical keys")
	}
}

func FuzzOpenRejectMutations(f *testing.F) {
	f.Add([]byte("hello"), []byte("aad"))
	f.Add([]byte(""), []byte(""))
	f.Fuzz(func(t *testing.T, pt, aad []byte) {
		key := randBytes(t, KeySize)
		nonce := randBytes(t, NonceSize)
		ct, err := Seal(key, nonce, pt, aad)
		if err != nil {
			t.Fatalf("seal: %v", err)
		}
		if _, err := Open(key, nonce, ct, aad); err != nil {
			t.Fatalf("open baseline: %v", err)
		}
		mut := append([]byte(nil), ct...)
		idx := len(pt) % len(mut)
		mut[idx] ^= 0xFF
		if _, err := Open(key, nonce, mut, aad); err == nil {
			t.Fatalf("mutation at %d succeeded", idx)
		}
	})
}
