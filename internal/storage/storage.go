// Package storage provides fragment backends: in-memory, filesystem,
// MongoDB, SQLite, and an encrypting shadow wrapper. Every store
// implements shifter.Backend and serializes fragments with
// deterministic CBOR.
package storage

import "errors"

var ErrNotFound = errors.New("fragment not found")
