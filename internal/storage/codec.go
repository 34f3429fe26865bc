package storage

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/project-89/Quantum-Veil/internal/shifter"
)

// encMode uses Core Deterministic Encoding so the same fragment always
// serializes to identical bytes regardless of which backend wrote it.
var encMode cbor.EncMode

var decMode cbor.DecMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("storage: cbor encoder init: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("storage: cbor decoder init: " + err.Error())
	}
}

func encodeFragment(f *shifter.Fragment) ([]byte, error) {
	b, err := encMode.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("storage: encode fragment %s: %w", f.ID, err)
	}
	return b, nil
}

func decodeFragment(data []byte) (*shifter.Fragment, error) {
	var f shifter.Fragment
	if err := decMode.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("storage: decode fragment: %w", err)
	}
	return &f, nil
}
