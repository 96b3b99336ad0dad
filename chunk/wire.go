package chunk

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// cborEncMode uses canonical options for deterministic encoding, so content
// hashes are stable across processes.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("chunk: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Marshal serializes a MethodChunk to CBOR bytes.
func Marshal(c *MethodChunk) ([]byte, error) {
	return cborEncMode.Marshal(c)
}

// Unmarshal deserializes a MethodChunk from CBOR bytes.
func Unmarshal(data []byte) (*MethodChunk, error) {
	var c MethodChunk
	if err := cbor.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("chunk: unmarshal: %w", err)
	}
	return &c, nil
}
