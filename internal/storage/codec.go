package storage

import (
	"fmt"

	"github.com/chrissnell/gwrecharge/internal/glue"
	"github.com/vmihailenco/msgpack/v5"
)

// EncodeResult serializes a GLUE result for archiving. A nil result encodes
// to an empty blob.
func EncodeResult(r *glue.Result) ([]byte, error) {
	if r == nil {
		return nil, nil
	}
	b, err := msgpack.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encoding result: %w", err)
	}
	return b, nil
}

// DecodeResult restores a result written by EncodeResult. An empty blob
// decodes to nil.
func DecodeResult(b []byte) (*glue.Result, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var r glue.Result
	if err := msgpack.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("decoding result: %w", err)
	}
	return &r, nil
}
