package mmu

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

const (
	checkpointMagic   = "MMCK"
	checkpointVersion = 2
)

var ErrCorruptCheckpoint = errors.New("corrupt checkpoint")

// EncodeCheckpoint writes v as a versioned, zstd-compressed JSON blob. JSON
// keeps pointers to zero values present and restores finite float64 values
// bit for bit; NaN and infinities are rejected.
func EncodeCheckpoint(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("json encode: %w", err)
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, err
	}
	defer enc.Close()

	out := make([]byte, 0, len(checkpointMagic)+1+len(raw)/2)
	out = append(out, checkpointMagic...)
	out = append(out, checkpointVersion)
	return enc.EncodeAll(raw, out), nil
}

// DecodeCheckpoint reverses EncodeCheckpoint into v.
func DecodeCheckpoint(data []byte, v any) error {
	if len(data) < len(checkpointMagic)+1 || string(data[:len(checkpointMagic)]) != checkpointMagic {
		return fmt.Errorf("%w: bad header", ErrCorruptCheckpoint)
	}
	if ver := data[len(checkpointMagic)]; ver != checkpointVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrCorruptCheckpoint, ver)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return err
	}
	defer dec.Close()
	raw, err := dec.DecodeAll(data[len(checkpointMagic)+1:], nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptCheckpoint, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: json decode: %v", ErrCorruptCheckpoint, err)
	}
	return nil
}
