// Package record stores co-simulation recordings as a zstd stream: one JSON
// header line followed by the record as a JSON document.
package record

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"

	"mosim.ai/internal/cosim"
)

// Version 1 files carried a gob body and are no longer read.
const Version = 2

var ErrVersion = errors.New("unsupported record version")

type Header struct {
	Version   int       `json:"version"`
	Frames    int       `json:"frames"`
	AvatarID  string    `json:"avatar_id"`
	StartedAt time.Time `json:"started_at"`
	// Time is the simulation time of the last frame.
	Time float64 `json:"time"`
}

func HeaderOf(rec *cosim.Record) Header {
	h := Header{Version: Version, Frames: len(rec.Frames), AvatarID: rec.AvatarID, StartedAt: rec.StartedAt}
	if n := len(rec.Frames); n > 0 {
		h.Time = rec.Frames[n-1].Time
	}
	return h
}

func Write(path string, rec *cosim.Record) error {
	if rec == nil {
		return fmt.Errorf("nil record")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, _ := json.Marshal(HeaderOf(rec))
	if _, err := bw.Write(hb); err != nil {
		_ = enc.Close()
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		_ = enc.Close()
		return err
	}
	if err := json.NewEncoder(bw).Encode(rec); err != nil {
		_ = enc.Close()
		return fmt.Errorf("json encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		_ = enc.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return f.Sync()
}

func open(path string) (*os.File, *zstd.Decoder, *bufio.Reader, Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, nil, h, err
	}
	dec, err := zstd.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, nil, nil, h, err
	}
	br := bufio.NewReaderSize(dec, 256*1024)
	line, err := br.ReadBytes('\n')
	if err != nil {
		dec.Close()
		_ = f.Close()
		return nil, nil, nil, h, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		dec.Close()
		_ = f.Close()
		return nil, nil, nil, h, fmt.Errorf("decode header: %w", err)
	}
	if h.Version != Version {
		dec.Close()
		_ = f.Close()
		return nil, nil, nil, h, fmt.Errorf("%w: %d", ErrVersion, h.Version)
	}
	return f, dec, br, h, nil
}

// ReadHeader returns only the header line.
func ReadHeader(path string) (Header, error) {
	f, dec, _, h, err := open(path)
	if err != nil {
		return h, err
	}
	dec.Close()
	_ = f.Close()
	return h, nil
}

func Read(path string) (*cosim.Record, Header, error) {
	f, dec, br, h, err := open(path)
	if err != nil {
		return nil, h, err
	}
	defer f.Close()
	defer dec.Close()

	var rec cosim.Record
	if err := json.NewDecoder(br).Decode(&rec); err != nil {
		return nil, h, fmt.Errorf("json decode: %w", err)
	}
	if len(rec.Frames) != h.Frames {
		return nil, h, fmt.Errorf("header announces %d frames, body has %d", h.Frames, len(rec.Frames))
	}
	return &rec, h, nil
}

// Verify checks that frames are numbered consecutively with non-decreasing
// time, and that every merged posture has the same length as the first one.
func Verify(rec *cosim.Record) error {
	dof := -1
	for i, f := range rec.Frames {
		if i > 0 {
			prev := rec.Frames[i-1]
			if f.FrameNumber != prev.FrameNumber+1 {
				return fmt.Errorf("frame %d: number %d follows %d", i, f.FrameNumber, prev.FrameNumber)
			}
			if f.Time < prev.Time {
				return fmt.Errorf("frame %d: time %g before %g", i, f.Time, prev.Time)
			}
		}
		n := len(f.Merged.Posture.PostureData)
		if dof < 0 {
			dof = n
		} else if n != dof {
			return fmt.Errorf("frame %d: posture has %d values, expected %d", i, n, dof)
		}
	}
	if want := rec.Description.DOF(); want > 0 && dof >= 0 && dof != want {
		return fmt.Errorf("postures have %d values, avatar declares %d", dof, want)
	}
	return nil
}
