// Package checkpoint persists parameter snapshots in the .anneal binary
// format:
//
//	[4 bytes: Magic "ANNL"]
//	[4 bytes: Version (uint32 LE)]
//	[8 bytes: Header size (uint64 LE)]
//	[8 bytes: Data size (uint64 LE)]
//	[32 bytes: SHA-256 checksum of the data section]
//	[Header: JSON metadata]
//	[Data: float64 LE parameter values, 64-byte aligned]
//
// The header records each parameter's name, shape and offset plus the
// training state at the time of the snapshot, so a saved run can be resumed
// or inspected without the model that produced it.
package checkpoint

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"io"
	"math"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/anneal-ml/anneal/internal/model"
	"github.com/anneal-ml/anneal/internal/param"
)

const (
	Magic         = "ANNL"
	FormatVersion = 1
	// Data section alignment, in bytes.
	alignment   = 64
	fixedSize   = 4 + 4 + 8 + 8 + sha256.Size
	elementSize = 8 // float64

	// Size bounds on the untrusted fixed-header fields. Both sections are
	// allocated up front, so a corrupt size field must fail here rather
	// than in the allocator.
	maxHeaderSize = 100 * 1024 * 1024
	maxDataSize   = 1 << 32
)

// ErrChecksumMismatch reports a data section that does not hash to the
// checksum stored in the fixed header.
var ErrChecksumMismatch = errors.New("checkpoint: checksum mismatch")

// ErrHeaderTooLarge reports a header size field beyond the format bound.
var ErrHeaderTooLarge = errors.New("checkpoint: header too large")

// Header is the JSON metadata block of a checkpoint.
type Header struct {
	FormatVersion int         `json:"format_version"`
	CreatedAt     time.Time   `json:"created_at"`
	Params        []ParamMeta `json:"params"`
	Training      Training    `json:"training,omitempty"`
}

// ParamMeta locates one parameter inside the data section.
type ParamMeta struct {
	Name   string `json:"name"`
	Shape  []int  `json:"shape"`
	Offset int64  `json:"offset"` // bytes from the start of the data section
	Size   int64  `json:"size"`   // bytes
}

// Training records the run state at snapshot time.
type Training struct {
	Method    string  `json:"method,omitempty"`
	Iteration int     `json:"iteration,omitempty"`
	BestCost  float64 `json:"best_cost,omitempty"`
}

// Write serializes the model's current parameters to w.
func Write(w io.Writer, m model.Model, training Training) error {
	header := Header{
		FormatVersion: FormatVersion,
		CreatedAt:     time.Now().UTC(),
		Training:      training,
	}

	params := m.Parameters()
	var offset int64
	for _, p := range params {
		size := int64(p.Len() * elementSize)
		header.Params = append(header.Params, ParamMeta{
			Name:   p.Name(),
			Shape:  p.Shape(),
			Offset: offset,
			Size:   size,
		})
		offset += size
	}

	data := make([]byte, 0, offset)
	for _, p := range params {
		for _, v := range p.Data() {
			data = binary.LittleEndian.AppendUint64(data, math.Float64bits(v))
		}
	}
	checksum := sha256.Sum256(data)

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return errors.Wrap(err, "checkpoint: marshaling header failed")
	}

	fixed := make([]byte, fixedSize)
	copy(fixed[0:4], Magic)
	binary.LittleEndian.PutUint32(fixed[4:8], FormatVersion)
	binary.LittleEndian.PutUint64(fixed[8:16], uint64(len(headerJSON)))
	binary.LittleEndian.PutUint64(fixed[16:24], uint64(len(data)))
	copy(fixed[24:24+sha256.Size], checksum[:])

	if _, err := w.Write(fixed); err != nil {
		return errors.Wrap(err, "checkpoint: writing fixed header failed")
	}
	if _, err := w.Write(headerJSON); err != nil {
		return errors.Wrap(err, "checkpoint: writing header failed")
	}
	pos := int64(fixedSize) + int64(len(headerJSON))
	if padding := (alignment - pos%alignment) % alignment; padding > 0 {
		if _, err := w.Write(make([]byte, padding)); err != nil {
			return errors.Wrap(err, "checkpoint: writing padding failed")
		}
	}
	if _, err := w.Write(data); err != nil {
		return errors.Wrap(err, "checkpoint: writing parameter data failed")
	}
	return nil
}

// Read parses a checkpoint from r, verifying the checksum.
func Read(r io.Reader) (Header, param.Snapshot, error) {
	fixed := make([]byte, fixedSize)
	if _, err := io.ReadFull(r, fixed); err != nil {
		return Header{}, nil, errors.Wrap(err, "checkpoint: reading fixed header failed")
	}
	if string(fixed[0:4]) != Magic {
		return Header{}, nil, errors.Errorf("checkpoint: bad magic %q", fixed[0:4])
	}
	if v := binary.LittleEndian.Uint32(fixed[4:8]); v != FormatVersion {
		return Header{}, nil, errors.Errorf("checkpoint: unsupported format version %d", v)
	}
	headerSize := binary.LittleEndian.Uint64(fixed[8:16])
	dataSize := binary.LittleEndian.Uint64(fixed[16:24])
	if headerSize > maxHeaderSize {
		return Header{}, nil, errors.WithStack(ErrHeaderTooLarge)
	}
	if dataSize > maxDataSize || dataSize%elementSize != 0 {
		return Header{}, nil, errors.Errorf("checkpoint: invalid data size %d", dataSize)
	}
	var stored [sha256.Size]byte
	copy(stored[:], fixed[24:24+sha256.Size])

	headerJSON := make([]byte, headerSize)
	if _, err := io.ReadFull(r, headerJSON); err != nil {
		return Header{}, nil, errors.Wrap(err, "checkpoint: reading header failed")
	}
	var header Header
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return Header{}, nil, errors.Wrap(err, "checkpoint: parsing header failed")
	}

	pos := int64(fixedSize) + int64(headerSize)
	if padding := (alignment - pos%alignment) % alignment; padding > 0 {
		if _, err := io.CopyN(io.Discard, r, padding); err != nil {
			return Header{}, nil, errors.Wrap(err, "checkpoint: skipping padding failed")
		}
	}

	// Grown from the stream rather than allocated up front, so a size field
	// larger than the remaining stream fails without the full allocation.
	var dataBuf bytes.Buffer
	if _, err := io.CopyN(&dataBuf, r, int64(dataSize)); err != nil {
		return Header{}, nil, errors.Wrap(err, "checkpoint: reading parameter data failed")
	}
	data := dataBuf.Bytes()
	if sha256.Sum256(data) != stored {
		return Header{}, nil, errors.WithStack(ErrChecksumMismatch)
	}

	snapshot := make(param.Snapshot, len(header.Params))
	for i, meta := range header.Params {
		if meta.Offset < 0 || meta.Size < 0 || meta.Offset+meta.Size > int64(dataSize) || meta.Size%elementSize != 0 {
			return Header{}, nil, errors.Errorf("checkpoint: parameter %s outside data section", meta.Name)
		}
		values := make([]float64, meta.Size/elementSize)
		for j := range values {
			bits := binary.LittleEndian.Uint64(data[meta.Offset+int64(j)*elementSize:])
			values[j] = math.Float64frombits(bits)
		}
		snapshot[i] = values
	}
	return header, snapshot, nil
}

// Save writes the model's parameters to a file at path.
func Save(path string, m model.Model, training Training) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "checkpoint: creating file failed")
	}
	if err := Write(f, m, training); err != nil {
		f.Close()
		return err
	}
	return errors.Wrap(f.Close(), "checkpoint: closing file failed")
}

// Load reads a checkpoint file and restores its values into the model's
// parameters. Parameters are matched by name; shapes must agree.
func Load(path string, m model.Model) (Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, errors.Wrap(err, "checkpoint: opening file failed")
	}
	defer f.Close()

	header, snapshot, err := Read(f)
	if err != nil {
		return Header{}, err
	}

	byName := make(map[string]int, len(header.Params))
	for i, meta := range header.Params {
		byName[meta.Name] = i
	}
	for _, p := range m.Parameters() {
		i, ok := byName[p.Name()]
		if !ok {
			return Header{}, errors.Errorf("checkpoint: no values for parameter %s", p.Name())
		}
		if err := p.Set(snapshot[i]); err != nil {
			return Header{}, err
		}
	}
	return header, nil
}
