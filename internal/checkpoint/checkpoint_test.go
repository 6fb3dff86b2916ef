package checkpoint

import (
	"bytes"
	"encoding/binary"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"

	"github.com/anneal-ml/anneal/internal/model"
	"github.com/anneal-ml/anneal/internal/param"
)

type paramsModel struct {
	params []*param.Parameter
}

func (m *paramsModel) Parameters() []*param.Parameter            { return m.params }
func (m *paramsModel) CostNames() []string                       { return []string{model.PrimaryCost} }
func (m *paramsModel) Evaluate(model.Batch) (model.CostReport, error) {
	return model.CostReport{0}, nil
}
func (m *paramsModel) Gradients(model.Batch) ([][]float64, error) { return nil, nil }
func (m *paramsModel) TrainStep(model.Batch) (model.CostReport, error) {
	return model.CostReport{0}, nil
}

func testModel() *paramsModel {
	return &paramsModel{params: []*param.Parameter{
		param.MustNew("w", []int{2, 3}, []float64{1, 2, 3, 4, 5, 6}),
		param.MustNew("b", []int{3}, []float64{-0.5, 0, 0.5}),
	}}
}

func TestWriteReadRoundTrip(t *testing.T) {
	m := testModel()
	var buf bytes.Buffer
	if err := Write(&buf, m, Training{Method: "sgd", Iteration: 42, BestCost: 0.125}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	header, snapshot, err := Read(&buf)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if header.FormatVersion != FormatVersion {
		t.Errorf("format version = %d, want %d", header.FormatVersion, FormatVersion)
	}
	if header.Training.Iteration != 42 || header.Training.BestCost != 0.125 {
		t.Errorf("training meta not preserved: %+v", header.Training)
	}
	if len(header.Params) != 2 {
		t.Fatalf("expected 2 parameter entries, got %d", len(header.Params))
	}
	if header.Params[0].Name != "w" || header.Params[1].Name != "b" {
		t.Errorf("parameter order not preserved: %+v", header.Params)
	}
	for i, p := range m.params {
		got, want := snapshot[i], p.Data()
		if len(got) != len(want) {
			t.Fatalf("%s: %d values, want %d", p.Name(), len(got), len(want))
		}
		for j := range want {
			if got[j] != want[j] {
				t.Errorf("%s[%d] = %g, want %g", p.Name(), j, got[j], want[j])
			}
		}
	}
}

func TestReadRejectsBadMagic(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, testModel(), Training{}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	raw := buf.Bytes()
	copy(raw[0:4], "BORN")
	if _, _, err := Read(bytes.NewReader(raw)); err == nil {
		t.Fatal("expected an error for foreign magic bytes")
	}
}

func TestReadRejectsCorruptSizeFields(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, testModel(), Training{}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	valid := buf.Bytes()

	corrupt := func(offset int, size uint64) []byte {
		raw := append([]byte(nil), valid...)
		binary.LittleEndian.PutUint64(raw[offset:], size)
		return raw
	}

	// A header size field near the uint64 range must fail cleanly instead
	// of reaching the allocator.
	_, _, err := Read(bytes.NewReader(corrupt(8, 1<<62)))
	if !errors.Is(err, ErrHeaderTooLarge) {
		t.Fatalf("expected ErrHeaderTooLarge, got %v", err)
	}

	// Same for the data size field.
	if _, _, err := Read(bytes.NewReader(corrupt(16, 1<<62))); err == nil {
		t.Fatal("expected an error for an oversized data size")
	}

	// A data size within bounds but beyond the end of the stream fails on
	// the read, not with a stale allocation.
	if _, _, err := Read(bytes.NewReader(corrupt(16, 1<<24))); err == nil {
		t.Fatal("expected an error for a data size the stream cannot back")
	}

	// Data sizes that are not whole float64 elements are rejected.
	if _, _, err := Read(bytes.NewReader(corrupt(16, 9*elementSize+1))); err == nil {
		t.Fatal("expected an error for a misaligned data size")
	}
}

func TestReadDetectsCorruption(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, testModel(), Training{}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	raw := buf.Bytes()
	raw[len(raw)-1] ^= 0xFF
	_, _, err := Read(bytes.NewReader(raw))
	if !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("expected ErrChecksumMismatch, got %v", err)
	}
}

func TestSaveLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.anneal")
	if err := Save(path, testModel(), Training{Method: "layerwise"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Load into a model with the same parameter names but different values.
	m := &paramsModel{params: []*param.Parameter{
		param.MustNew("w", []int{2, 3}, make([]float64, 6)),
		param.MustNew("b", []int{3}, make([]float64, 3)),
	}}
	header, err := Load(path, m)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if header.Training.Method != "layerwise" {
		t.Errorf("method = %q, want layerwise", header.Training.Method)
	}
	if got := m.params[0].Data(); got[0] != 1 || got[5] != 6 {
		t.Errorf("w not restored: %v", got)
	}
	if got := m.params[1].Data(); got[0] != -0.5 {
		t.Errorf("b not restored: %v", got)
	}
}

func TestLoadRejectsMissingParameter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.anneal")
	if err := Save(path, testModel(), Training{}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	m := &paramsModel{params: []*param.Parameter{
		param.MustNew("hidden", []int{3}, make([]float64, 3)),
	}}
	if _, err := Load(path, m); err == nil {
		t.Fatal("expected an error for a parameter absent from the checkpoint")
	}
}

func TestDataSectionAlignment(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, testModel(), Training{}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	// Everything before the data section is padded to the alignment, so the
	// total length is a multiple of it plus the 9 float64 values.
	if got := (buf.Len() - 9*elementSize) % alignment; got != 0 {
		t.Errorf("data section not %d-byte aligned (total %d)", alignment, buf.Len())
	}
}
