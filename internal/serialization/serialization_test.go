package serialization

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/peft-go/peft/internal/tensor"
)

func newTensor(t *testing.T, values []float32, shape tensor.Shape) *tensor.RawTensor {
	t.Helper()
	raw, err := tensor.NewRaw(shape, tensor.Float32, tensor.CPU)
	if err != nil {
		t.Fatalf("NewRaw failed: %v", err)
	}
	copy(raw.AsFloat32(), values)
	return raw
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "adapter.peft")

	stateDict := map[string]*tensor.RawTensor{
		"lora_a": newTensor(t, []float32{0.1, 0.2, 0.3, 0.4}, tensor.Shape{2, 2}),
		"lora_b": newTensor(t, []float32{1, -1, 0.5, -0.5}, tensor.Shape{2, 2}),
		"weight": newTensor(t, []float32{2}, tensor.Shape{1, 1}),
	}

	opts := WriteOptions{
		ModelType: "LoRALinear",
		Metadata:  map[string]string{"task": "doubling"},
		Adapter:   &AdapterMeta{Features: 2, Rank: 2, Alpha: 4},
	}
	if err := SaveStateDict(path, stateDict, opts); err != nil {
		t.Fatalf("SaveStateDict failed: %v", err)
	}

	loaded, header, err := LoadStateDict(path)
	if err != nil {
		t.Fatalf("LoadStateDict failed: %v", err)
	}

	if header.ModelType != "LoRALinear" {
		t.Errorf("ModelType = %q, want LoRALinear", header.ModelType)
	}
	if header.Adapter == nil || header.Adapter.Rank != 2 || header.Adapter.Alpha != 4 {
		t.Errorf("adapter meta not preserved: %+v", header.Adapter)
	}
	if header.Metadata["task"] != "doubling" {
		t.Errorf("metadata not preserved: %v", header.Metadata)
	}

	if len(loaded) != len(stateDict) {
		t.Fatalf("loaded %d tensors, want %d", len(loaded), len(stateDict))
	}
	for name, want := range stateDict {
		got, ok := loaded[name]
		if !ok {
			t.Fatalf("tensor %s missing after round trip", name)
		}
		if !got.Shape().Equal(want.Shape()) {
			t.Errorf("tensor %s shape = %v, want %v", name, got.Shape(), want.Shape())
		}
		for i, v := range want.AsFloat32() {
			if got.AsFloat32()[i] != v {
				t.Errorf("tensor %s[%d] = %v, want %v", name, i, got.AsFloat32()[i], v)
			}
		}
	}
}

func TestDeterministicOutput(t *testing.T) {
	dir := t.TempDir()
	stateDict := map[string]*tensor.RawTensor{
		"b": newTensor(t, []float32{1, 2}, tensor.Shape{2}),
		"a": newTensor(t, []float32{3, 4}, tensor.Shape{2}),
	}

	p1 := filepath.Join(dir, "one.peft")
	p2 := filepath.Join(dir, "two.peft")
	if err := SaveStateDict(p1, stateDict, WriteOptions{}); err != nil {
		t.Fatal(err)
	}
	if err := SaveStateDict(p2, stateDict, WriteOptions{}); err != nil {
		t.Fatal(err)
	}

	_, h1, err := LoadStateDict(p1)
	if err != nil {
		t.Fatal(err)
	}
	_, h2, err := LoadStateDict(p2)
	if err != nil {
		t.Fatal(err)
	}

	if h1.Checksum != h2.Checksum {
		t.Error("same state dict produced different checksums")
	}
	if h1.Tensors[0].Name != "a" {
		t.Errorf("tensors not sorted by name: first is %q", h1.Tensors[0].Name)
	}
}

func TestLoadRejectsInvalidMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bogus.peft")
	if err := os.WriteFile(path, []byte("NOPEnot a real file at all"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, _, err := LoadStateDict(path)
	if !errors.Is(err, ErrInvalidMagic) {
		t.Errorf("err = %v, want ErrInvalidMagic", err)
	}
}

func TestLoadRejectsOversizedHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "huge-header.peft")

	// Valid magic and version, but a header size no real file could have.
	var buf bytes.Buffer
	buf.WriteString(MagicBytes)
	binary.Write(&buf, binary.LittleEndian, uint32(FormatVersion))
	binary.Write(&buf, binary.LittleEndian, uint32(0))
	binary.Write(&buf, binary.LittleEndian, uint64(1)<<62)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	_, _, err := LoadStateDict(path)
	if !errors.Is(err, ErrHeaderTooLarge) {
		t.Errorf("err = %v, want ErrHeaderTooLarge", err)
	}
}

func TestLoadRejectsCorruptedData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "adapter.peft")

	stateDict := map[string]*tensor.RawTensor{
		"weight": newTensor(t, []float32{1, 2, 3, 4}, tensor.Shape{2, 2}),
	}
	if err := SaveStateDict(path, stateDict, WriteOptions{}); err != nil {
		t.Fatal(err)
	}

	// Flip a byte in the data section (the last byte of the file).
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	content[len(content)-1] ^= 0xFF
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}

	_, _, err = LoadStateDict(path)
	if !errors.Is(err, ErrChecksumMismatch) {
		t.Errorf("err = %v, want ErrChecksumMismatch", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, _, err := LoadStateDict(filepath.Join(t.TempDir(), "missing.peft"))
	if err == nil {
		t.Error("loading a missing file should fail")
	}
}

func TestChecksum(t *testing.T) {
	data := []byte("test data")

	if computeChecksum(data) != computeChecksum([]byte("test data")) {
		t.Error("checksums should match for identical data")
	}
	if computeChecksum(data) == computeChecksum([]byte("other data")) {
		t.Error("checksums should differ for different data")
	}

	if err := validateChecksum(data, computeChecksum(data)); err != nil {
		t.Errorf("valid checksum rejected: %v", err)
	}
	if err := validateChecksum(data, computeChecksum([]byte("other"))); !errors.Is(err, ErrChecksumMismatch) {
		t.Errorf("err = %v, want ErrChecksumMismatch", err)
	}
	if err := validateChecksum(data, ""); err != nil {
		t.Errorf("empty stored checksum should be accepted: %v", err)
	}
}
