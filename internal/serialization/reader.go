package serialization

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/peft-go/peft/internal/tensor"
)

// LoadStateDict reads a .peft file and returns its tensors plus the
// decoded header.
//
// The whole file is validated before any tensor is returned: magic bytes,
// format version, header integrity, per-tensor bounds, and the data
// section checksum.
func LoadStateDict(path string) (map[string]*tensor.RawTensor, *Header, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	magic := make([]byte, 4)
	if _, err := io.ReadFull(file, magic); err != nil {
		return nil, nil, fmt.Errorf("failed to read magic bytes: %w", err)
	}
	if string(magic) != MagicBytes {
		return nil, nil, ErrInvalidMagic
	}

	var version uint32
	if err := binary.Read(file, binary.LittleEndian, &version); err != nil {
		return nil, nil, fmt.Errorf("failed to read version: %w", err)
	}
	if version != FormatVersion {
		return nil, nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}

	var flags uint32
	if err := binary.Read(file, binary.LittleEndian, &flags); err != nil {
		return nil, nil, fmt.Errorf("failed to read flags: %w", err)
	}

	var headerSize uint64
	if err := binary.Read(file, binary.LittleEndian, &headerSize); err != nil {
		return nil, nil, fmt.Errorf("failed to read header size: %w", err)
	}
	if headerSize > MaxHeaderSize {
		return nil, nil, fmt.Errorf("%w: %d bytes", ErrHeaderTooLarge, headerSize)
	}

	headerJSON := make([]byte, headerSize)
	if _, err := io.ReadFull(file, headerJSON); err != nil {
		return nil, nil, fmt.Errorf("failed to read header: %w", err)
	}

	var header Header
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return nil, nil, fmt.Errorf("failed to decode header: %w", err)
	}

	// Skip padding up to the 64-byte boundary.
	pos := int64(4+4+4+8) + int64(headerSize)
	if padding := (HeaderAlignment - pos%HeaderAlignment) % HeaderAlignment; padding > 0 {
		if _, err := file.Seek(padding, io.SeekCurrent); err != nil {
			return nil, nil, fmt.Errorf("failed to skip padding: %w", err)
		}
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read tensor data: %w", err)
	}
	if err := validateChecksum(data, header.Checksum); err != nil {
		return nil, nil, err
	}

	stateDict := make(map[string]*tensor.RawTensor, len(header.Tensors))
	for _, meta := range header.Tensors {
		raw, err := materialize(meta, data)
		if err != nil {
			return nil, nil, err
		}
		stateDict[meta.Name] = raw
	}

	return stateDict, &header, nil
}

// materialize builds a RawTensor from its metadata and the data section.
func materialize(meta TensorMeta, data []byte) (*tensor.RawTensor, error) {
	dtype, ok := stringToDtype(meta.DType)
	if !ok {
		return nil, fmt.Errorf("tensor %s: unsupported dtype %q", meta.Name, meta.DType)
	}

	shape := tensor.Shape(meta.Shape)
	wantSize := int64(shape.NumElements() * dtype.Size())
	if meta.Size != wantSize {
		return nil, fmt.Errorf("tensor %s: size %d does not match shape %v (%d bytes)",
			meta.Name, meta.Size, shape, wantSize)
	}
	if meta.Offset < 0 || meta.Offset+meta.Size > int64(len(data)) {
		return nil, fmt.Errorf("tensor %s: data range [%d, %d) outside data section of %d bytes",
			meta.Name, meta.Offset, meta.Offset+meta.Size, len(data))
	}

	raw, err := tensor.NewRaw(shape, dtype, tensor.CPU)
	if err != nil {
		return nil, fmt.Errorf("tensor %s: %w", meta.Name, err)
	}
	copy(raw.Data(), data[meta.Offset:meta.Offset+meta.Size])
	return raw, nil
}
