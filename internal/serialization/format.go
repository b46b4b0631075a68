package serialization

import (
	"time"

	"github.com/peft-go/peft/internal/tensor"
)

// Format constants.
const (
	MagicBytes      = "PEFT"
	FormatVersion   = 1
	HeaderAlignment = 64               // Tensor data starts on a 64-byte boundary
	MaxHeaderSize   = 100 * 1024 * 1024 // Sanity limit for the declared header size
)

// Data type string constants for serialization.
const (
	DTypeFloat32 = "float32"
	DTypeFloat64 = "float64"
)

// Flags for the .peft format.
const (
	FlagHasMetadata uint32 = 1 << 0 // bit 0: custom metadata included
	FlagHasAdapter  uint32 = 1 << 1 // bit 1: adapter hyperparameters included
)

// Header is the JSON header of a .peft file.
type Header struct {
	FormatVersion  int               `json:"format_version"`
	LibraryVersion string            `json:"library_version"`
	ModelType      string            `json:"model_type"` // e.g. "Linear", "LoRALinear"
	CreatedAt      time.Time         `json:"created_at"`
	Checksum       string            `json:"checksum"` // hex SHA-256 of the data section
	Tensors        []TensorMeta      `json:"tensors"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	Adapter        *AdapterMeta      `json:"adapter,omitempty"`
}

// AdapterMeta records the hyperparameters needed to rebuild an adapter
// before its weights are loaded into it.
type AdapterMeta struct {
	Features int     `json:"features"` // feature dimension of the adapted layer
	Rank     int     `json:"rank"`
	Alpha    float32 `json:"alpha"`
}

// TensorMeta describes one tensor in the data section.
type TensorMeta struct {
	Name   string `json:"name"`
	DType  string `json:"dtype"`
	Shape  []int  `json:"shape"`
	Offset int64  `json:"offset"` // bytes from the start of the data section
	Size   int64  `json:"size"`
}

func dtypeToString(dt tensor.DataType) string {
	switch dt {
	case tensor.Float32:
		return DTypeFloat32
	case tensor.Float64:
		return DTypeFloat64
	default:
		return "unknown"
	}
}

func stringToDtype(s string) (tensor.DataType, bool) {
	switch s {
	case DTypeFloat32:
		return tensor.Float32, true
	case DTypeFloat64:
		return tensor.Float64, true
	default:
		return 0, false
	}
}
