package nn

import (
	"fmt"
	"math/rand"

	"github.com/peft-go/peft/internal/serialization"
	"github.com/peft-go/peft/internal/tensor"
)

// StateDictModule is implemented by layers whose weights can be exported
// to and imported from a state dictionary.
type StateDictModule interface {
	StateDict() map[string]*tensor.RawTensor
	LoadStateDict(stateDict map[string]*tensor.RawTensor) error
}

// SaveState writes a module's weights to a .peft file.
func SaveState(path string, m StateDictModule, modelType string, metadata map[string]string) error {
	return serialization.SaveStateDict(path, m.StateDict(), serialization.WriteOptions{
		ModelType: modelType,
		Metadata:  metadata,
	})
}

// LoadState reads a .peft file into an existing module. The module's own
// LoadStateDict validates names, shapes, and dtypes.
func LoadState(path string, m StateDictModule) error {
	stateDict, _, err := serialization.LoadStateDict(path)
	if err != nil {
		return err
	}
	return m.LoadStateDict(stateDict)
}

// SaveAdapter writes an adapted layer (frozen base plus trained factors)
// to a .peft file, recording the adapter hyperparameters in the header so
// LoadAdapter can rebuild the layer without outside knowledge.
func SaveAdapter[B tensor.Backend](path string, l *LoRALinear[B], metadata map[string]string) error {
	return serialization.SaveStateDict(path, l.StateDict(), serialization.WriteOptions{
		ModelType: "LoRALinear",
		Metadata:  metadata,
		Adapter: &serialization.AdapterMeta{
			Features: l.Features(),
			Rank:     l.adapter.rank,
			Alpha:    l.adapter.alpha,
		},
	})
}

// LoadAdapter rebuilds an adapted layer from a .peft file written by
// SaveAdapter. The rng only seeds the throwaway initial weights; every
// parameter is overwritten by the file's contents.
func LoadAdapter[B tensor.Backend](path string, rng *rand.Rand, backend B) (*LoRALinear[B], error) {
	stateDict, header, err := serialization.LoadStateDict(path)
	if err != nil {
		return nil, err
	}
	if header.Adapter == nil {
		return nil, fmt.Errorf("%s: no adapter hyperparameters in header (model type %q)",
			path, header.ModelType)
	}

	l, err := NewLoRALinear(header.Adapter.Features, header.Adapter.Rank, header.Adapter.Alpha, rng, backend)
	if err != nil {
		return nil, err
	}
	if err := l.LoadStateDict(stateDict); err != nil {
		return nil, err
	}
	return l, nil
}
