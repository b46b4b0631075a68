package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/peft-go/peft/autodiff"
	"github.com/peft-go/peft/backend/cpu"
	"github.com/peft-go/peft/nn"
	"github.com/peft-go/peft/optim"
	"github.com/peft-go/peft/tensor"
)

type adBackend = *autodiff.Backend[*cpu.Backend]

func main() {
	steps := flag.Int("steps", 1000, "Number of training steps")
	lr := flag.Float64("lr", 0.01, "Learning rate for SGD")
	momentum := flag.Float64("momentum", 0, "SGD momentum coefficient")
	rank := flag.Int("rank", 2, "Adapter rank")
	alpha := flag.Float64("alpha", 2, "Adapter scaling numerator (scaling = alpha/rank)")
	dim := flag.Int("dim", 1, "Feature dimension of the layer")
	seed := flag.Int64("seed", 42, "Random seed")
	saveTo := flag.String("save", "", "Write the trained adapter to this .peft file")
	flag.Parse()

	fmt.Println("🪶 PEFT-Go - Low-Rank Adaptation Demo (y = 2x regression)")
	fmt.Println("=" + string(make([]byte, 70)))

	backend := autodiff.New(cpu.New())

	x, y := makeDataset(*dim, backend)
	fmt.Printf("\n📊 Dataset: x = 1..%d, y = 2x (%d samples, dim=%d)\n",
		x.Shape()[0], x.Shape()[0], *dim)

	// Full fine-tuning: every parameter of the linear layer trains.
	fmt.Println("\n🧠 Full fine-tuning (Linear)")
	rng := rand.New(rand.NewSource(*seed))
	full := nn.NewLinear(*dim, *dim, rng, backend)
	wBefore := snapshot(full.Weight())
	bBefore := snapshot(full.Bias())
	fmt.Printf("   Trainable parameters: %d\n", countScalars(full.Parameters()))

	loss := train(full, x, y, *steps, float32(*lr), float32(*momentum), backend)
	fmt.Printf("   Final loss: %.6f\n", loss)
	fmt.Printf("   Weight changed: %v   Bias changed: %v\n",
		changed(wBefore, full.Weight()), changed(bBefore, full.Bias()))
	report(full, x, y, backend)

	// LoRA: the base layer is frozen, only the adapter factors train.
	fmt.Printf("\n🪶 Low-rank adaptation (LoRALinear, rank=%d, alpha=%.1f, scaling=%.3f)\n",
		*rank, *alpha, float32(*alpha)/float32(*rank))
	rng = rand.New(rand.NewSource(*seed))
	adapted, err := nn.NewLoRALinear(*dim, *rank, float32(*alpha), rng, backend)
	if err != nil {
		log.Fatalf("Failed to create adapted layer: %v", err)
	}

	// Stand-in for a pretrained base: the identity map, which the adapter
	// must correct into the doubling function.
	wData := adapted.Base().Weight().Tensor().Data()
	for i := range wData {
		wData[i] = 0
	}
	for i := 0; i < *dim; i++ {
		adapted.Base().Weight().Tensor().Set(1, i, i)
	}

	wFrozen := snapshot(adapted.Base().Weight())
	bFrozen := snapshot(adapted.Base().Bias())
	aBefore := snapshot(adapted.Adapter().A())
	fmt.Printf("   Trainable parameters: %d (of %d total)\n",
		countScalars(adapted.Parameters()),
		countScalars(adapted.Parameters())+countScalars(adapted.Base().Parameters()))

	loss = train(adapted, x, y, *steps, float32(*lr), float32(*momentum), backend)
	fmt.Printf("   Final loss: %.6f\n", loss)
	fmt.Printf("   Base weight changed: %v   Base bias changed: %v\n",
		changed(wFrozen, adapted.Base().Weight()), changed(bFrozen, adapted.Base().Bias()))
	fmt.Printf("   Adapter A changed: %v   Adapter B changed: %v\n",
		changed(aBefore, adapted.Adapter().A()),
		!allZero(adapted.Adapter().FactorB()))
	report(adapted, x, y, backend)

	merged := adapted.Merge()
	fmt.Println("\n🔗 Merged layer (adapter folded into the base weights)")
	report(merged, x, y, backend)

	if *saveTo != "" {
		meta := map[string]string{"task": "y=2x"}
		if err := nn.SaveAdapter(*saveTo, adapted, meta); err != nil {
			log.Fatalf("Failed to save adapter: %v", err)
		}
		fmt.Printf("\n💾 Adapter saved to %s\n", *saveTo)
	}
}

// makeDataset builds x = [1..6] and y = 2x, replicated across dim
// feature columns.
func makeDataset(dim int, backend adBackend) (x, y *tensor.Tensor[float32, adBackend]) {
	const samples = 6
	xData := make([]float32, samples*dim)
	yData := make([]float32, samples*dim)
	for i := 0; i < samples; i++ {
		for j := 0; j < dim; j++ {
			xData[i*dim+j] = float32(i + 1)
			yData[i*dim+j] = 2 * float32(i+1)
		}
	}
	x, err := tensor.FromSlice(xData, tensor.Shape{samples, dim}, backend)
	if err != nil {
		log.Fatalf("Failed to build inputs: %v", err)
	}
	y, err = tensor.FromSlice(yData, tensor.Shape{samples, dim}, backend)
	if err != nil {
		log.Fatalf("Failed to build targets: %v", err)
	}
	return x, y
}

func train(
	model nn.Module[adBackend],
	x, y *tensor.Tensor[float32, adBackend],
	steps int,
	lr, momentum float32,
	backend adBackend,
) float32 {
	criterion := nn.NewMSELoss(backend)
	optimizer := optim.NewSGD(model.Parameters(), optim.SGDConfig{LR: lr, Momentum: momentum}, backend)

	var lastLoss float32
	for step := 0; step < steps; step++ {
		backend.Tape().StartRecording()

		pred := model.Forward(x)
		loss := criterion.Forward(pred, y)
		lastLoss = loss.Item()

		grads := autodiff.Backward(loss, backend)
		backend.Tape().StopRecording()
		backend.Tape().Clear()

		optimizer.Step(grads)
	}
	return lastLoss
}

// report prints per-sample predictions and summarizes the residuals.
func report(model nn.Module[adBackend], x, y *tensor.Tensor[float32, adBackend], backend adBackend) {
	pred := model.Forward(x)

	samples := x.Shape()[0]
	residuals := make([]float64, 0, samples)
	fmt.Println("   Predictions:")
	for i := 0; i < samples; i++ {
		want := y.At(i, 0)
		got := pred.At(i, 0)
		residuals = append(residuals, float64(got-want))
		fmt.Printf("     x=%.0f  y=%.0f  pred=%.4f\n", x.At(i, 0), want, got)
	}

	abs := make([]float64, len(residuals))
	for i, r := range residuals {
		abs[i] = math.Abs(r)
	}
	mean, std := stat.MeanStdDev(residuals, nil)
	fmt.Printf("   Residuals: mean=%.6f std=%.6f max=%.6f\n", mean, std, floats.Max(abs))
}

func snapshot(p *nn.Parameter[adBackend]) []float32 {
	data := p.Tensor().Data()
	out := make([]float32, len(data))
	copy(out, data)
	return out
}

func changed(before []float32, p *nn.Parameter[adBackend]) bool {
	after := p.Tensor().Data()
	for i := range before {
		if before[i] != after[i] {
			return true
		}
	}
	return false
}

func allZero(p *nn.Parameter[adBackend]) bool {
	for _, v := range p.Tensor().Data() {
		if v != 0 {
			return false
		}
	}
	return true
}

func countScalars(params []*nn.Parameter[adBackend]) int {
	total := 0
	for _, p := range params {
		total += p.Tensor().NumElements()
	}
	return total
}
