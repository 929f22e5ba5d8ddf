package nn

import (
	"bytes"
	"math"
	"testing"

	erand "golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

func randomBatch(n, d int, seed uint64) (*mat.Dense, *mat.VecDense) {
	rng := erand.New(erand.NewSource(seed))
	x := mat.NewDense(n, d, nil)
	y := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		sum := 0.0
		for j := 0; j < d; j++ {
			v := rng.NormFloat64()
			x.Set(i, j, v)
			sum += v
		}
		y.SetVec(i, sum)
	}
	return x, y
}

func TestNewMLPValidation(t *testing.T) {
	if _, err := NewMLP(0, []int{4}); err == nil {
		t.Error("expected error for zero input dim")
	}
	if _, err := NewMLP(3, nil); err == nil {
		t.Error("expected error for no hidden layers")
	}
	if _, err := NewMLP(3, []int{4, 0}); err == nil {
		t.Error("expected error for zero hidden dim")
	}
}

func TestForwardShapes(t *testing.T) {
	m, err := NewMLP(5, []int{8, 6}, WithSeed(1))
	if err != nil {
		t.Fatal(err)
	}
	if m.InputDim() != 5 {
		t.Errorf("expected input dim 5, got %d", m.InputDim())
	}
	if m.EmbeddingDim() != 6 {
		t.Errorf("expected embedding dim 6, got %d", m.EmbeddingDim())
	}

	x, _ := randomBatch(7, 5, 2)
	pred, embed, err := m.Forward(x)
	if err != nil {
		t.Fatal(err)
	}
	if pred.Len() != 7 {
		t.Errorf("expected 7 predictions, got %d", pred.Len())
	}
	n, d := embed.Dims()
	if n != 7 || d != 6 {
		t.Errorf("expected 7x6 embeddings, got %dx%d", n, d)
	}

	if _, _, err := m.Forward(mat.NewDense(2, 3, nil)); err == nil {
		t.Error("expected error for mismatched input dimension")
	}
	if _, err := m.Embed(mat.NewDense(2, 3, nil)); err == nil {
		t.Error("expected error for mismatched input dimension")
	}
}

func TestDeterministicInitialization(t *testing.T) {
	x, _ := randomBatch(4, 3, 5)
	a, _ := NewMLP(3, []int{4}, WithSeed(11))
	b, _ := NewMLP(3, []int{4}, WithSeed(11))
	pa, _, err := a.Forward(x)
	if err != nil {
		t.Fatal(err)
	}
	pb, _, err := b.Forward(x)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < pa.Len(); i++ {
		if pa.AtVec(i) != pb.AtVec(i) {
			t.Fatalf("same seed produced different networks at row %d", i)
		}
	}
}

func TestTrainStepReducesLoss(t *testing.T) {
	m, err := NewMLP(4, []int{16}, WithLearningRate(0.01), WithSeed(3))
	if err != nil {
		t.Fatal(err)
	}
	x, y := randomBatch(32, 4, 7)

	first, _, err := m.TrainStep(x, y, nil)
	if err != nil {
		t.Fatal(err)
	}
	var last float64
	for i := 0; i < 500; i++ {
		last, _, err = m.TrainStep(x, y, nil)
		if err != nil {
			t.Fatal(err)
		}
	}
	if !(last < first/10) {
		t.Errorf("loss did not decrease enough: first %v, last %v", first, last)
	}
}

// batchLoss recomputes the unweighted MSE the way TrainStep defines it.
func batchLoss(m *MLP, x *mat.Dense, y *mat.VecDense) float64 {
	pred, _, err := m.Forward(x)
	if err != nil {
		panic(err)
	}
	loss := 0.0
	for i := 0; i < y.Len(); i++ {
		d := pred.AtVec(i) - y.AtVec(i)
		loss += d * d
	}
	return loss / float64(y.Len())
}

// The first Adam step moves every parameter by roughly lr times the sign of
// its gradient, so the direction of the first update must agree with the
// descent direction estimated by central finite differences.
func TestFirstStepFollowsNumericalGradient(t *testing.T) {
	const seed = 31
	x, y := randomBatch(8, 3, 32)

	trained, _ := NewMLP(3, []int{4}, WithSeed(seed))
	before := make([][]float64, len(trained.layers))
	for li, l := range trained.layers {
		before[li] = append([]float64(nil), l.w.RawMatrix().Data...)
	}
	if _, _, err := trained.TrainStep(x, y, nil); err != nil {
		t.Fatal(err)
	}

	numeric, _ := NewMLP(3, []int{4}, WithSeed(seed))
	const h = 1e-6
	checked := 0
	for li, l := range numeric.layers {
		data := l.w.RawMatrix().Data
		for k := range data {
			orig := data[k]
			data[k] = orig + h
			plus := batchLoss(numeric, x, y)
			data[k] = orig - h
			minus := batchLoss(numeric, x, y)
			data[k] = orig

			grad := (plus - minus) / (2 * h)
			if math.Abs(grad) < 1e-6 {
				continue
			}
			step := trained.layers[li].w.RawMatrix().Data[k] - before[li][k]
			if step*grad >= 0 {
				t.Errorf("layer %d weight %d moved with the gradient: step %v, numerical grad %v", li, k, step, grad)
			}
			checked++
		}
	}
	if checked == 0 {
		t.Fatal("no parameters had a measurable gradient")
	}
}

func TestTrainStepEmbeddingsMatchPreUpdateForward(t *testing.T) {
	m, _ := NewMLP(3, []int{5}, WithSeed(9))
	x, y := randomBatch(6, 3, 13)

	_, before, err := m.Forward(x)
	if err != nil {
		t.Fatal(err)
	}
	beforeCopy := mat.DenseCopyOf(before)
	_, embed, err := m.TrainStep(x, y, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !mat.Equal(beforeCopy, embed) {
		t.Error("TrainStep embeddings should be the pre-update activations")
	}
}

func TestTrainStepValidation(t *testing.T) {
	m, _ := NewMLP(3, []int{4}, WithSeed(1))
	x, y := randomBatch(5, 3, 1)

	if _, _, err := m.TrainStep(mat.NewDense(5, 2, nil), y, nil); err == nil {
		t.Error("expected error for wrong input dim")
	}
	if _, _, err := m.TrainStep(x, mat.NewVecDense(4, nil), nil); err == nil {
		t.Error("expected error for wrong target length")
	}
	if _, _, err := m.TrainStep(x, y, mat.NewVecDense(4, nil)); err == nil {
		t.Error("expected error for wrong weight length")
	}
}

func TestNonFiniteLossSkipsUpdate(t *testing.T) {
	m, _ := NewMLP(2, []int{3}, WithSeed(2))
	x := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	y := mat.NewVecDense(2, []float64{math.Inf(1), 0})

	check, _ := randomBatch(3, 2, 4)
	before, _, err := m.Forward(check)
	if err != nil {
		t.Fatal(err)
	}
	beforeCopy := mat.VecDenseCopyOf(before)

	loss, _, err := m.TrainStep(x, y, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !math.IsInf(loss, 1) && !math.IsNaN(loss) {
		t.Errorf("expected non-finite loss, got %v", loss)
	}

	after, _, err := m.Forward(check)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < after.Len(); i++ {
		if beforeCopy.AtVec(i) != after.AtVec(i) {
			t.Fatal("parameters changed on a non-finite loss")
		}
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	m, _ := NewMLP(4, []int{6, 5}, WithSeed(21))
	x, y := randomBatch(10, 4, 22)
	for i := 0; i < 20; i++ {
		if _, _, err := m.TrainStep(x, y, nil); err != nil {
			t.Fatal(err)
		}
	}

	var buf bytes.Buffer
	if err := m.Save(&buf); err != nil {
		t.Fatal(err)
	}
	restored, err := LoadMLP(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if restored.InputDim() != m.InputDim() || restored.EmbeddingDim() != m.EmbeddingDim() {
		t.Error("restored network lost its shape")
	}

	check, _ := randomBatch(5, 4, 23)
	p1, _, err := m.Forward(check)
	if err != nil {
		t.Fatal(err)
	}
	p2, _, err := restored.Forward(check)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < p1.Len(); i++ {
		if p1.AtVec(i) != p2.AtVec(i) {
			t.Fatalf("restored predictions differ at row %d: %v vs %v", i, p1.AtVec(i), p2.AtVec(i))
		}
	}
}
