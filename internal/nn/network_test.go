package nn

import (
	"errors"
	"math"
	"testing"
)

func smallNet(t *testing.T) *Network {
	t.Helper()
	n, err := NewNetwork(NewTopology(2, []int{8}), 0.01, 1)
	if err != nil {
		t.Fatal(err)
	}
	return n
}

func meanLoss(t *testing.T, n *Network, xs [][]float64, ys []float64) float64 {
	t.Helper()
	var total float64
	for i, x := range xs {
		p, err := n.Predict(x)
		if err != nil {
			t.Fatal(err)
		}
		total += (p - ys[i]) * (p - ys[i])
	}
	return total / float64(len(xs))
}

func TestDefaultTopology(t *testing.T) {
	top := DefaultTopology()
	if top.Inputs != 90 || top.Outputs != 1 {
		t.Fatalf("topology %v", top)
	}
	want := []int{512, 256, 128}
	for i, h := range want {
		if top.Hidden[i] != h {
			t.Fatalf("hidden %v, want %v", top.Hidden, want)
		}
	}
}

func TestPredictRangeAndShape(t *testing.T) {
	n, err := NewNetwork(DefaultTopology(), DefaultLearningRate, 7)
	if err != nil {
		t.Fatal(err)
	}
	features := make([]float64, 90)
	for i := range features {
		features[i] = float64(i%13 - 6)
	}
	v, err := n.Predict(features)
	if err != nil {
		t.Fatal(err)
	}
	if v < -1 || v > 1 || math.IsNaN(v) {
		t.Fatalf("prediction %v outside [-1,1]", v)
	}
	if _, err := n.Predict(features[:10]); !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("short input err = %v", err)
	}
}

func TestBadTopology(t *testing.T) {
	if _, err := NewNetwork(Topology{Inputs: 0, Outputs: 1}, 0.001, 0); !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("err = %v", err)
	}
	if _, err := NewNetwork(NewTopology(4, []int{0}), 0.001, 0); !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("err = %v", err)
	}
}

func TestFitReducesLoss(t *testing.T) {
	n := smallNet(t)
	xs := [][]float64{{1, 0}, {0, 1}, {1, 1}, {0, 0}}
	ys := []float64{0.6, -0.6, 0, 0.2}

	before := meanLoss(t, n, xs, ys)
	v0 := n.Version()
	var loss float64
	for i := 0; i < 300; i++ {
		var err error
		loss, err = n.Fit(xs, ys, 1, 4)
		if err != nil {
			t.Fatal(err)
		}
	}
	after := meanLoss(t, n, xs, ys)
	if after >= before {
		t.Fatalf("loss did not drop: before %.4f after %.4f", before, after)
	}
	if loss < 0 || math.IsNaN(loss) {
		t.Fatalf("bad reported loss %v", loss)
	}
	if n.Version() != v0+300 {
		t.Fatalf("version %d, want %d", n.Version(), v0+300)
	}
}

func TestFitValidatesInput(t *testing.T) {
	n := smallNet(t)
	if _, err := n.Fit([][]float64{{1, 0}}, []float64{1, 2}, 1, 1); !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("err = %v", err)
	}
	if _, err := n.Fit([][]float64{{1, 0, 3}}, []float64{1}, 1, 1); !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("err = %v", err)
	}
	if loss, err := n.Fit(nil, nil, 1, 1); err != nil || loss != 0 {
		t.Fatalf("empty fit = %v, %v", loss, err)
	}
}

func TestCodecRoundTrip(t *testing.T) {
	n := smallNet(t)
	xs := [][]float64{{1, 0}, {0, 1}}
	if _, err := n.Fit(xs, []float64{0.5, -0.5}, 3, 2); err != nil {
		t.Fatal(err)
	}
	data, err := n.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}

	m, err := NewNetwork(NewTopology(2, []int{8}), 0.5, 99)
	if err != nil {
		t.Fatal(err)
	}
	v0 := m.Version()
	if err := m.UnmarshalBinary(data); err != nil {
		t.Fatal(err)
	}
	if m.Version() == v0 {
		t.Fatal("version unchanged after load")
	}
	if m.LearningRate() != 0.01 {
		t.Fatalf("learning rate %v", m.LearningRate())
	}
	for _, x := range xs {
		a, _ := n.Predict(x)
		b, _ := m.Predict(x)
		if a != b {
			t.Fatalf("predictions differ after load: %v vs %v", a, b)
		}
	}

	d, err := DecodeNetwork(data)
	if err != nil {
		t.Fatal(err)
	}
	if !d.Topology().Equal(n.Topology()) {
		t.Fatalf("decoded topology %v", d.Topology())
	}
}

func TestCodecRejects(t *testing.T) {
	n := smallNet(t)
	data, _ := n.MarshalBinary()

	other, _ := NewNetwork(NewTopology(2, []int{4}), 0.01, 1)
	if err := other.UnmarshalBinary(data); !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("topology mismatch err = %v", err)
	}

	cases := map[string][]byte{
		"empty":     nil,
		"magic":     append([]byte{'Z', 'Z'}, data[2:]...),
		"version":   append([]byte{'X', 'Q', 9, 0}, data[4:]...),
		"truncated": data[:len(data)-3],
		"trailing":  append(append([]byte{}, data...), 0),
	}
	for name, b := range cases {
		t.Run(name, func(t *testing.T) {
			if err := n.UnmarshalBinary(b); !errors.Is(err, ErrBadWeights) {
				t.Fatalf("err = %v", err)
			}
		})
	}
}

func TestReinit(t *testing.T) {
	n := smallNet(t)
	x := []float64{1, 1}
	before, _ := n.Predict(x)
	v := n.Version()
	n.Reinit()
	after, _ := n.Predict(x)
	if n.Version() != v+1 {
		t.Fatalf("version %d", n.Version())
	}
	if before == after {
		t.Fatal("weights unchanged after reinit")
	}
}
