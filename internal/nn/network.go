package nn

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"slices"
	"sync"
	"sync/atomic"

	"lukechampine.com/frand"
)

var (
	ErrShapeMismatch = errors.New("nn: shape mismatch")
	ErrBadWeights    = errors.New("nn: bad weights")
)

const (
	DefaultLearningRate = 0.001
	// DefaultFitBatch 每次 Fit 内部的小批量大小上限
	DefaultFitBatch = 16
)

// Topology 输入维度、隐藏层宽度；输出固定 1 维
type Topology struct {
	Inputs  int   `json:"inputs"`
	Hidden  []int `json:"hidden"`
	Outputs int   `json:"outputs"`
}

func NewTopology(inputs int, hidden []int) Topology {
	return Topology{Inputs: inputs, Hidden: slices.Clone(hidden), Outputs: 1}
}

// DefaultTopology 90 → 512 → 256 → 128 → 1
func DefaultTopology() Topology {
	return NewTopology(90, []int{512, 256, 128})
}

func (t Topology) LayerSize() int { return len(t.Hidden) + 1 }

func (t Topology) Equal(o Topology) bool {
	return t.Inputs == o.Inputs && t.Outputs == o.Outputs && slices.Equal(t.Hidden, o.Hidden)
}

func (t Topology) String() string {
	return fmt.Sprintf("%d-%v-%d", t.Inputs, t.Hidden, t.Outputs)
}

// Network 价值网络：ReLU 隐藏层 + tanh 输出，MSE + Adam。
// Predict 走读锁，可以和搜索线程并发；Fit/Load/Reinit 走写锁。
type Network struct {
	mu           sync.RWMutex
	topology     Topology
	layers       []*Layer
	inputs       []Neuron
	cost         Cost
	learningRate float64
	seed         int64

	version atomic.Uint64
}

func NewNetwork(topology Topology, learningRate float64, seed int64) (*Network, error) {
	if topology.Inputs <= 0 || topology.Outputs != 1 {
		return nil, fmt.Errorf("%w: topology %v", ErrShapeMismatch, topology)
	}
	for _, h := range topology.Hidden {
		if h <= 0 {
			return nil, fmt.Errorf("%w: topology %v", ErrShapeMismatch, topology)
		}
	}
	if learningRate <= 0 {
		learningRate = DefaultLearningRate
	}
	n := &Network{
		topology:     NewTopology(topology.Inputs, topology.Hidden),
		inputs:       make([]Neuron, topology.Inputs),
		cost:         &MSECost{},
		learningRate: learningRate,
		seed:         seed,
	}
	inputSize := topology.Inputs
	for _, h := range topology.Hidden {
		n.layers = append(n.layers, NewLayer(inputSize, h, &ReLUActivation{}))
		inputSize = h
	}
	n.layers = append(n.layers, NewLayer(inputSize, 1, &TanhActivation{}))
	n.initWeights(seed)
	return n, nil
}

func (n *Network) initWeights(seed int64) {
	rnd := rand.New(rand.NewSource(seed))
	last := len(n.layers) - 1
	for i, l := range n.layers {
		if i == last {
			l.InitWeightsTanh(rnd)
		} else {
			l.InitWeightsReLU(rnd)
		}
	}
}

// Reinit 丢掉已学到的权重，重新随机初始化
func (n *Network) Reinit() {
	n.mu.Lock()
	n.seed++
	n.initWeights(n.seed)
	n.mu.Unlock()
	n.version.Add(1)
}

func (n *Network) Topology() Topology {
	return NewTopology(n.topology.Inputs, n.topology.Hidden)
}

func (n *Network) LearningRate() float64 { return n.learningRate }

// Version 每次权重变化后递增，调用方据此让预测缓存失效
func (n *Network) Version() uint64 { return n.version.Load() }

// Predict 单个局面的估值，红方视角，范围 [-1,1]
func (n *Network) Predict(features []float64) (float64, error) {
	if len(features) != n.topology.Inputs {
		return 0, fmt.Errorf("%w: got %d features, want %d", ErrShapeMismatch, len(features), n.topology.Inputs)
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.predictLocked(features), nil
}

func (n *Network) PredictBatch(batch [][]float64) ([]float64, error) {
	out := make([]float64, len(batch))
	n.mu.RLock()
	defer n.mu.RUnlock()
	for i, f := range batch {
		if len(f) != n.topology.Inputs {
			return nil, fmt.Errorf("%w: sample %d has %d features", ErrShapeMismatch, i, len(f))
		}
		out[i] = n.predictLocked(f)
	}
	return out, nil
}

func (n *Network) predictLocked(features []float64) float64 {
	input := features
	for _, l := range n.layers {
		output := make([]float64, l.OutputSize())
		l.predict(input, output)
		input = output
	}
	return input[0]
}

// Fit 在给定样本上训练 epochs 轮，每轮打乱顺序，按 batchSize 做小批量更新。
// 返回最后一轮的平均损失。
func (n *Network) Fit(inputs [][]float64, targets []float64, epochs, batchSize int) (float64, error) {
	if len(inputs) != len(targets) {
		return 0, fmt.Errorf("%w: %d inputs, %d targets", ErrShapeMismatch, len(inputs), len(targets))
	}
	if len(inputs) == 0 {
		return 0, nil
	}
	for i, f := range inputs {
		if len(f) != n.topology.Inputs {
			return 0, fmt.Errorf("%w: sample %d has %d features", ErrShapeMismatch, i, len(f))
		}
	}
	if epochs < 1 {
		epochs = 1
	}
	if batchSize < 1 {
		batchSize = DefaultFitBatch
	}

	n.mu.Lock()
	defer func() {
		n.mu.Unlock()
		n.version.Add(1)
	}()

	var loss float64
	for epoch := 0; epoch < epochs; epoch++ {
		order := frand.Perm(len(inputs))
		var total float64
		for start := 0; start < len(order); start += batchSize {
			end := min(start+batchSize, len(order))
			for _, idx := range order[start:end] {
				total += n.trainSample(inputs[idx], targets[idx])
			}
			scale := 1.0 / float64(end-start)
			for _, l := range n.layers {
				l.ApplyGradients(n.learningRate, scale)
			}
		}
		loss = total / float64(len(order))
	}
	if math.IsNaN(loss) || math.IsInf(loss, 0) {
		return loss, fmt.Errorf("%w: loss diverged", ErrBadWeights)
	}
	return loss, nil
}

func (n *Network) trainSample(features []float64, target float64) float64 {
	for i, v := range features {
		n.inputs[i] = Neuron{Activation: v}
	}
	input := n.inputs
	for _, l := range n.layers {
		l.Forward(input)
		input = l.outputs
	}
	out := &n.layers[len(n.layers)-1].outputs[0]
	out.Error = n.cost.CostPrime(out.Activation, target)
	loss := n.cost.Cost(out.Activation, target)

	for i := len(n.layers) - 1; i >= 0; i-- {
		if i == 0 {
			n.layers[i].Backward(n.inputs)
		} else {
			n.layers[i].Backward(n.layers[i-1].outputs)
		}
	}
	return loss
}
