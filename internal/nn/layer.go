package nn

import "math/rand"

type Neuron struct {
	Activation float64
	Error      float64
	Prime      float64
}

// Layer 全连接层。outputs 是训练用的缓冲区，只在持有写锁时使用
type Layer struct {
	activationFn ActivationFn
	outputs      []Neuron
	weights      Matrix
	biases       Matrix
	wGradients   Gradients
	bGradients   Gradients
}

func NewLayer(inputSize, outputSize int, activationFn ActivationFn) *Layer {
	return &Layer{
		activationFn: activationFn,
		outputs:      make([]Neuron, outputSize),
		weights:      NewMatrix(outputSize, inputSize),
		biases:       NewMatrix(outputSize, 1),
		wGradients:   NewGradients(outputSize, inputSize),
		bGradients:   NewGradients(outputSize, 1),
	}
}

func (layer *Layer) InputSize() int  { return layer.weights.Cols }
func (layer *Layer) OutputSize() int { return layer.weights.Rows }

func (layer *Layer) InitWeightsReLU(rnd *rand.Rand) *Layer {
	var variance = 2.0 / float64(layer.weights.Cols)
	InitUniform(rnd, layer.weights.Data, variance)
	clear(layer.biases.Data)
	layer.resetGradients()
	return layer
}

// InitWeightsTanh Xavier 初始化
func (layer *Layer) InitWeightsTanh(rnd *rand.Rand) *Layer {
	var variance = 2.0 / float64(layer.weights.Cols+layer.weights.Rows)
	InitUniform(rnd, layer.weights.Data, variance)
	clear(layer.biases.Data)
	layer.resetGradients()
	return layer
}

func (layer *Layer) resetGradients() {
	clear(layer.wGradients.Data)
	clear(layer.bGradients.Data)
}

func (layer *Layer) Forward(input []Neuron) {
	for outputIndex := range layer.outputs {
		var x = layer.biases.Data[outputIndex]
		for inputIndex := range input {
			x += layer.weights.Get(outputIndex, inputIndex) * input[inputIndex].Activation
		}
		var n = &layer.outputs[outputIndex]
		n.Activation = layer.activationFn.Sigma(x)
		n.Prime = layer.activationFn.SigmaPrime(x)
	}
}

// Backward 把本层输出的误差传回 input，并累积本层梯度
func (layer *Layer) Backward(input []Neuron) {
	for inputIndex := range input {
		input[inputIndex].Error = 0
	}
	for outputIndex := range layer.outputs {
		var n = &layer.outputs[outputIndex]
		var x = n.Error * n.Prime
		if x == 0 {
			continue
		}
		layer.bGradients.Add(outputIndex, 0, x)
		for inputIndex := range input {
			input[inputIndex].Error += layer.weights.Get(outputIndex, inputIndex) * x
			layer.wGradients.Add(outputIndex, inputIndex, x*input[inputIndex].Activation)
		}
	}
}

func (layer *Layer) ApplyGradients(learningRate, scale float64) {
	layer.wGradients.Apply(&layer.weights, learningRate, scale)
	layer.bGradients.Apply(&layer.biases, learningRate, scale)
}

// predict 不碰训练缓冲区，可以在读锁下并发调用
func (layer *Layer) predict(input, output []float64) {
	for outputIndex := range output {
		var x = layer.biases.Data[outputIndex]
		for inputIndex, v := range input {
			if v == 0 {
				continue
			}
			x += layer.weights.Get(outputIndex, inputIndex) * v
		}
		output[outputIndex] = layer.activationFn.Sigma(x)
	}
}
