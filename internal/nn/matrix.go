package nn

import (
	"math"
	"math/rand"
)

const (
	Beta1   = 0.9
	Beta2   = 0.999
	epsilon = 1e-8
)

// Matrix 列主序存储
type Matrix struct {
	Data []float64
	Rows int
	Cols int
}

func NewMatrix(rows, cols int) Matrix {
	return Matrix{
		Data: make([]float64, rows*cols),
		Rows: rows,
		Cols: cols,
	}
}

func (m *Matrix) Get(row, col int) float64 {
	return m.Data[col*m.Rows+row]
}

func (m *Matrix) Set(row, col int, v float64) {
	m.Data[col*m.Rows+row] = v
}

// Gradient 单个参数的累积梯度和 Adam 一二阶矩
type Gradient struct {
	Value float64
	M1    float64
	M2    float64
}

func (g *Gradient) Calculate(learningRate float64) float64 {
	if g.Value == 0 {
		return 0
	}
	g.M1 = g.M1*Beta1 + g.Value*(1-Beta1)
	g.M2 = g.M2*Beta2 + (g.Value*g.Value)*(1-Beta2)
	return learningRate * g.M1 / (math.Sqrt(g.M2) + epsilon)
}

type Gradients struct {
	Data []Gradient
	Rows int
	Cols int
}

func NewGradients(rows, cols int) Gradients {
	return Gradients{
		Data: make([]Gradient, rows*cols),
		Rows: rows,
		Cols: cols,
	}
}

func (g *Gradients) Add(row, col int, delta float64) {
	g.Data[col*g.Rows+row].Value += delta
}

// Apply 用累积梯度（先乘 scale 取平均）更新 m，并清零累积值
func (g *Gradients) Apply(m *Matrix, learningRate, scale float64) {
	for i := range g.Data {
		g.Data[i].Value *= scale
		m.Data[i] -= g.Data[i].Calculate(learningRate)
		g.Data[i].Value = 0
	}
}

func InitUniform(rnd *rand.Rand, data []float64, variance float64) {
	var uniformVariance = 1.0 / 12
	var scale = math.Sqrt(variance / uniformVariance)
	for i := range data {
		data[i] = (rnd.Float64() - 0.5) * scale
	}
}
