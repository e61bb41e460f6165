package nn

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// 权重二进制格式（小端）：
//   - 4 字节魔数/版本：'X' 'Q' 主版本 1 次版本 0
//   - uint32 输入维度、uint32 输出维度、uint32 隐藏层数、每个隐藏层宽度 uint32
//   - float64 学习率
//   - 每层依次写全部权重（列主序）再写偏置，float64
var magic = [4]byte{'X', 'Q', 1, 0}

const maxLayerWidth = 1 << 16

func (n *Network) MarshalBinary() ([]byte, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	var buf bytes.Buffer
	buf.Write(magic[:])
	writeTopology(&buf, n.topology)
	writeFloat(&buf, n.learningRate)
	for _, l := range n.layers {
		writeSlice(&buf, l.weights.Data)
		writeSlice(&buf, l.biases.Data)
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary 把权重读进已有网络；拓扑不一致时返回 ErrShapeMismatch，网络保持不变
func (n *Network) UnmarshalBinary(data []byte) error {
	r := bytes.NewReader(data)
	topology, lr, err := readHeader(r)
	if err != nil {
		return err
	}
	if !topology.Equal(n.topology) {
		return fmt.Errorf("%w: stored %v, network %v", ErrShapeMismatch, topology, n.topology)
	}
	weights, biases, err := readLayers(r, topology)
	if err != nil {
		return err
	}

	n.mu.Lock()
	for i, l := range n.layers {
		copy(l.weights.Data, weights[i])
		copy(l.biases.Data, biases[i])
		l.resetGradients()
	}
	n.learningRate = lr
	n.mu.Unlock()
	n.version.Add(1)
	return nil
}

// DecodeNetwork 按数据里记录的拓扑新建网络
func DecodeNetwork(data []byte) (*Network, error) {
	r := bytes.NewReader(data)
	topology, lr, err := readHeader(r)
	if err != nil {
		return nil, err
	}
	n, err := NewNetwork(topology, lr, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadWeights, err)
	}
	if err := n.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return n, nil
}

func readHeader(r io.Reader) (Topology, float64, error) {
	var head [4]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return Topology{}, 0, fmt.Errorf("%w: header: %v", ErrBadWeights, err)
	}
	if head[0] != magic[0] || head[1] != magic[1] {
		return Topology{}, 0, fmt.Errorf("%w: magic word does not match", ErrBadWeights)
	}
	if head[2] != magic[2] || head[3] != magic[3] {
		return Topology{}, 0, fmt.Errorf("%w: unsupported format %d.%d", ErrBadWeights, head[2], head[3])
	}

	var dims [3]uint32
	if err := binary.Read(r, binary.LittleEndian, &dims); err != nil {
		return Topology{}, 0, fmt.Errorf("%w: topology: %v", ErrBadWeights, err)
	}
	if dims[0] == 0 || dims[0] > maxLayerWidth || dims[1] != 1 || dims[2] > 16 {
		return Topology{}, 0, fmt.Errorf("%w: topology %v", ErrBadWeights, dims)
	}
	hidden := make([]uint32, dims[2])
	if err := binary.Read(r, binary.LittleEndian, hidden); err != nil {
		return Topology{}, 0, fmt.Errorf("%w: topology: %v", ErrBadWeights, err)
	}
	t := Topology{Inputs: int(dims[0]), Outputs: int(dims[1])}
	for _, h := range hidden {
		if h == 0 || h > maxLayerWidth {
			return Topology{}, 0, fmt.Errorf("%w: hidden width %d", ErrBadWeights, h)
		}
		t.Hidden = append(t.Hidden, int(h))
	}

	var lr float64
	if err := binary.Read(r, binary.LittleEndian, &lr); err != nil {
		return Topology{}, 0, fmt.Errorf("%w: learning rate: %v", ErrBadWeights, err)
	}
	return t, lr, nil
}

func readLayers(r *bytes.Reader, t Topology) ([][]float64, [][]float64, error) {
	weights := make([][]float64, 0, t.LayerSize())
	biases := make([][]float64, 0, t.LayerSize())
	inputSize := t.Inputs
	for i := 0; i < t.LayerSize(); i++ {
		outputSize := t.Outputs
		if i < len(t.Hidden) {
			outputSize = t.Hidden[i]
		}
		w := make([]float64, inputSize*outputSize)
		if err := binary.Read(r, binary.LittleEndian, w); err != nil {
			return nil, nil, fmt.Errorf("%w: layer %d weights: %v", ErrBadWeights, i, err)
		}
		b := make([]float64, outputSize)
		if err := binary.Read(r, binary.LittleEndian, b); err != nil {
			return nil, nil, fmt.Errorf("%w: layer %d biases: %v", ErrBadWeights, i, err)
		}
		for _, v := range w {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, nil, fmt.Errorf("%w: layer %d has non-finite weight", ErrBadWeights, i)
			}
		}
		weights = append(weights, w)
		biases = append(biases, b)
		inputSize = outputSize
	}
	if r.Len() != 0 {
		return nil, nil, fmt.Errorf("%w: trailing data", ErrBadWeights)
	}
	return weights, biases, nil
}

func writeTopology(w *bytes.Buffer, t Topology) {
	buf := make([]byte, 12+4*len(t.Hidden))
	binary.LittleEndian.PutUint32(buf[0:], uint32(t.Inputs))
	binary.LittleEndian.PutUint32(buf[4:], uint32(t.Outputs))
	binary.LittleEndian.PutUint32(buf[8:], uint32(len(t.Hidden)))
	for i, h := range t.Hidden {
		binary.LittleEndian.PutUint32(buf[12+4*i:], uint32(h))
	}
	w.Write(buf)
}

func writeFloat(w *bytes.Buffer, v float64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
	w.Write(buf[:])
}

func writeSlice(w *bytes.Buffer, data []float64) {
	for _, v := range data {
		writeFloat(w, v)
	}
}
