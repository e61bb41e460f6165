package xiangqi

// FeatureSize 神经网络输入长度，一格一个数
const FeatureSize = NumSquares

var featureMagnitude = [numKinds]float64{
	KindGeneral:  6,
	KindChariot:  5,
	KindHorse:    4,
	KindCannon:   4,
	KindElephant: 3,
	KindAdvisor:  2,
	KindSoldier:  1,
}

// FeatureVector 把棋盘压平成 90 维：红正黑负，空格 0
func (p *Position) FeatureVector() []float64 {
	out := make([]float64, FeatureSize)
	p.FillFeatures(out)
	return out
}

// FillFeatures 写入调用方给的切片，避免搜索时反复分配
func (p *Position) FillFeatures(dst []float64) {
	for sq, pc := range p.Board.Squares {
		if pc == 0 {
			dst[sq] = 0
			continue
		}
		dst[sq] = featureMagnitude[pc.Kind()] * float64(pc.Side().Sign())
	}
}
