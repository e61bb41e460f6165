package xiangqi

import "sync"

var (
	zobristOnce sync.Once

	zobristPieces [2][numKinds][NumSquares]uint64
	zobristSide   uint64
)

func initZobrist() {
	zobristOnce.Do(func() {
		// splitmix64，固定种子保证每次启动哈希一致
		seed := uint64(0x9E3779B97F4A7C15)
		next := func() uint64 {
			seed += 0x9E3779B97F4A7C15
			z := seed
			z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
			z = (z ^ (z >> 27)) * 0x94D049BB133111EB
			return z ^ (z >> 31)
		}
		for side := 0; side < 2; side++ {
			for k := 1; k < numKinds; k++ {
				for sq := 0; sq < NumSquares; sq++ {
					zobristPieces[side][k][sq] = next()
				}
			}
		}
		zobristSide = next()
	})
}

func pieceHashKey(pc Piece, sq int) uint64 {
	if pc == 0 || !validSquare(sq) {
		return 0
	}
	initZobrist()
	var sideIdx int
	switch pc.Side() {
	case Red:
		sideIdx = 0
	case Black:
		sideIdx = 1
	default:
		return 0
	}
	k := int(pc.Kind())
	if k <= 0 || k >= numKinds {
		return 0
	}
	return zobristPieces[sideIdx][k][sq]
}

// CalculateHash 全量计算 Zobrist 哈希
func (p *Position) CalculateHash() uint64 {
	initZobrist()
	var h uint64
	for sq := 0; sq < NumSquares; sq++ {
		if pc := p.Board.Squares[sq]; pc != 0 {
			h ^= pieceHashKey(pc, sq)
		}
	}
	if p.SideToMove == Black {
		h ^= zobristSide
	}
	return h
}

// EnsureHash 确保 Hash 已初始化；返回当前哈希值
func (p *Position) EnsureHash() uint64 {
	if p.Hash == 0 {
		p.Hash = p.CalculateHash()
	}
	return p.Hash
}

// Key 局面的规范字符串：逐格编码加轮走方，不同局面绝不相同。
// 重复局面计数用这个，Zobrist 只给搜索缓存用。
func (p *Position) Key() string {
	var buf [NumSquares + 1]byte
	for sq, pc := range p.Board.Squares {
		buf[sq] = byte(pieceToChar(pc))
	}
	if p.SideToMove == Black {
		buf[NumSquares] = 'b'
	} else {
		buf[NumSquares] = 'w'
	}
	return string(buf[:])
}
