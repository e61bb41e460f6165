package xiangqi

type Side int8

const (
	NoSide Side = -1
	Red    Side = 0
	Black  Side = 1
)

func (s Side) String() string {
	switch s {
	case Red:
		return "red"
	case Black:
		return "black"
	}
	return "none"
}

// Opponent 返回对手；NoSide 的对手还是 NoSide
func (s Side) Opponent() Side { return opposite(s) }

// Sign 红方 +1，黑方 -1，用于把“本方分数”转换成红方视角
func (s Side) Sign() int {
	switch s {
	case Red:
		return 1
	case Black:
		return -1
	}
	return 0
}

type PieceKind int8

const (
	KindNone     PieceKind = iota
	KindGeneral            // 帅 / 将
	KindAdvisor            // 仕 / 士
	KindElephant           // 相 / 象
	KindChariot            // 车
	KindHorse              // 马
	KindCannon             // 炮
	KindSoldier            // 兵 / 卒

	numKinds = int(KindSoldier) + 1
)

// AllKinds 便于测试、评估遍历
var AllKinds = [...]PieceKind{KindGeneral, KindAdvisor, KindElephant, KindChariot, KindHorse, KindCannon, KindSoldier}

func (k PieceKind) String() string {
	switch k {
	case KindGeneral:
		return "general"
	case KindAdvisor:
		return "advisor"
	case KindElephant:
		return "elephant"
	case KindChariot:
		return "chariot"
	case KindHorse:
		return "horse"
	case KindCannon:
		return "cannon"
	case KindSoldier:
		return "soldier"
	}
	return "none"
}

type Piece int8 // 0=空；>0 红；<0 黑；abs=PieceKind

func MakePiece(side Side, k PieceKind) Piece {
	if k == KindNone || side == NoSide {
		return 0
	}
	if side == Red {
		return Piece(k)
	}
	return -Piece(k)
}

func (p Piece) Kind() PieceKind {
	if p < 0 {
		return PieceKind(-p)
	}
	return PieceKind(p)
}

func (p Piece) Side() Side {
	if p == 0 {
		return NoSide
	}
	if p > 0 {
		return Red
	}
	return Black
}

func (p Piece) IsEmpty() bool { return p == 0 }

// Name 传统棋子名称，红黑分开
func (p Piece) Name() string {
	red := p.Side() == Red
	switch p.Kind() {
	case KindGeneral:
		if red {
			return "帅"
		}
		return "将"
	case KindAdvisor:
		if red {
			return "仕"
		}
		return "士"
	case KindElephant:
		if red {
			return "相"
		}
		return "象"
	case KindChariot:
		return "车"
	case KindHorse:
		return "马"
	case KindCannon:
		return "炮"
	case KindSoldier:
		if red {
			return "兵"
		}
		return "卒"
	}
	return ""
}

type Board struct {
	Squares [NumSquares]Piece
}

// Coordinate 行 0..9（黑方在上），列 0..8
type Coordinate struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

func (c Coordinate) Valid() bool { return onBoard(c.Row, c.Col) }

func (c Coordinate) Square() int { return indexOf(c.Row, c.Col) }

func CoordOf(sq int) Coordinate { return Coordinate{Row: rowOf(sq), Col: colOf(sq)} }

type Move struct {
	From  int `json:"from"`
	To    int `json:"to"`
	Score int `json:"-"` // 搜索排序用
}

func NewMove(from, to Coordinate) Move {
	return Move{From: from.Square(), To: to.Square()}
}

func (m Move) Same(o Move) bool { return m.From == o.From && m.To == o.To }

func (m Move) IsZero() bool { return m.From == 0 && m.To == 0 }

func (m Move) String() string {
	return CoordOf(m.From).String() + CoordOf(m.To).String()
}

// MoveRecord 一步棋的完整快照，用于悔棋和学习
type MoveRecord struct {
	Move     Move  `json:"move"`
	Moved    Piece `json:"moved"`
	Captured Piece `json:"captured"`
	Side     Side  `json:"side"`
	PrevHash uint64
}

// Position = 棋盘 + 轮到谁走
type Position struct {
	Board      Board
	SideToMove Side
	Hash       uint64
}
