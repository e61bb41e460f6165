package xiangqi

import (
	"strings"
	"unicode"
)

const (
	Rows       = 10
	Cols       = 9
	NumSquares = Rows * Cols

	// 河界：黑方 0..4 行，红方 5..9 行
	RiverRow = 5
)

func indexOf(row, col int) int { return row*Cols + col }
func rowOf(sq int) int         { return sq / Cols }
func colOf(sq int) int         { return sq % Cols }

func onBoard(row, col int) bool {
	return row >= 0 && row < Rows && col >= 0 && col < Cols
}

func validSquare(sq int) bool { return sq >= 0 && sq < NumSquares }

func opposite(side Side) Side {
	if side == Red {
		return Black
	}
	if side == Black {
		return Red
	}
	return NoSide
}

// 兵的前进方向：红向上(-1)，黑向下(+1)
func soldierDir(side Side) int {
	if side == Red {
		return -1
	}
	if side == Black {
		return +1
	}
	return 0
}

// 是否已经过河
func crossedRiver(side Side, row int) bool {
	if side == Red {
		return row < RiverRow
	}
	if side == Black {
		return row >= RiverRow
	}
	return false
}

// 是否在本方半场（象不能过河）
func ownHalf(side Side, row int) bool {
	if side == Red {
		return row >= RiverRow
	}
	if side == Black {
		return row < RiverRow
	}
	return false
}

// 是否在九宫
func inPalace(side Side, row, col int) bool {
	if col < 3 || col > 5 {
		return false
	}
	if side == Black {
		return row >= 0 && row <= 2
	}
	if side == Red {
		return row >= 7 && row <= 9
	}
	return false
}

var letterToKind = map[rune]PieceKind{
	'k': KindGeneral,
	'a': KindAdvisor,
	'b': KindElephant,
	'r': KindChariot,
	'n': KindHorse,
	'c': KindCannon,
	'p': KindSoldier,
}

var kindToLetter = map[PieceKind]rune{
	KindGeneral:  'k',
	KindAdvisor:  'a',
	KindElephant: 'b',
	KindChariot:  'r',
	KindHorse:    'n',
	KindCannon:   'c',
	KindSoldier:  'p',
}

func pieceToChar(p Piece) rune {
	if p == 0 {
		return '.'
	}
	base, ok := kindToLetter[p.Kind()]
	if !ok {
		return '.'
	}
	if p.Side() == Red {
		return unicode.ToUpper(base)
	}
	return base
}

// Letter FEN 字母，红方大写，空格为 "."
func (p Piece) Letter() string { return string(pieceToChar(p)) }

const initialBoardString = `rnbakabnr
.........
.c.....c.
p.p.p.p.p
.........
.........
P.P.P.P.P
.C.....C.
.........
RNBAKABNR`

func parseBoard(s string) Board {
	var b Board
	lines := make([]string, 0, Rows)
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	if len(lines) != Rows {
		panic("board string must have 10 rows")
	}
	for r := 0; r < Rows; r++ {
		if len(lines[r]) != Cols {
			panic("board string must have 9 columns")
		}
		for c, ch := range lines[r] {
			if ch == '.' {
				continue
			}
			k, ok := letterToKind[unicode.ToLower(ch)]
			if !ok {
				panic("unknown piece letter: " + string(ch))
			}
			side := Black
			if unicode.IsUpper(ch) {
				side = Red
			}
			b.Squares[indexOf(r, c)] = MakePiece(side, k)
		}
	}
	return b
}

func NewInitialPosition() *Position {
	pos := &Position{
		Board:      parseBoard(initialBoardString),
		SideToMove: Red, // 红先
	}
	pos.Hash = pos.CalculateHash()
	return pos
}

// NewEmptyPosition 空棋盘，测试和残局摆子用
func NewEmptyPosition(stm Side) *Position {
	pos := &Position{SideToMove: stm}
	pos.Hash = pos.CalculateHash()
	return pos
}

// Put 摆子并重算哈希；不做任何合法性检查
func (p *Position) Put(c Coordinate, pc Piece) {
	p.Board.Squares[c.Square()] = pc
	p.Hash = p.CalculateHash()
}

func (p *Position) At(c Coordinate) Piece {
	if !c.Valid() {
		return 0
	}
	return p.Board.Squares[c.Square()]
}

func (p *Position) Clone() *Position {
	np := *p
	return &np
}

// PieceCount 统计棋盘上的子数
func (p *Position) PieceCount() (red, black int) {
	for _, pc := range p.Board.Squares {
		switch pc.Side() {
		case Red:
			red++
		case Black:
			black++
		}
	}
	return red, black
}

// String 画成 10 行文本，调试用
func (b *Board) String() string {
	var sb strings.Builder
	for r := 0; r < Rows; r++ {
		for c := 0; c < Cols; c++ {
			sb.WriteRune(pieceToChar(b.Squares[indexOf(r, c)]))
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
