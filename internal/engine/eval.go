package engine

import "xiangqi/internal/xiangqi"

// ======= 基础子力估值 =======

var pieceValue = [...]int{
	xiangqi.KindNone:     0,
	xiangqi.KindGeneral:  10000,
	xiangqi.KindChariot:  900,
	xiangqi.KindHorse:    450,
	xiangqi.KindCannon:   450,
	xiangqi.KindElephant: 200,
	xiangqi.KindAdvisor:  200,
	xiangqi.KindSoldier:  100,
}

// PieceValue 子力价值，奖励计算也用这张表
func PieceValue(k xiangqi.PieceKind) int {
	if int(k) < 0 || int(k) >= len(pieceValue) {
		return 0
	}
	return pieceValue[k]
}

const (
	checkBonus         = 800
	centerBonus        = 20
	horseCannonBonus   = 15
	horseCannonRange   = 3
	protectionBonus    = 10
	kingGuardBonus     = 30
	attackValueDivisor = 10
)

// 以下位置表都是红方视角（第 0 行是黑方底线），黑方查表时行号镜像

var soldierTable = [xiangqi.Rows][xiangqi.Cols]int{
	{70, 90, 70, 60, 60, 60, 70, 90, 70},
	{70, 90, 70, 60, 60, 60, 70, 90, 70},
	{70, 90, 70, 60, 60, 60, 70, 90, 70},
	{60, 60, 60, 60, 60, 60, 60, 60, 60},
	{0, 0, 0, 0, 0, 0, 0, 0, 0},
	{0, 0, 0, 0, 0, 0, 0, 0, 0},
	{0, 0, 0, 0, 0, 0, 0, 0, 0},
	{0, 0, 0, 0, 0, 0, 0, 0, 0},
	{0, 0, 0, 0, 0, 0, 0, 0, 0},
	{0, 0, 0, 0, 0, 0, 0, 0, 0},
}

var horseTable = [xiangqi.Rows][xiangqi.Cols]int{
	{90, 90, 90, 96, 90, 96, 90, 90, 90},
	{90, 96, 103, 97, 94, 97, 103, 96, 90},
	{92, 98, 96, 92, 98, 92, 96, 98, 92},
	{93, 108, 100, 107, 100, 107, 100, 108, 93},
	{90, 100, 99, 103, 104, 103, 99, 100, 90},
	{90, 100, 99, 103, 104, 103, 99, 100, 90},
	{93, 108, 100, 107, 100, 107, 100, 108, 93},
	{92, 98, 96, 92, 98, 92, 96, 98, 92},
	{90, 96, 103, 97, 94, 97, 103, 96, 90},
	{90, 90, 90, 96, 90, 96, 90, 90, 90},
}

var chariotTable = [xiangqi.Rows][xiangqi.Cols]int{
	{206, 208, 207, 213, 214, 213, 207, 208, 206},
	{206, 212, 209, 216, 233, 216, 209, 212, 206},
	{206, 208, 207, 214, 216, 214, 207, 208, 206},
	{206, 213, 213, 216, 216, 216, 213, 213, 206},
	{208, 211, 211, 214, 215, 214, 211, 211, 208},
	{208, 212, 212, 214, 215, 214, 212, 212, 208},
	{204, 209, 204, 212, 214, 212, 204, 209, 204},
	{198, 208, 204, 212, 212, 212, 204, 208, 198},
	{200, 208, 206, 212, 200, 212, 206, 208, 200},
	{194, 206, 204, 212, 200, 212, 204, 206, 194},
}

var centerSquares = [...]xiangqi.Coordinate{
	{Row: 4, Col: 3}, {Row: 4, Col: 4}, {Row: 4, Col: 5},
	{Row: 5, Col: 3}, {Row: 5, Col: 4}, {Row: 5, Col: 5},
}

var neighbours8 = [8][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}, {-1, -1}, {-1, 1}, {1, -1}, {1, 1}}

func squareTableValue(k xiangqi.PieceKind, side xiangqi.Side, row, col int) int {
	if side == xiangqi.Black {
		row = xiangqi.Rows - 1 - row
	}
	switch k {
	case xiangqi.KindSoldier:
		return soldierTable[row][col]
	case xiangqi.KindHorse:
		return horseTable[row][col]
	case xiangqi.KindChariot:
		return chariotTable[row][col]
	}
	return 0
}

// Evaluate 红方视角：正数红方好，负数黑方好。不修改 pos。
func Evaluate(pos *xiangqi.Position) int {
	score := 0
	for sq, pc := range pos.Board.Squares {
		if pc == 0 {
			continue
		}
		side := pc.Side()
		c := xiangqi.CoordOf(sq)
		val := PieceValue(pc.Kind()) +
			squareTableValue(pc.Kind(), side, c.Row, c.Col) +
			protection(pos, c, side) +
			attackBonus(pos, sq, side)
		score += side.Sign() * val
	}

	if pos.IsInCheck(xiangqi.Red) {
		score -= checkBonus
	}
	if pos.IsInCheck(xiangqi.Black) {
		score += checkBonus
	}

	score += centerControl(pos)
	score += horseCannonCoordination(pos)
	score += generalGuard(pos, xiangqi.Red) - generalGuard(pos, xiangqi.Black)
	return score
}

// 周围 8 格每个己方子 +10
func protection(pos *xiangqi.Position, c xiangqi.Coordinate, side xiangqi.Side) int {
	n := 0
	for _, d := range neighbours8 {
		if pc := pos.At(xiangqi.Coordinate{Row: c.Row + d[0], Col: c.Col + d[1]}); pc != 0 && pc.Side() == side {
			n++
		}
	}
	return n * protectionBonus
}

// 能合法吃到的敌子，每个加其价值的十分之一
func attackBonus(pos *xiangqi.Position, sq int, side xiangqi.Side) int {
	bonus := 0
	for _, m := range pos.CapturesFrom(sq) {
		target := pos.Board.Squares[m.To]
		if target != 0 && target.Side() != side {
			bonus += PieceValue(target.Kind()) / attackValueDivisor
		}
	}
	return bonus
}

func centerControl(pos *xiangqi.Position) int {
	score := 0
	for _, c := range centerSquares {
		if pc := pos.At(c); pc != 0 {
			score += pc.Side().Sign() * centerBonus
		}
	}
	return score
}

// 同方马炮曼哈顿距离 ≤3
func horseCannonCoordination(pos *xiangqi.Position) int {
	var horses, cannons []int
	for sq, pc := range pos.Board.Squares {
		switch pc.Kind() {
		case xiangqi.KindHorse:
			horses = append(horses, sq)
		case xiangqi.KindCannon:
			cannons = append(cannons, sq)
		}
	}
	score := 0
	for _, h := range horses {
		hs := pos.Board.Squares[h].Side()
		hc := xiangqi.CoordOf(h)
		for _, c := range cannons {
			if pos.Board.Squares[c].Side() != hs {
				continue
			}
			cc := xiangqi.CoordOf(c)
			if abs(hc.Row-cc.Row)+abs(hc.Col-cc.Col) <= horseCannonRange {
				score += hs.Sign() * horseCannonBonus
			}
		}
	}
	return score
}

// 将的上下左右每有一个己方子 +30
func generalGuard(pos *xiangqi.Position, side xiangqi.Side) int {
	gen := pos.GeneralSquare(side)
	if gen < 0 {
		return 0
	}
	c := xiangqi.CoordOf(gen)
	n := 0
	for _, d := range neighbours8[:4] {
		if pc := pos.At(xiangqi.Coordinate{Row: c.Row + d[0], Col: c.Col + d[1]}); pc != 0 && pc.Side() == side {
			n++
		}
	}
	return n * kingGuardBonus
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
