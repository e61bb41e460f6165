package xiangqi

var (
	orthoDirs = [4][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}}
	diagDirs  = [4][2]int{{-1, -1}, {-1, 1}, {1, -1}, {1, 1}}

	// 马：{落点偏移, 马腿偏移}
	horseJumps = [8][2][2]int{
		{{-2, -1}, {-1, 0}}, {{-2, 1}, {-1, 0}},
		{{2, -1}, {1, 0}}, {{2, 1}, {1, 0}},
		{{-1, -2}, {0, -1}}, {{1, -2}, {0, -1}},
		{{-1, 2}, {0, 1}}, {{1, 2}, {0, 1}},
	}
)

// 目标格可以落子：空或者对方的子
func canLand(p *Position, to int, side Side) bool {
	dst := p.Board.Squares[to]
	return dst == 0 || dst.Side() != side
}

// 车：横竖任意格，路径全空
func genChariotMoves(p *Position, from int, moves *[]Move) {
	row, col := rowOf(from), colOf(from)
	side := p.Board.Squares[from].Side()
	for _, d := range orthoDirs {
		r, c := row+d[0], col+d[1]
		for onBoard(r, c) {
			to := indexOf(r, c)
			pc := p.Board.Squares[to]
			if pc == 0 {
				*moves = append(*moves, Move{From: from, To: to})
			} else {
				if pc.Side() != side {
					*moves = append(*moves, Move{From: from, To: to})
				}
				break
			}
			r += d[0]
			c += d[1]
		}
	}
}

// 炮：不吃子同车；吃子必须正好隔一个炮架
func genCannonMoves(p *Position, from int, moves *[]Move) {
	row, col := rowOf(from), colOf(from)
	side := p.Board.Squares[from].Side()
	for _, d := range orthoDirs {
		r, c := row+d[0], col+d[1]

		// 走子阶段：直到第一个棋子
		for onBoard(r, c) {
			to := indexOf(r, c)
			if p.Board.Squares[to] != 0 {
				break
			}
			*moves = append(*moves, Move{From: from, To: to})
			r += d[0]
			c += d[1]
		}
		// 越过炮架
		r += d[0]
		c += d[1]

		// 吃子阶段：炮架后的第一个子
		for onBoard(r, c) {
			to := indexOf(r, c)
			pc := p.Board.Squares[to]
			if pc != 0 {
				if pc.Side() != side {
					*moves = append(*moves, Move{From: from, To: to})
				}
				break
			}
			r += d[0]
			c += d[1]
		}
	}
}

// 马：日字，蹩马腿
func genHorseMoves(p *Position, from int, moves *[]Move) {
	row, col := rowOf(from), colOf(from)
	side := p.Board.Squares[from].Side()
	for _, j := range horseJumps {
		r, c := row+j[0][0], col+j[0][1]
		if !onBoard(r, c) {
			continue
		}
		if p.Board.Squares[indexOf(row+j[1][0], col+j[1][1])] != 0 {
			continue
		}
		to := indexOf(r, c)
		if canLand(p, to, side) {
			*moves = append(*moves, Move{From: from, To: to})
		}
	}
}

// 相：田字，塞象眼，不过河
func genElephantMoves(p *Position, from int, moves *[]Move) {
	row, col := rowOf(from), colOf(from)
	side := p.Board.Squares[from].Side()
	for _, d := range diagDirs {
		r, c := row+2*d[0], col+2*d[1]
		if !onBoard(r, c) || !ownHalf(side, r) {
			continue
		}
		if p.Board.Squares[indexOf(row+d[0], col+d[1])] != 0 {
			continue
		}
		to := indexOf(r, c)
		if canLand(p, to, side) {
			*moves = append(*moves, Move{From: from, To: to})
		}
	}
}

// 士：九宫内斜走一格
func genAdvisorMoves(p *Position, from int, moves *[]Move) {
	row, col := rowOf(from), colOf(from)
	side := p.Board.Squares[from].Side()
	for _, d := range diagDirs {
		r, c := row+d[0], col+d[1]
		if !onBoard(r, c) || !inPalace(side, r, c) {
			continue
		}
		to := indexOf(r, c)
		if canLand(p, to, side) {
			*moves = append(*moves, Move{From: from, To: to})
		}
	}
}

// 将：九宫内上下左右一格。对脸在合法性过滤里处理
func genGeneralMoves(p *Position, from int, moves *[]Move) {
	row, col := rowOf(from), colOf(from)
	side := p.Board.Squares[from].Side()
	for _, d := range orthoDirs {
		r, c := row+d[0], col+d[1]
		if !onBoard(r, c) || !inPalace(side, r, c) {
			continue
		}
		to := indexOf(r, c)
		if canLand(p, to, side) {
			*moves = append(*moves, Move{From: from, To: to})
		}
	}
}

// 兵：过河前只能前进，过河后可左右，永不后退
func genSoldierMoves(p *Position, from int, moves *[]Move) {
	row, col := rowOf(from), colOf(from)
	side := p.Board.Squares[from].Side()
	if r := row + soldierDir(side); onBoard(r, col) {
		to := indexOf(r, col)
		if canLand(p, to, side) {
			*moves = append(*moves, Move{From: from, To: to})
		}
	}
	if !crossedRiver(side, row) {
		return
	}
	for _, dc := range [2]int{-1, 1} {
		c := col + dc
		if !onBoard(row, c) {
			continue
		}
		to := indexOf(row, c)
		if canLand(p, to, side) {
			*moves = append(*moves, Move{From: from, To: to})
		}
	}
}

// genPieceMoves 按子的种类分发，穷举全部种类
func genPieceMoves(p *Position, from int, moves *[]Move) {
	switch p.Board.Squares[from].Kind() {
	case KindGeneral:
		genGeneralMoves(p, from, moves)
	case KindAdvisor:
		genAdvisorMoves(p, from, moves)
	case KindElephant:
		genElephantMoves(p, from, moves)
	case KindChariot:
		genChariotMoves(p, from, moves)
	case KindHorse:
		genHorseMoves(p, from, moves)
	case KindCannon:
		genCannonMoves(p, from, moves)
	case KindSoldier:
		genSoldierMoves(p, from, moves)
	case KindNone:
	}
}
