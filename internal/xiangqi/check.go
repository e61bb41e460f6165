package xiangqi

// IsAttacked 判断 sq 是否被 bySide 攻击：对方任何一个子按几何规则能走到 sq 即算。
// 不考虑攻击方自己是否会被将军。
func (p *Position) IsAttacked(sq int, bySide Side) bool {
	return p.attacked(sq, bySide, false)
}

// IsInCheck 判断 side 的将是否被将军。没有将时返回 false，终局由 game 包判定。
func (p *Position) IsInCheck(side Side) bool {
	gen := p.GeneralSquare(side)
	if gen == -1 {
		return false
	}
	return p.attacked(gen, opposite(side), true)
}

func (p *Position) attacked(sq int, bySide Side, palaceTarget bool) bool {
	var moves []Move
	for s := 0; s < NumSquares; s++ {
		pc := p.Board.Squares[s]
		if pc == 0 || pc.Side() != bySide {
			continue
		}
		k := pc.Kind()
		// 士、象出不了本方半场，打不到对方九宫
		if palaceTarget && (k == KindAdvisor || k == KindElephant) {
			continue
		}
		moves = moves[:0]
		genPieceMoves(p, s, &moves)
		for _, mv := range moves {
			if mv.To == sq {
				return true
			}
		}
	}
	return false
}

// Attackers 列出所有攻击 sq 的 bySide 棋子所在格
func (p *Position) Attackers(sq int, bySide Side) []int {
	var out []int
	var moves []Move
	for s := 0; s < NumSquares; s++ {
		pc := p.Board.Squares[s]
		if pc == 0 || pc.Side() != bySide {
			continue
		}
		moves = moves[:0]
		genPieceMoves(p, s, &moves)
		for _, mv := range moves {
			if mv.To == sq {
				out = append(out, s)
				break
			}
		}
	}
	return out
}

// IsCheckmate 轮走方被将军且无合法着法
func (p *Position) IsCheckmate() bool {
	return p.IsInCheck(p.SideToMove) && !p.HasLegalMove(p.SideToMove)
}

// IsStalemate 未被将军但无子可动
func (p *Position) IsStalemate() bool {
	return !p.IsInCheck(p.SideToMove) && !p.HasLegalMove(p.SideToMove)
}
