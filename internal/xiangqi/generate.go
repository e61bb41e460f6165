package xiangqi

// GeneratePseudoMovesForSide 伪合法走法：只看几何规则，不管自己是否被将军
func (p *Position) GeneratePseudoMovesForSide(side Side) []Move {
	moves := make([]Move, 0, 64)
	for sq := 0; sq < NumSquares; sq++ {
		pc := p.Board.Squares[sq]
		if pc == 0 || pc.Side() != side {
			continue
		}
		genPieceMoves(p, sq, &moves)
	}
	return moves
}

func (p *Position) GeneratePseudoMoves() []Move {
	return p.GeneratePseudoMovesForSide(p.SideToMove)
}

// GenerateLegalMovesForSide 过滤掉走完后自己被将军或两将对脸的走法。
// side 不必是轮走方，评估里数攻击要用到。
func (p *Position) GenerateLegalMovesForSide(side Side) []Move {
	pseudo := p.GeneratePseudoMovesForSide(side)
	out := pseudo[:0]
	scratch := *p
	for _, mv := range pseudo {
		if scratch.leavesSafe(mv, side) {
			out = append(out, mv)
		}
	}
	return out
}

func (p *Position) GenerateLegalMoves() []Move {
	return p.GenerateLegalMovesForSide(p.SideToMove)
}

// LegalMovesFrom 某一格上棋子的全部合法走法
func (p *Position) LegalMovesFrom(from int) []Move {
	if !validSquare(from) {
		return nil
	}
	pc := p.Board.Squares[from]
	if pc == 0 {
		return nil
	}
	var pseudo []Move
	genPieceMoves(p, from, &pseudo)
	out := pseudo[:0]
	scratch := *p
	for _, mv := range pseudo {
		if scratch.leavesSafe(mv, pc.Side()) {
			out = append(out, mv)
		}
	}
	return out
}

// HasLegalMove 找到一个就返回，比生成全部走法省
func (p *Position) HasLegalMove(side Side) bool {
	scratch := *p
	var buf []Move
	for sq := 0; sq < NumSquares; sq++ {
		pc := p.Board.Squares[sq]
		if pc == 0 || pc.Side() != side {
			continue
		}
		buf = buf[:0]
		genPieceMoves(p, sq, &buf)
		for _, mv := range buf {
			if scratch.leavesSafe(mv, side) {
				return true
			}
		}
	}
	return false
}

// IsLegalMove 完整的合法性判定：归属、边界、不吃己子、几何、不送将
func (p *Position) IsLegalMove(m Move, side Side) bool {
	if !validSquare(m.From) || !validSquare(m.To) || m.From == m.To {
		return false
	}
	pc := p.Board.Squares[m.From]
	if pc == 0 || pc.Side() != side {
		return false
	}
	if !canLand(p, m.To, side) {
		return false
	}
	if !p.geometryAllows(m) {
		return false
	}
	scratch := *p
	return scratch.leavesSafe(m, side)
}

// geometryAllows 只看这个子的走法规则
func (p *Position) geometryAllows(m Move) bool {
	var moves []Move
	genPieceMoves(p, m.From, &moves)
	for _, mv := range moves {
		if mv.To == m.To {
			return true
		}
	}
	return false
}

// leavesSafe 走一步再撤回，无论结果如何都会撤回
func (p *Position) leavesSafe(m Move, side Side) bool {
	rec := p.MakeMove(m)
	ok := !p.generalsFace() && !p.IsInCheck(side)
	p.UnmakeMove(rec)
	return ok
}

// CapturesFrom 某格棋子的合法吃子着法
func (p *Position) CapturesFrom(from int) []Move {
	if !validSquare(from) || p.Board.Squares[from] == 0 {
		return nil
	}
	side := p.Board.Squares[from].Side()
	var pseudo []Move
	genPieceMoves(p, from, &pseudo)
	out := pseudo[:0]
	scratch := *p
	for _, mv := range pseudo {
		if p.Board.Squares[mv.To] == 0 {
			continue
		}
		if scratch.leavesSafe(mv, side) {
			out = append(out, mv)
		}
	}
	return out
}
