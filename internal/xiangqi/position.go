package xiangqi

// GeneralSquare 返回 side 的帅/将所在格，没有则 -1
func (p *Position) GeneralSquare(side Side) int {
	for sq, pc := range p.Board.Squares {
		if pc != 0 && pc.Kind() == KindGeneral && pc.Side() == side {
			return sq
		}
	}
	return -1
}

func (p *Position) GeneralExists(side Side) bool {
	return p.GeneralSquare(side) >= 0
}

// generalsFace 两将同列且中间无子
func (p *Position) generalsFace() bool {
	red := p.GeneralSquare(Red)
	black := p.GeneralSquare(Black)
	if red == -1 || black == -1 {
		// 有一方已经没将了，不存在对脸
		return false
	}
	if colOf(red) != colOf(black) {
		return false
	}
	top, bottom := rowOf(black), rowOf(red)
	if top > bottom {
		top, bottom = bottom, top
	}
	col := colOf(red)
	for r := top + 1; r < bottom; r++ {
		if p.Board.Squares[indexOf(r, col)] != 0 {
			return false
		}
	}
	return true
}

// MakeMove 原地走子，不检查合法性；返回的记录交给 UnmakeMove 还原
func (p *Position) MakeMove(m Move) MoveRecord {
	pc := p.Board.Squares[m.From]
	captured := p.Board.Squares[m.To]
	rec := MoveRecord{
		Move:     Move{From: m.From, To: m.To},
		Moved:    pc,
		Captured: captured,
		Side:     pc.Side(),
		PrevHash: p.EnsureHash(),
	}

	h := rec.PrevHash
	h ^= pieceHashKey(pc, m.From)
	if captured != 0 {
		h ^= pieceHashKey(captured, m.To)
	}
	h ^= pieceHashKey(pc, m.To)
	h ^= zobristSide

	p.Board.Squares[m.To] = pc
	p.Board.Squares[m.From] = 0
	p.SideToMove = opposite(p.SideToMove)
	p.Hash = h
	return rec
}

// UnmakeMove 精确还原起点和终点原来的子
func (p *Position) UnmakeMove(rec MoveRecord) {
	p.Board.Squares[rec.Move.From] = rec.Moved
	p.Board.Squares[rec.Move.To] = rec.Captured
	p.SideToMove = opposite(p.SideToMove)
	p.Hash = rec.PrevHash
}

// ApplyMove 返回走子后的新局面，原局面不动。搜索里用这个。
func (p *Position) ApplyMove(m Move) (*Position, bool) {
	if !validSquare(m.From) || !validSquare(m.To) {
		return nil, false
	}
	pc := p.Board.Squares[m.From]
	if pc == 0 || pc.Side() != p.SideToMove {
		return nil, false
	}
	np := *p
	np.MakeMove(m)
	return &np, true
}
