package engine

import (
	"sort"

	"xiangqi/internal/xiangqi"
)

// FindMatingMove 一步杀：走完后对方被将军且无合法着法
func FindMatingMove(pos *xiangqi.Position) (xiangqi.Move, bool) {
	moves := pos.GenerateLegalMoves()
	orderMoves(pos, moves, xiangqi.Move{})
	for _, mv := range moves {
		if givesMate(pos, mv) {
			return mv, true
		}
	}
	return xiangqi.Move{}, false
}

func givesMate(pos *xiangqi.Position, mv xiangqi.Move) bool {
	next, ok := pos.ApplyMove(mv)
	if !ok {
		return false
	}
	// 攻击方必须将军
	if !next.IsInCheck(next.SideToMove) {
		return false
	}
	return !next.HasLegalMove(next.SideToMove)
}

// OpponentHasMate 假设轮到对方走，对方是否有一步杀
func OpponentHasMate(pos *xiangqi.Position) bool {
	threat := pos.Clone()
	threat.SideToMove = pos.SideToMove.Opponent()
	threat.Hash = threat.CalculateHash()
	_, ok := FindMatingMove(threat)
	return ok
}

// FindDefensiveMove 对方下一步有杀时，找一步能化解全部杀着的走法。
// 多个解法时取静态评估对本方最好的。
func FindDefensiveMove(pos *xiangqi.Position) (xiangqi.Move, bool) {
	if !OpponentHasMate(pos) {
		return xiangqi.Move{}, false
	}
	side := pos.SideToMove
	type candidate struct {
		move  xiangqi.Move
		score int
	}
	var safe []candidate
	for _, mv := range pos.GenerateLegalMoves() {
		next, ok := pos.ApplyMove(mv)
		if !ok {
			continue
		}
		if _, mate := FindMatingMove(next); mate {
			continue
		}
		safe = append(safe, candidate{move: mv, score: side.Sign() * Evaluate(next)})
	}
	if len(safe) == 0 {
		return xiangqi.Move{}, false
	}
	sort.SliceStable(safe, func(i, j int) bool { return safe[i].score > safe[j].score })
	return safe[0].move, true
}
