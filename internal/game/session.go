package game

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"xiangqi/internal/xiangqi"
)

var (
	ErrIllegalMove = errors.New("illegal move")
	ErrGameOver    = errors.New("game is over")
	ErrNoHistory   = errors.New("nothing to undo")
)

// Limits 和棋判定参数
type Limits struct {
	MaxPlies        int // 总步数上限
	NoCaptureLimit  int // 连续未吃子步数上限
	RepetitionLimit int // 同一局面出现次数
}

func DefaultLimits() Limits {
	return Limits{MaxPlies: 150, NoCaptureLimit: 50, RepetitionLimit: 3}
}

// Session 一局棋的全部可变状态。所有引擎调用都显式拿着它，没有全局对局。
type Session struct {
	ID  string
	Pos *xiangqi.Position

	History        []xiangqi.MoveRecord
	NoCaptureCount int

	// 局面历史：Key 按出现顺序排列，counts 计数
	positions []string
	counts    map[string]int
	// 每步之前的未吃子计数，悔棋时恢复
	noCaptureTrail []int

	status Status
	reason string
	limits Limits
}

func NewSession(limits Limits) *Session {
	return NewSessionFrom(xiangqi.NewInitialPosition(), limits)
}

// NewSessionFrom 从任意局面开始，比如 FEN 导入的残局
func NewSessionFrom(pos *xiangqi.Position, limits Limits) *Session {
	s := &Session{limits: limits}
	s.reset(pos)
	return s
}

func (s *Session) reset(pos *xiangqi.Position) {
	s.Pos = pos
	s.History = s.History[:0]
	s.NoCaptureCount = 0
	s.positions = s.positions[:0]
	s.counts = make(map[string]int)
	s.noCaptureTrail = s.noCaptureTrail[:0]
	s.status = StatusPlaying
	s.reason = ""
	s.pushPosition()
	s.evaluate()
}

// Reset 回到开局，计数全部清零
func (s *Session) Reset() { s.reset(xiangqi.NewInitialPosition()) }

func (s *Session) Limits() Limits { return s.limits }

func (s *Session) pushPosition() {
	k := s.Pos.Key()
	s.positions = append(s.positions, k)
	s.counts[k]++
}

func (s *Session) popPosition() {
	n := len(s.positions)
	if n == 0 {
		return
	}
	k := s.positions[n-1]
	s.positions = s.positions[:n-1]
	if s.counts[k]--; s.counts[k] <= 0 {
		delete(s.counts, k)
	}
}

// Ply 已走步数
func (s *Session) Ply() int { return len(s.History) }

func (s *Session) SideToMove() xiangqi.Side { return s.Pos.SideToMove }

func (s *Session) Status() Status { return s.status }

// Reason 终局的可读原因，未结束为空
func (s *Session) Reason() string { return s.reason }

// Board 返回棋盘副本，外部改了也不影响对局
func (s *Session) Board() xiangqi.Board { return s.Pos.Board }

// RepetitionCount 当前局面已出现的次数
func (s *Session) RepetitionCount() int { return s.counts[s.Pos.Key()] }

// PositionHistory 出现过的局面 Key，按顺序
func (s *Session) PositionHistory() []string {
	out := make([]string, len(s.positions))
	copy(out, s.positions)
	return out
}

func (s *Session) IsValidMove(from, to xiangqi.Coordinate) bool {
	if s.status.Terminal() || !from.Valid() || !to.Valid() {
		return false
	}
	return s.Pos.IsLegalMove(xiangqi.NewMove(from, to), s.Pos.SideToMove)
}

// LegalMoves side 的全部合法走法；不是轮走方也可以查
func (s *Session) LegalMoves(side xiangqi.Side) []xiangqi.Move {
	return s.Pos.GenerateLegalMovesForSide(side)
}

// Play 校验并走一步。非法时返回 ErrIllegalMove，局面不变。
func (s *Session) Play(m xiangqi.Move) (xiangqi.MoveRecord, error) {
	if s.status.Terminal() {
		return xiangqi.MoveRecord{}, ErrGameOver
	}
	if !s.Pos.IsLegalMove(m, s.Pos.SideToMove) {
		return xiangqi.MoveRecord{}, fmt.Errorf("%w: %s", ErrIllegalMove, m)
	}
	rec := s.Pos.MakeMove(m)
	s.History = append(s.History, rec)
	s.noCaptureTrail = append(s.noCaptureTrail, s.NoCaptureCount)
	if rec.Captured != 0 {
		s.NoCaptureCount = 0
	} else {
		s.NoCaptureCount++
	}
	s.pushPosition()
	s.evaluate()
	return rec, nil
}

// Undo 悔一步，计数和局面历史一起恢复
func (s *Session) Undo() (xiangqi.MoveRecord, error) {
	n := len(s.History)
	if n == 0 {
		return xiangqi.MoveRecord{}, ErrNoHistory
	}
	rec := s.History[n-1]
	s.History = s.History[:n-1]
	s.popPosition()
	s.Pos.UnmakeMove(rec)
	s.NoCaptureCount = s.noCaptureTrail[n-1]
	s.noCaptureTrail = s.noCaptureTrail[:n-1]
	s.status = StatusPlaying
	s.reason = ""
	s.evaluate()
	return rec, nil
}

// Abort 强制结束，用于超时和局面损坏
func (s *Session) Abort(st Status, reason string) {
	s.status = st
	s.reason = reason
}

// evaluate 按固定顺序判定终局：和棋（步数、未吃子、重复）→ 缺将 → 将死/困毙
func (s *Session) evaluate() {
	pos := s.Pos
	if reason, ok := s.drawReason(); ok {
		s.finish(StatusDraw, reason)
		return
	}
	for _, side := range [2]xiangqi.Side{xiangqi.Red, xiangqi.Black} {
		if !pos.GeneralExists(side) {
			// 合法走法吃不到将，走到这里说明局面已经坏了
			log.Warn().Str("session", s.ID).Stringer("side", side).Str("fen", pos.Encode()).Msg("general missing from board")
			s.finish(winFor(side.Opponent()), ReasonGeneralMissing)
			return
		}
	}
	stm := pos.SideToMove
	if pos.HasLegalMove(stm) {
		return
	}
	// 困毙也判负
	if pos.IsInCheck(stm) {
		s.finish(winFor(stm.Opponent()), ReasonCheckmate)
	} else {
		s.finish(winFor(stm.Opponent()), ReasonStalemate)
	}
}

func (s *Session) drawReason() (string, bool) {
	l := s.limits
	if l.MaxPlies > 0 && len(s.History) >= l.MaxPlies {
		return ReasonMoveLimit, true
	}
	if l.NoCaptureLimit > 0 && s.NoCaptureCount >= l.NoCaptureLimit {
		return ReasonNoCapture, true
	}
	if l.RepetitionLimit > 0 && s.counts[s.Pos.Key()] >= l.RepetitionLimit {
		return ReasonRepetition, true
	}
	return "", false
}

func (s *Session) finish(st Status, reason string) {
	s.status = st
	s.reason = reason
}
