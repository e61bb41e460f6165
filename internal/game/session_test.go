package game

import (
	"errors"
	"testing"

	"xiangqi/internal/xiangqi"
)

func at(row, col int) xiangqi.Coordinate { return xiangqi.Coordinate{Row: row, Col: col} }

func move(fr, fc, tr, tc int) xiangqi.Move { return xiangqi.NewMove(at(fr, fc), at(tr, tc)) }

func mustPlay(t *testing.T, s *Session, m xiangqi.Move) {
	t.Helper()
	if _, err := s.Play(m); err != nil {
		t.Fatalf("play %s: %v", m, err)
	}
}

// 双方马来回跳，四步回到原局面
var horseShuffle = []xiangqi.Move{
	move(9, 1, 7, 2),
	move(0, 1, 2, 2),
	move(7, 2, 9, 1),
	move(2, 2, 0, 1),
}

func TestThreefoldRepetitionIsDraw(t *testing.T) {
	s := NewSession(DefaultLimits())
	for _, m := range horseShuffle {
		mustPlay(t, s, m)
	}
	if s.Status() != StatusPlaying || s.RepetitionCount() != 2 {
		t.Fatalf("after one cycle: status=%v count=%d", s.Status(), s.RepetitionCount())
	}
	for i, m := range horseShuffle {
		mustPlay(t, s, m)
		if i < len(horseShuffle)-1 && s.Status() != StatusPlaying {
			t.Fatalf("draw declared too early at step %d", i)
		}
	}
	if s.Status() != StatusDraw || s.Reason() != ReasonRepetition {
		t.Fatalf("expected repetition draw, got %v (%s)", s.Status(), s.Reason())
	}
	if _, err := s.Play(move(9, 1, 7, 2)); !errors.Is(err, ErrGameOver) {
		t.Fatalf("play after game over: %v", err)
	}
}

func mateInOne() *xiangqi.Position {
	return xiangqi.MustDecode("3k5/8R/7R1/9/9/9/9/9/9/4K4 w")
}

func TestCheckmateDetected(t *testing.T) {
	s := NewSessionFrom(mateInOne(), DefaultLimits())
	mustPlay(t, s, move(2, 7, 0, 7))
	if s.Status() != StatusRedWin || s.Reason() != ReasonCheckmate {
		t.Fatalf("expected red checkmate win, got %v (%s)", s.Status(), s.Reason())
	}
}

func TestDrawCheckedBeforeCheckmate(t *testing.T) {
	s := NewSessionFrom(mateInOne(), Limits{MaxPlies: 1, NoCaptureLimit: 50, RepetitionLimit: 3})
	mustPlay(t, s, move(2, 7, 0, 7))
	if s.Status() != StatusDraw || s.Reason() != ReasonMoveLimit {
		t.Fatalf("move cap must win over checkmate, got %v (%s)", s.Status(), s.Reason())
	}
}

func TestStalemateLosesForSideToMove(t *testing.T) {
	pos := xiangqi.MustDecode("3k5/9/8R/9/9/9/9/9/9/4K4 w")
	s := NewSessionFrom(pos, DefaultLimits())
	mustPlay(t, s, move(2, 8, 1, 8))
	if s.Status() != StatusRedWin || s.Reason() != ReasonStalemate {
		t.Fatalf("expected stalemate loss for black, got %v (%s)", s.Status(), s.Reason())
	}
}

func TestNoCaptureLimit(t *testing.T) {
	s := NewSession(Limits{MaxPlies: 150, NoCaptureLimit: 3, RepetitionLimit: 3})
	mustPlay(t, s, move(9, 1, 7, 2))
	mustPlay(t, s, move(0, 1, 2, 2))
	if s.Status() != StatusPlaying {
		t.Fatalf("too early: %v", s.Status())
	}
	mustPlay(t, s, move(9, 7, 7, 6))
	if s.Status() != StatusDraw || s.Reason() != ReasonNoCapture {
		t.Fatalf("expected no-capture draw, got %v (%s)", s.Status(), s.Reason())
	}
}

func TestIllegalMoveDoesNotMutate(t *testing.T) {
	s := NewSession(DefaultLimits())
	before := s.Pos.Key()
	_, err := s.Play(move(9, 0, 5, 0))
	if !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("expected ErrIllegalMove, got %v", err)
	}
	if s.Pos.Key() != before || s.Ply() != 0 {
		t.Fatalf("illegal move mutated the session")
	}
	if s.IsValidMove(at(9, 0), at(5, 0)) {
		t.Fatalf("IsValidMove accepted a blocked chariot move")
	}
	if !s.IsValidMove(at(7, 1), at(7, 4)) {
		t.Fatalf("IsValidMove rejected the central cannon")
	}
}

func TestUndoRestoresCounters(t *testing.T) {
	s := NewSession(DefaultLimits())
	mustPlay(t, s, move(7, 1, 7, 4))
	mustPlay(t, s, move(0, 1, 2, 2))
	// 炮打中卒
	rec, err := s.Play(move(7, 4, 3, 4))
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if rec.Captured.Kind() != xiangqi.KindSoldier || s.NoCaptureCount != 0 {
		t.Fatalf("capture not recorded: %+v count=%d", rec, s.NoCaptureCount)
	}
	if _, err := s.Undo(); err != nil {
		t.Fatalf("undo: %v", err)
	}
	if s.NoCaptureCount != 2 || s.Ply() != 2 {
		t.Fatalf("undo counters: noCapture=%d ply=%d", s.NoCaptureCount, s.Ply())
	}
	if s.Pos.Hash != s.Pos.CalculateHash() {
		t.Fatalf("hash not restored")
	}
	if got := len(s.PositionHistory()); got != 3 {
		t.Fatalf("position history length %d", got)
	}
}

func TestMissingGeneralEndsGame(t *testing.T) {
	pos := xiangqi.MustDecode("9/9/9/9/9/9/9/9/9/4K4 b")
	s := NewSessionFrom(pos, DefaultLimits())
	if s.Status() != StatusRedWin || s.Reason() != ReasonGeneralMissing {
		t.Fatalf("expected red win by missing general, got %v (%s)", s.Status(), s.Reason())
	}
}

func TestDrawCheckedBeforeMissingGeneral(t *testing.T) {
	pos := xiangqi.MustDecode("9/9/9/9/9/9/9/9/9/4K4 b")
	s := NewSessionFrom(pos, Limits{MaxPlies: 150, NoCaptureLimit: 50, RepetitionLimit: 1})
	if s.Status() != StatusDraw || s.Reason() != ReasonRepetition {
		t.Fatalf("expected draw by repetition, got %v (%s)", s.Status(), s.Reason())
	}
}

func TestStatusStrings(t *testing.T) {
	want := map[Status]string{
		StatusPlaying:  "playing",
		StatusRedWin:   "red-win",
		StatusBlackWin: "black-win",
		StatusDraw:     "draw",
		StatusError:    "error",
	}
	for st, s := range want {
		if st.String() != s {
			t.Errorf("%d: got %q want %q", st, st.String(), s)
		}
	}
	if StatusRedWin.Outcome(xiangqi.Black) != -1 || StatusDraw.Outcome(xiangqi.Red) != 0 {
		t.Errorf("outcome mapping wrong")
	}
}
