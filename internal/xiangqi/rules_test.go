package xiangqi

import "testing"

func sq(row, col int) int { return indexOf(row, col) }

func mv(fr, fc, tr, tc int) Move { return Move{From: sq(fr, fc), To: sq(tr, tc)} }

// 两将加若干子的残局
func sparsePosition(stm Side, pieces map[Coordinate]Piece) *Position {
	pos := NewEmptyPosition(stm)
	for c, pc := range pieces {
		pos.Board.Squares[c.Square()] = pc
	}
	pos.Hash = pos.CalculateHash()
	return pos
}

func TestInitialLegalMoveCounts(t *testing.T) {
	pos := NewInitialPosition()
	if got := len(pos.GenerateLegalMoves()); got != 44 {
		t.Fatalf("initial legal moves: got=%d want=44", got)
	}
	if got := perft(pos, 2); got != 1920 {
		t.Fatalf("perft(2): got=%d want=1920", got)
	}
}

func perft(pos *Position, depth int) int {
	if depth == 0 {
		return 1
	}
	n := 0
	for _, m := range pos.GenerateLegalMoves() {
		rec := pos.MakeMove(m)
		n += perft(pos, depth-1)
		pos.UnmakeMove(rec)
	}
	return n
}

func TestCentralCannonOpening(t *testing.T) {
	pos := NewInitialPosition()
	m := mv(7, 1, 7, 4)
	if !pos.IsLegalMove(m, Red) {
		t.Fatalf("central cannon should be legal")
	}
	before := pos.Hash
	beforeKey := pos.Key()
	next, ok := pos.ApplyMove(m)
	if !ok {
		t.Fatalf("apply failed")
	}
	if next.Hash == before {
		t.Fatalf("hash unchanged after move")
	}
	if next.Key() == beforeKey {
		t.Fatalf("key unchanged after move")
	}
	if pos.Hash != before {
		t.Fatalf("ApplyMove mutated the source position")
	}
}

func TestFlyingGeneralRejected(t *testing.T) {
	pos := sparsePosition(Red, map[Coordinate]Piece{
		{Row: 0, Col: 3}: MakePiece(Black, KindGeneral),
		{Row: 9, Col: 4}: MakePiece(Red, KindGeneral),
	})
	if pos.IsLegalMove(mv(9, 4, 9, 3), Red) {
		t.Fatalf("red general moving into opposition must be illegal")
	}
	if !pos.IsLegalMove(mv(9, 4, 8, 4), Red) {
		t.Fatalf("red general stepping forward on its own file should be legal")
	}

	pos.SideToMove = Black
	pos.Hash = pos.CalculateHash()
	if pos.IsLegalMove(mv(0, 3, 0, 4), Black) {
		t.Fatalf("black general moving into opposition must be illegal")
	}

	// 中间有子挡住就可以
	pos.Put(Coordinate{Row: 5, Col: 4}, MakePiece(Red, KindSoldier))
	if !pos.IsLegalMove(mv(0, 3, 0, 4), Black) {
		t.Fatalf("blocked file should allow the general move")
	}
}

func TestCannonNeedsExactlyOneScreen(t *testing.T) {
	base := map[Coordinate]Piece{
		{Row: 0, Col: 3}: MakePiece(Black, KindGeneral),
		{Row: 9, Col: 4}: MakePiece(Red, KindGeneral),
		{Row: 5, Col: 0}: MakePiece(Red, KindCannon),
		{Row: 5, Col: 6}: MakePiece(Black, KindChariot),
	}
	capture := mv(5, 0, 5, 6)

	t.Run("no screen", func(t *testing.T) {
		pos := sparsePosition(Red, base)
		if pos.IsLegalMove(capture, Red) {
			t.Fatalf("capture without screen must be illegal")
		}
	})
	t.Run("one screen", func(t *testing.T) {
		pos := sparsePosition(Red, base)
		pos.Put(Coordinate{Row: 5, Col: 3}, MakePiece(Black, KindSoldier))
		if !pos.IsLegalMove(capture, Red) {
			t.Fatalf("capture over one screen must be legal")
		}
	})
	t.Run("two screens", func(t *testing.T) {
		pos := sparsePosition(Red, base)
		pos.Put(Coordinate{Row: 5, Col: 2}, MakePiece(Red, KindSoldier))
		pos.Put(Coordinate{Row: 5, Col: 3}, MakePiece(Black, KindSoldier))
		if pos.IsLegalMove(capture, Red) {
			t.Fatalf("capture over two screens must be illegal")
		}
	})
}

func TestPieceGeometry(t *testing.T) {
	cases := []struct {
		name  string
		fen   string
		side  Side
		move  Move
		legal bool
	}{
		{"horse leg blocked", StartFEN, Red, mv(9, 1, 8, 3), false},
		{"horse open jump", StartFEN, Red, mv(9, 1, 7, 2), true},
		{"elephant diagonal", StartFEN, Red, mv(9, 2, 7, 4), true},
		{"elephant crosses river", "3k5/9/9/9/9/9/2B6/9/9/4K4 w", Red, mv(6, 2, 4, 4), false},
		{"elephant eye blocked", "3k5/9/9/9/9/9/9/9/3P5/2B1K4 w", Red, mv(9, 2, 7, 4), false},
		{"advisor leaves palace", "3k5/9/9/9/9/9/9/3A5/9/4K4 w", Red, mv(7, 3, 6, 2), false},
		{"advisor inside palace", "3k5/9/9/9/9/9/9/3A5/9/4K4 w", Red, mv(7, 3, 8, 4), true},
		{"general leaves palace", "4k4/9/9/9/9/9/9/3K5/9/9 w", Red, mv(7, 3, 7, 2), false},
		{"soldier sideways before river", StartFEN, Red, mv(6, 0, 6, 1), false},
		{"soldier forward", StartFEN, Red, mv(6, 0, 5, 0), true},
		{"soldier sideways after river", "4k4/9/9/9/4P4/9/9/9/9/3K5 w", Red, mv(4, 4, 4, 3), true},
		{"soldier backward", "4k4/9/9/9/4P4/9/9/9/9/3K5 w", Red, mv(4, 4, 5, 4), false},
		{"chariot path blocked", StartFEN, Red, mv(9, 0, 5, 0), false},
		{"chariot open file", StartFEN, Red, mv(9, 0, 7, 0), true},
		{"capture own piece", StartFEN, Red, mv(9, 0, 9, 1), false},
		{"wrong side", StartFEN, Red, mv(0, 0, 1, 0), false},
		{"empty source", StartFEN, Red, mv(5, 5, 4, 5), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pos := MustDecode(tc.fen)
			if got := pos.IsLegalMove(tc.move, tc.side); got != tc.legal {
				t.Fatalf("IsLegalMove(%s)=%v want %v\n%s", tc.move, got, tc.legal, pos.Board.String())
			}
		})
	}
}

func TestCheckmateAndStalemate(t *testing.T) {
	mate := sparsePosition(Black, map[Coordinate]Piece{
		{Row: 0, Col: 3}: MakePiece(Black, KindGeneral),
		{Row: 9, Col: 4}: MakePiece(Red, KindGeneral),
		{Row: 0, Col: 8}: MakePiece(Red, KindChariot),
		{Row: 1, Col: 8}: MakePiece(Red, KindChariot),
	})
	if !mate.IsInCheck(Black) {
		t.Fatalf("black should be in check")
	}
	if len(mate.GenerateLegalMoves()) != 0 {
		t.Fatalf("black should have no legal moves, got %v", mate.GenerateLegalMoves())
	}
	if !mate.IsCheckmate() {
		t.Fatalf("expected checkmate")
	}

	stale := sparsePosition(Black, map[Coordinate]Piece{
		{Row: 0, Col: 3}: MakePiece(Black, KindGeneral),
		{Row: 9, Col: 4}: MakePiece(Red, KindGeneral),
		{Row: 1, Col: 8}: MakePiece(Red, KindChariot),
	})
	if stale.IsInCheck(Black) {
		t.Fatalf("black should not be in check")
	}
	if !stale.IsStalemate() {
		t.Fatalf("expected stalemate, legal=%v", stale.GenerateLegalMoves())
	}
}

func TestInCheckMatchesAttackers(t *testing.T) {
	pos := NewInitialPosition()
	for ply := 0; ply < 60; ply++ {
		for _, side := range []Side{Red, Black} {
			gen := pos.GeneralSquare(side)
			want := gen >= 0 && len(pos.Attackers(gen, opposite(side))) > 0
			if got := pos.IsInCheck(side); got != want {
				t.Fatalf("ply %d side %v: IsInCheck=%v attackers=%v\n%s", ply, side, got, want, pos.Board.String())
			}
		}
		moves := pos.GenerateLegalMoves()
		if len(moves) == 0 {
			return
		}
		pos.MakeMove(moves[(ply*7)%len(moves)])
	}
}

func TestLegalMovesFrom(t *testing.T) {
	pos := NewInitialPosition()
	got := pos.LegalMovesFrom(sq(7, 1))
	// 炮二：左右平移 + 上行到河口 + 隔子打马
	if len(got) != 12 {
		t.Fatalf("cannon moves from (7,1): got=%d %v", len(got), got)
	}
	if pos.LegalMovesFrom(sq(4, 4)) != nil {
		t.Fatalf("empty square should have no moves")
	}
}
