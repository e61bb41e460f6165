package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"xiangqi/internal/xiangqi"
)

func perft(pos *xiangqi.Position, depth int) int {
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

func main() {
	fen := flag.String("fen", "", "position to inspect (default: initial position)")
	depth := flag.Int("perft", 3, "perft depth")
	flag.Parse()

	pos := xiangqi.NewInitialPosition()
	if *fen != "" {
		p, err := xiangqi.DecodePosition(*fen)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		pos = p
	}

	fmt.Println(pos.Board.String())
	fmt.Println("FEN:", pos.Encode())
	fmt.Println("Side to move:", pos.SideToMove)
	fmt.Println("In check:", pos.IsInCheck(pos.SideToMove))
	fmt.Println("Pseudo moves:", len(pos.GeneratePseudoMoves()))
	fmt.Println("Legal moves:", len(pos.GenerateLegalMoves()))
	for d := 1; d <= *depth; d++ {
		start := time.Now()
		fmt.Printf("perft(%d) = %d  %v\n", d, perft(pos, d), time.Since(start))
	}
}
