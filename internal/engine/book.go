package engine

import (
	"lukechampine.com/frand"

	"xiangqi/internal/xiangqi"
)

// BookPlies 只在前 8 步查开局库
const BookPlies = 8

type BookEntry struct {
	Ply  int
	From xiangqi.Coordinate
	To   xiangqi.Coordinate
	Name string
}

func (b BookEntry) Move() xiangqi.Move { return xiangqi.NewMove(b.From, b.To) }

func be(ply, fr, fc, tr, tc int, name string) BookEntry {
	return BookEntry{
		Ply:  ply,
		From: xiangqi.Coordinate{Row: fr, Col: fc},
		To:   xiangqi.Coordinate{Row: tr, Col: tc},
		Name: name,
	}
}

var openingBook = []BookEntry{
	// 红方：中炮、飞相、起马、进兵
	be(0, 7, 1, 7, 4, "炮二平五"),
	be(0, 7, 7, 7, 4, "炮八平五"),
	be(0, 9, 2, 7, 4, "相三进五"),
	be(0, 9, 6, 7, 4, "相七进五"),
	be(0, 9, 1, 7, 2, "马二进三"),
	be(0, 9, 7, 7, 6, "马八进七"),
	be(0, 6, 2, 5, 2, "兵三进一"),
	be(0, 6, 6, 5, 6, "兵七进一"),

	// 黑方应对：屏风马、反宫马、中炮、卒底炮
	be(1, 0, 1, 2, 2, "马2进3"),
	be(1, 0, 7, 2, 6, "马8进7"),
	be(1, 0, 1, 2, 0, "马2进1"),
	be(1, 0, 7, 2, 8, "马8进9"),
	be(1, 2, 1, 2, 4, "炮2平5"),
	be(1, 2, 7, 2, 4, "炮8平5"),
	be(1, 2, 1, 5, 1, "炮2进3"),
	be(1, 2, 7, 5, 7, "炮8进3"),

	be(2, 9, 1, 7, 2, "马二进三"),
	be(2, 9, 7, 7, 6, "马八进七"),
	be(2, 9, 0, 8, 0, "车一进一"),
	be(2, 9, 8, 8, 8, "车九进一"),

	be(3, 0, 0, 1, 0, "车1进1"),
	be(3, 0, 8, 1, 8, "车9进1"),
	be(3, 0, 2, 2, 4, "象3进5"),
	be(3, 0, 6, 2, 4, "象7进5"),
}

// BookCandidates 当前步数下所有合法的开局库着法
func BookCandidates(pos *xiangqi.Position, ply int) []BookEntry {
	if ply < 0 || ply >= BookPlies {
		return nil
	}
	var out []BookEntry
	for _, e := range openingBook {
		if e.Ply != ply {
			continue
		}
		if pos.IsLegalMove(e.Move(), pos.SideToMove) {
			out = append(out, e)
		}
	}
	return out
}

// BookMove 候选里随机挑一个
func BookMove(pos *xiangqi.Position, ply int) (BookEntry, bool) {
	c := BookCandidates(pos, ply)
	if len(c) == 0 {
		return BookEntry{}, false
	}
	return c[frand.Intn(len(c))], true
}

// Book 整张开局表的副本
func Book() []BookEntry {
	out := make([]BookEntry, len(openingBook))
	copy(out, openingBook)
	return out
}
