package engine

import "xiangqi/internal/xiangqi"

const ttCap = 1 << 20

// ttEntry 只记最佳着法给排序用。分数跟根节点距离有关（杀棋分），不从表里直接取。
type ttEntry struct {
	Depth int
	Move  xiangqi.Move
}

func (e *Engine) storeTT(key uint64, depth int, mv xiangqi.Move) {
	if len(e.tt) > ttCap {
		e.tt = make(map[uint64]ttEntry, 1<<16)
	}
	old, ok := e.tt[key]
	if !ok || depth >= old.Depth {
		e.tt[key] = ttEntry{Depth: depth, Move: mv}
	}
}

func (e *Engine) ttMove(key uint64) xiangqi.Move {
	if entry, ok := e.tt[key]; ok {
		return entry.Move
	}
	return xiangqi.Move{}
}

// ClearTT 换对局时清空
func (e *Engine) ClearTT() {
	e.tt = make(map[uint64]ttEntry, 1<<16)
}
