package game

import "xiangqi/internal/xiangqi"

type Status int

const (
	StatusPlaying Status = iota
	StatusRedWin
	StatusBlackWin
	StatusDraw
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusPlaying:
		return "playing"
	case StatusRedWin:
		return "red-win"
	case StatusBlackWin:
		return "black-win"
	case StatusDraw:
		return "draw"
	case StatusError:
		return "error"
	}
	return "unknown"
}

func (s Status) Terminal() bool { return s != StatusPlaying }

// Winner 胜方，和棋或未结束返回 NoSide
func (s Status) Winner() xiangqi.Side {
	switch s {
	case StatusRedWin:
		return xiangqi.Red
	case StatusBlackWin:
		return xiangqi.Black
	}
	return xiangqi.NoSide
}

// Outcome 从 side 的角度：赢 +1，输 -1，其他 0
func (s Status) Outcome(side xiangqi.Side) int {
	w := s.Winner()
	switch {
	case w == xiangqi.NoSide:
		return 0
	case w == side:
		return 1
	default:
		return -1
	}
}

func winFor(side xiangqi.Side) Status {
	if side == xiangqi.Red {
		return StatusRedWin
	}
	return StatusBlackWin
}

// 终局原因
const (
	ReasonCheckmate      = "checkmate"
	ReasonStalemate      = "stalemate"
	ReasonGeneralMissing = "general missing"
	ReasonMoveLimit      = "move limit"
	ReasonNoCapture      = "no-capture limit"
	ReasonRepetition     = "threefold repetition"
	ReasonTimeout        = "timeout"
)

// Message 给界面看的一句话
func Message(st Status, reason string) string {
	switch st {
	case StatusPlaying:
		return "playing"
	case StatusRedWin:
		return "red wins by " + reason
	case StatusBlackWin:
		return "black wins by " + reason
	case StatusDraw:
		return "draw by " + reason
	}
	if reason == "" {
		return "error"
	}
	return "error: " + reason
}
