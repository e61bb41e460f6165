package httpserver

import (
	"time"

	xgame "xiangqi/internal/game"
	"xiangqi/internal/server/game"
	"xiangqi/internal/xiangqi"
)

// 前端用的招法结构，from/to 是 0..89 的格子编号
type MoveDTO struct {
	From int `json:"from"`
	To   int `json:"to"`
}

func dtoToMove(m MoveDTO) xiangqi.Move {
	return xiangqi.Move{From: m.From, To: m.To}
}

func moveToDTO(m xiangqi.Move) MoveDTO {
	return MoveDTO{From: m.From, To: m.To}
}

func movesToDTO(ms []xiangqi.Move) []MoveDTO {
	out := make([]MoveDTO, len(ms))
	for i, m := range ms {
		out[i] = moveToDTO(m)
	}
	return out
}

func sideToInt(s xiangqi.Side) int {
	switch s {
	case xiangqi.Red:
		return 0
	case xiangqi.Black:
		return 1
	default:
		return -1
	}
}

func intToSide(v int) xiangqi.Side {
	if v == 1 {
		return xiangqi.Black
	}
	return xiangqi.Red
}

// NewGame 请求，fen 为空从开局开始
type NewGameRequest struct {
	FEN string `json:"fen"`
}

type HistoryDTO struct {
	Move     MoveDTO `json:"move"`
	Notation string  `json:"notation"`
	Piece    string  `json:"piece"`
	Captured string  `json:"captured,omitempty"`
}

// StateResponse 新建、刷新、走子后都返回这个
type StateResponse struct {
	GameID     string       `json:"game_id"`
	Board      [][]string   `json:"board"` // 10 行 9 列，空格为 ""
	Position   string       `json:"position"`
	ToMove     int          `json:"to_move"` // 0=红, 1=黑
	InCheck    bool         `json:"in_check"`
	LegalMoves []MoveDTO    `json:"legal_moves"`
	Status     string       `json:"status"`
	Reason     string       `json:"reason,omitempty"`
	Message    string       `json:"message,omitempty"`
	Ply        int          `json:"ply"`
	Repetition int          `json:"repetition"`
	History    []HistoryDTO `json:"history"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// Play 请求
type PlayRequest struct {
	Move MoveDTO `json:"move"`
}

type ValidRequest struct {
	From xiangqi.Coordinate `json:"from"`
	To   xiangqi.Coordinate `json:"to"`
}

type ValidResponse struct {
	Valid bool `json:"valid"`
}

type MovesResponse struct {
	Side  int       `json:"side"`
	Moves []MoveDTO `json:"moves"`
}

type StatusResponse struct {
	Status  string `json:"status"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`
	Winner  int    `json:"winner"`
}

type LabelResponse struct {
	Row   int    `json:"row"`
	Col   int    `json:"col"`
	Label string `json:"label"`
	ICCS  string `json:"iccs"`
}

// AiMoveRequest side 省略时替当前行棋方走
type AiMoveRequest struct {
	Side       *int   `json:"side,omitempty"`
	Difficulty string `json:"difficulty,omitempty"`
}

type AiMoveResponse struct {
	BestMove MoveDTO       `json:"best_move"`
	Score    int           `json:"score"`
	Depth    int           `json:"depth"`
	Nodes    int64         `json:"nodes"`
	Source   string        `json:"source"`
	Book     string        `json:"book,omitempty"`
	TimedOut bool          `json:"timed_out"`
	TimeMs   int64         `json:"time_ms"`
	State    StateResponse `json:"state"`
}

type SettingsDTO struct {
	Difficulty      string `json:"difficulty"`
	UseLearnedEval  bool   `json:"use_learned_eval"`
	LearningEnabled bool   `json:"learning_enabled"`
}

// SettingsPatch 只改传了的字段
type SettingsPatch struct {
	Difficulty      *string `json:"difficulty,omitempty"`
	UseLearnedEval  *bool   `json:"use_learned_eval,omitempty"`
	LearningEnabled *bool   `json:"learning_enabled,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func boardToDTO(b *xiangqi.Board) [][]string {
	out := make([][]string, xiangqi.Rows)
	for r := 0; r < xiangqi.Rows; r++ {
		row := make([]string, xiangqi.Cols)
		for c := 0; c < xiangqi.Cols; c++ {
			pc := b.Squares[xiangqi.Coordinate{Row: r, Col: c}.Square()]
			if !pc.IsEmpty() {
				row[c] = pc.Letter()
			}
		}
		out[r] = row
	}
	return out
}

// stateOf 调用方需持有 g 的锁
func stateOf(g *game.GameState) StateResponse {
	s := g.Session
	hist := make([]HistoryDTO, len(s.History))
	for i, rec := range s.History {
		h := HistoryDTO{
			Move:     moveToDTO(rec.Move),
			Notation: rec.Move.String(),
			Piece:    rec.Moved.Name(),
		}
		if !rec.Captured.IsEmpty() {
			h.Captured = rec.Captured.Name()
		}
		hist[i] = h
	}
	legal := []xiangqi.Move{}
	if !s.Status().Terminal() {
		legal = s.LegalMoves(s.SideToMove())
	}
	return StateResponse{
		GameID:     g.ID,
		Board:      boardToDTO(&s.Pos.Board),
		Position:   s.Pos.Encode(),
		ToMove:     sideToInt(s.SideToMove()),
		InCheck:    s.Pos.IsInCheck(s.SideToMove()),
		LegalMoves: movesToDTO(legal),
		Status:     s.Status().String(),
		Reason:     s.Reason(),
		Message:    xgame.Message(s.Status(), s.Reason()),
		Ply:        s.Ply(),
		Repetition: s.RepetitionCount(),
		History:    hist,
		UpdatedAt:  g.UpdatedAt,
	}
}
