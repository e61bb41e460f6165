package httpserver

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"xiangqi/internal/engine"
	xgame "xiangqi/internal/game"
	"xiangqi/internal/learn"
	"xiangqi/internal/server/game"
	"xiangqi/internal/xiangqi"
)

func (s *Server) handleNewGame(w http.ResponseWriter, r *http.Request) {
	var req NewGameRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	var start *xiangqi.Position
	if req.FEN != "" {
		pos, err := xiangqi.DecodePosition(req.FEN)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		start = pos
	}
	g := s.games.NewGame(start)
	g.Lock()
	defer g.Unlock()
	s.log.Info().Str("game", g.ID).Str("fen", g.Session.Pos.Encode()).Msg("new game")
	writeJSON(w, http.StatusCreated, stateOf(g))
}

// gameFrom 找不到时已经写好 404
func (s *Server) gameFrom(w http.ResponseWriter, r *http.Request) (*game.GameState, bool) {
	g, err := s.games.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return nil, false
	}
	return g, true
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	g, ok := s.gameFrom(w, r)
	if !ok {
		return
	}
	g.Lock()
	defer g.Unlock()
	writeJSON(w, http.StatusOK, stateOf(g))
}

func (s *Server) handleDeleteGame(w http.ResponseWriter, r *http.Request) {
	if err := s.games.Delete(chi.URLParam(r, "id")); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	g, ok := s.gameFrom(w, r)
	if !ok {
		return
	}
	g.Lock()
	defer g.Unlock()
	st := g.Session.Status()
	writeJSON(w, http.StatusOK, StatusResponse{
		Status:  st.String(),
		Reason:  g.Session.Reason(),
		Message: xgame.Message(st, g.Session.Reason()),
		Winner:  sideToInt(st.Winner()),
	})
}

func (s *Server) handleMoves(w http.ResponseWriter, r *http.Request) {
	g, ok := s.gameFrom(w, r)
	if !ok {
		return
	}
	g.Lock()
	defer g.Unlock()
	side := g.Session.SideToMove()
	if v := r.URL.Query().Get("side"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || (n != 0 && n != 1) {
			writeError(w, http.StatusBadRequest, "side must be 0 or 1")
			return
		}
		side = intToSide(n)
	}
	writeJSON(w, http.StatusOK, MovesResponse{
		Side:  sideToInt(side),
		Moves: movesToDTO(g.Session.LegalMoves(side)),
	})
}

func (s *Server) handleValid(w http.ResponseWriter, r *http.Request) {
	g, ok := s.gameFrom(w, r)
	if !ok {
		return
	}
	var req ValidRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	g.Lock()
	defer g.Unlock()
	writeJSON(w, http.StatusOK, ValidResponse{Valid: g.Session.IsValidMove(req.From, req.To)})
}

func (s *Server) handleLabel(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	row, err1 := strconv.Atoi(q.Get("row"))
	col, err2 := strconv.Atoi(q.Get("col"))
	c := xiangqi.Coordinate{Row: row, Col: col}
	if err1 != nil || err2 != nil || !c.Valid() {
		writeError(w, http.StatusBadRequest, "row must be 0..9 and col 0..8")
		return
	}
	writeJSON(w, http.StatusOK, LabelResponse{Row: row, Col: col, Label: c.HumanLabel(), ICCS: c.String()})
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	g, ok := s.gameFrom(w, r)
	if !ok {
		return
	}
	var req PlayRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	g.Lock()
	defer g.Unlock()
	if _, err := g.Session.Play(dtoToMove(req.Move)); err != nil {
		writePlayError(w, err)
		return
	}
	g.Touch()
	s.finishIfTerminal(r.Context(), g)
	writeJSON(w, http.StatusOK, stateOf(g))
}

func writePlayError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, xgame.ErrGameOver):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, xgame.ErrIllegalMove):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	g, ok := s.gameFrom(w, r)
	if !ok {
		return
	}
	g.Lock()
	defer g.Unlock()
	if _, err := g.Session.Undo(); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	// 悔掉的着法不再参与终局回填，棋盘上还在的引擎着法保留
	g.Record.Truncate(g.Session.Ply())
	g.Touch()
	writeJSON(w, http.StatusOK, stateOf(g))
}

// handleAiMove 让引擎替一方走一步。引擎正在算时返回 409
func (s *Server) handleAiMove(w http.ResponseWriter, r *http.Request) {
	g, ok := s.gameFrom(w, r)
	if !ok {
		return
	}
	var req AiMoveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	settings := s.cfg.Get()
	diff := settings.Difficulty
	if req.Difficulty != "" {
		d, err := engine.ParseDifficulty(req.Difficulty)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		diff = d
	}

	g.Lock()
	defer g.Unlock()
	sess := g.Session
	if sess.Status().Terminal() {
		writeError(w, http.StatusConflict, xgame.ErrGameOver.Error())
		return
	}
	side := sess.SideToMove()
	if req.Side != nil && intToSide(*req.Side) != side {
		writeError(w, http.StatusConflict, "not "+intToSide(*req.Side).String()+"'s turn")
		return
	}

	before := sess.Pos.Clone()
	res, err := s.eng.ChooseMove(before.Clone(), engine.ConfigFor(diff, sess.Ply()))
	if err != nil {
		// ErrEngineBusy 或 ErrNoMoves
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if _, err := sess.Play(res.BestMove); err != nil {
		s.log.Error().Err(err).Str("game", g.ID).Str("move", res.BestMove.String()).Msg("engine produced an unplayable move")
		writePlayError(w, err)
		return
	}
	g.Touch()

	ctx := context.WithoutCancel(r.Context())
	if s.learning(settings.LearningEnabled) {
		s.learner.Record(ctx, before, res.BestMove, side, sess.Pos, sess.Status(), sess.Ply()-1, &g.Record)
	}
	s.finishIfTerminal(ctx, g)

	s.log.Info().
		Str("game", g.ID).
		Str("side", side.String()).
		Str("move", res.BestMove.String()).
		Str("source", string(res.Source)).
		Int("score", res.Score).
		Int("depth", res.Depth).
		Int64("nodes", res.Nodes).
		Dur("took", res.TimeUsed).
		Msg("ai move")
	writeJSON(w, http.StatusOK, AiMoveResponse{
		BestMove: moveToDTO(res.BestMove),
		Score:    res.Score,
		Depth:    res.Depth,
		Nodes:    res.Nodes,
		Source:   string(res.Source),
		Book:     res.BookName,
		TimedOut: res.TimedOut,
		TimeMs:   res.TimeUsed.Milliseconds(),
		State:    stateOf(g),
	})
}

func (s *Server) learning(enabled bool) bool {
	return enabled && s.learner != nil
}

// finishIfTerminal 终局时给引擎走过的每一步回填胜负，再训练一批。调用方持有 g 的锁
func (s *Server) finishIfTerminal(ctx context.Context, g *game.GameState) {
	st := g.Session.Status()
	if !st.Terminal() || g.Record.Len() == 0 || !s.learning(s.cfg.Get().LearningEnabled) {
		return
	}
	// 记录里只有引擎的着法，按各自一方的胜负回填
	for _, side := range []xiangqi.Side{xiangqi.Red, xiangqi.Black} {
		s.learner.AssignFinalRewards(&g.Record, float64(st.Outcome(side)*learn.TerminalReward), side)
	}
	g.Record.Reset()
	if _, err := s.learner.Learn(); err != nil && !errors.Is(err, learn.ErrNotEnoughSamples) {
		s.log.Warn().Err(err).Str("game", g.ID).Msg("learning after game skipped")
	}
	if err := s.learner.Save(ctx); err != nil {
		s.log.Error().Err(err).Msg("save after game failed")
	}
}

func (s *Server) handleForcedMate(w http.ResponseWriter, r *http.Request) {
	g, ok := s.gameFrom(w, r)
	if !ok {
		return
	}
	depth := 0
	if v := r.URL.Query().Get("depth"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "bad depth")
			return
		}
		depth = n
	}
	g.Lock()
	pos := g.Session.Pos.Clone()
	g.Unlock()
	writeJSON(w, http.StatusOK, engine.FindForcedMate(pos, depth))
}
