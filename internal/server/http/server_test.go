package httpserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"xiangqi/internal/config"
	"xiangqi/internal/engine"
	xgame "xiangqi/internal/game"
	"xiangqi/internal/learn"
	"xiangqi/internal/nn"
	"xiangqi/internal/selfplay"
	"xiangqi/internal/store"
	"xiangqi/internal/xiangqi"
)

const mateInOneFEN = "3k5/8R/7R1/9/9/9/9/9/9/4K4 w"

type testEnv struct {
	srv     *Server
	h       http.Handler
	learner *learn.Learner
	ctrl    *selfplay.Controller
	cfg     *config.ConfigStore
}

func newTestEnv(t *testing.T, learning bool) *testEnv {
	t.Helper()
	l, err := learn.New(learn.Options{
		Topology: nn.NewTopology(xiangqi.FeatureSize, []int{8}),
		Store:    store.NewMemoryStore(),
		Logger:   zerolog.Nop(),
	})
	if err != nil {
		t.Fatal(err)
	}
	cfg := config.DefaultConfig()
	cfg.Difficulty = engine.Easy
	cfg.LearningEnabled = learning
	cs := config.NewConfigStore(cfg)

	limits := xgame.DefaultLimits()
	limits.MaxPlies = 4
	ctrl := selfplay.New(engine.NewEngine(), nil, selfplay.Options{
		RedDifficulty:   engine.Easy,
		BlackDifficulty: engine.Easy,
		Limits:          limits,
		Logger:          zerolog.Nop(),
	})
	srv := New(Deps{
		Learner:    l,
		Controller: ctrl,
		Config:     cs,
		Logger:     zerolog.Nop(),
	})
	return &testEnv{srv: srv, h: srv.Routes(), learner: l, ctrl: ctrl, cfg: cs}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func (e *testEnv) newGame(t *testing.T, fen string) StateResponse {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/games", NewGameRequest{FEN: fen})
	if rec.Code != http.StatusCreated {
		t.Fatalf("new game: %d %s", rec.Code, rec.Body.String())
	}
	return decode[StateResponse](t, rec)
}

func TestNewGameAndState(t *testing.T) {
	e := newTestEnv(t, false)
	st := e.newGame(t, "")
	if st.GameID == "" || st.Status != "playing" || st.ToMove != 0 {
		t.Fatalf("state %+v", st)
	}
	if len(st.LegalMoves) != 44 {
		t.Fatalf("legal moves %d, want 44", len(st.LegalMoves))
	}
	if len(st.Board) != xiangqi.Rows || st.Board[9][4] != "K" || st.Board[0][4] != "k" || st.Board[4][4] != "" {
		t.Fatalf("board %v", st.Board)
	}
	if st.Repetition != 1 {
		t.Fatalf("repetition %d", st.Repetition)
	}

	rec := e.do(t, http.MethodGet, "/api/games/"+st.GameID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get: %d", rec.Code)
	}
	if got := decode[StateResponse](t, rec); got.Position != st.Position {
		t.Fatalf("position %q != %q", got.Position, st.Position)
	}

	if rec := e.do(t, http.MethodGet, "/api/games/missing", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("missing game: %d", rec.Code)
	}
	if rec := e.do(t, http.MethodPost, "/api/games", NewGameRequest{FEN: "bad"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad fen: %d", rec.Code)
	}
	if rec := e.do(t, http.MethodDelete, "/api/games/"+st.GameID, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("delete: %d", rec.Code)
	}
}

func TestQuerySurface(t *testing.T) {
	e := newTestEnv(t, false)
	st := e.newGame(t, "")
	base := "/api/games/" + st.GameID

	valid := decode[ValidResponse](t, e.do(t, http.MethodPost, base+"/valid", ValidRequest{
		From: xiangqi.Coordinate{Row: 7, Col: 1}, To: xiangqi.Coordinate{Row: 7, Col: 4},
	}))
	if !valid.Valid {
		t.Fatal("central cannon should be valid")
	}
	valid = decode[ValidResponse](t, e.do(t, http.MethodPost, base+"/valid", ValidRequest{
		From: xiangqi.Coordinate{Row: 9, Col: 0}, To: xiangqi.Coordinate{Row: 5, Col: 0},
	}))
	if valid.Valid {
		t.Fatal("chariot cannot jump its own soldier")
	}

	moves := decode[MovesResponse](t, e.do(t, http.MethodGet, base+"/moves?side=1", nil))
	if moves.Side != 1 || len(moves.Moves) != 44 {
		t.Fatalf("black moves %d side %d", len(moves.Moves), moves.Side)
	}
	if rec := e.do(t, http.MethodGet, base+"/moves?side=7", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad side: %d", rec.Code)
	}

	status := decode[StatusResponse](t, e.do(t, http.MethodGet, base+"/status", nil))
	if status.Status != "playing" || status.Winner != -1 {
		t.Fatalf("status %+v", status)
	}

	label := decode[LabelResponse](t, e.do(t, http.MethodGet, "/api/label?row=9&col=0", nil))
	if label.Label != "一１０" || label.ICCS != "a0" {
		t.Fatalf("label %+v", label)
	}
	if rec := e.do(t, http.MethodGet, "/api/label?row=10&col=0", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("off-board label: %d", rec.Code)
	}
}

func TestPlayAndUndo(t *testing.T) {
	e := newTestEnv(t, false)
	st := e.newGame(t, "")
	base := "/api/games/" + st.GameID

	rec := e.do(t, http.MethodPost, base+"/move", PlayRequest{Move: MoveDTO{From: 9 * 9, To: 5 * 9}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("illegal move: %d", rec.Code)
	}
	if got := decode[StateResponse](t, e.do(t, http.MethodGet, base, nil)); got.Ply != 0 {
		t.Fatalf("illegal move mutated state: ply %d", got.Ply)
	}

	rec = e.do(t, http.MethodPost, base+"/move", PlayRequest{Move: MoveDTO{From: 7*9 + 1, To: 7*9 + 4}})
	if rec.Code != http.StatusOK {
		t.Fatalf("legal move: %d %s", rec.Code, rec.Body.String())
	}
	after := decode[StateResponse](t, rec)
	if after.Ply != 1 || after.ToMove != 1 || len(after.History) != 1 || after.History[0].Notation != "b2e2" {
		t.Fatalf("after move %+v", after)
	}

	rec = e.do(t, http.MethodPost, base+"/undo", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("undo: %d", rec.Code)
	}
	if got := decode[StateResponse](t, rec); got.Ply != 0 || got.Position != st.Position {
		t.Fatalf("undo state %+v", got)
	}
	if rec := e.do(t, http.MethodPost, base+"/undo", nil); rec.Code != http.StatusConflict {
		t.Fatalf("empty undo: %d", rec.Code)
	}
}

func TestAiMoveFromOpening(t *testing.T) {
	e := newTestEnv(t, true)
	st := e.newGame(t, "")
	rec := e.do(t, http.MethodPost, "/api/games/"+st.GameID+"/ai_move", AiMoveRequest{})
	if rec.Code != http.StatusOK {
		t.Fatalf("ai move: %d %s", rec.Code, rec.Body.String())
	}
	resp := decode[AiMoveResponse](t, rec)
	if resp.Source != string(engine.SourceBook) || resp.Book == "" {
		t.Fatalf("opening move source %q book %q", resp.Source, resp.Book)
	}
	if resp.State.Ply != 1 || resp.State.ToMove != 1 {
		t.Fatalf("state after ai move %+v", resp.State)
	}
	if n := e.learner.ExperienceCount(); n != 1 {
		t.Fatalf("experiences %d, want 1", n)
	}

	red := 0
	rec = e.do(t, http.MethodPost, "/api/games/"+st.GameID+"/ai_move", AiMoveRequest{Side: &red})
	if rec.Code != http.StatusConflict {
		t.Fatalf("wrong side: %d", rec.Code)
	}
	rec = e.do(t, http.MethodPost, "/api/games/"+st.GameID+"/ai_move", AiMoveRequest{Difficulty: "godlike"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad difficulty: %d", rec.Code)
	}
}

func TestUndoKeepsEngineRecord(t *testing.T) {
	e := newTestEnv(t, true)
	st := e.newGame(t, "")
	base := "/api/games/" + st.GameID
	g, err := e.srv.games.Get(st.GameID)
	if err != nil {
		t.Fatal(err)
	}
	recorded := func() int {
		g.Lock()
		defer g.Unlock()
		return g.Record.Len()
	}

	// 引擎执红走一步，人执黑跳马
	if rec := e.do(t, http.MethodPost, base+"/ai_move", nil); rec.Code != http.StatusOK {
		t.Fatalf("ai move: %d %s", rec.Code, rec.Body.String())
	}
	if rec := e.do(t, http.MethodPost, base+"/move", PlayRequest{Move: MoveDTO{From: 1, To: 2*9 + 2}}); rec.Code != http.StatusOK {
		t.Fatalf("human move: %d %s", rec.Code, rec.Body.String())
	}
	if n := recorded(); n != 1 {
		t.Fatalf("records before undo %d", n)
	}

	rec := e.do(t, http.MethodPost, base+"/undo", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("undo: %d", rec.Code)
	}
	if got := decode[StateResponse](t, rec); got.Ply != 1 {
		t.Fatalf("ply after undo %d", got.Ply)
	}
	if n := recorded(); n != 1 {
		t.Fatalf("engine record dropped by undoing the human move: %d left", n)
	}

	if rec := e.do(t, http.MethodPost, base+"/undo", nil); rec.Code != http.StatusOK {
		t.Fatalf("second undo: %d", rec.Code)
	}
	if n := recorded(); n != 0 {
		t.Fatalf("undone engine move still recorded: %d", n)
	}
}

func TestAiMoveMateCreditsWinner(t *testing.T) {
	e := newTestEnv(t, true)
	st := e.newGame(t, mateInOneFEN)
	base := "/api/games/" + st.GameID

	rec := e.do(t, http.MethodPost, base+"/ai_move", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("ai move: %d %s", rec.Code, rec.Body.String())
	}
	resp := decode[AiMoveResponse](t, rec)
	if resp.Source != string(engine.SourceMate) || resp.State.Status != "red-win" {
		t.Fatalf("source %q status %q", resp.Source, resp.State.Status)
	}
	exps := e.learner.Buffer().Tail(1)
	if len(exps) != 1 || !exps[0].Terminal || exps[0].Reward < 2*learn.TerminalReward {
		t.Fatalf("terminal experience %+v", exps)
	}

	if rec := e.do(t, http.MethodPost, base+"/ai_move", nil); rec.Code != http.StatusConflict {
		t.Fatalf("ai move after mate: %d", rec.Code)
	}
	rec = e.do(t, http.MethodPost, base+"/move", PlayRequest{Move: MoveDTO{From: 3, To: 4}})
	if rec.Code != http.StatusConflict {
		t.Fatalf("move after mate: %d", rec.Code)
	}
	status := decode[StatusResponse](t, e.do(t, http.MethodGet, base+"/status", nil))
	if status.Winner != 0 || !strings.HasPrefix(status.Message, "red wins") {
		t.Fatalf("status %+v", status)
	}
}

func TestForcedMate(t *testing.T) {
	e := newTestEnv(t, false)
	st := e.newGame(t, mateInOneFEN)
	res := decode[engine.ForcedMateResult](t, e.do(t, http.MethodGet, "/api/games/"+st.GameID+"/forced_mate?depth=3", nil))
	if !res.Found || res.Depth != 1 {
		t.Fatalf("forced mate %+v", res)
	}
	if rec := e.do(t, http.MethodGet, "/api/games/"+st.GameID+"/forced_mate?depth=x", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad depth: %d", rec.Code)
	}
}

func TestSettings(t *testing.T) {
	e := newTestEnv(t, false)
	got := decode[SettingsDTO](t, e.do(t, http.MethodGet, "/api/settings", nil))
	if got.Difficulty != "easy" || got.UseLearnedEval || got.LearningEnabled {
		t.Fatalf("initial settings %+v", got)
	}

	hard := "hard"
	on := true
	rec := e.do(t, http.MethodPut, "/api/settings", SettingsPatch{Difficulty: &hard, UseLearnedEval: &on, LearningEnabled: &on})
	if rec.Code != http.StatusOK {
		t.Fatalf("put: %d %s", rec.Code, rec.Body.String())
	}
	got = decode[SettingsDTO](t, rec)
	if got.Difficulty != "hard" || !got.UseLearnedEval || !got.LearningEnabled {
		t.Fatalf("updated settings %+v", got)
	}
	if e.cfg.Get().Difficulty != engine.Hard {
		t.Fatal("config store not updated")
	}
	if !e.srv.eng.UseLearned() || !e.ctrl.Engine().UseLearned() {
		t.Fatal("learned evaluation not applied to both engines")
	}

	bad := "impossible"
	if rec := e.do(t, http.MethodPut, "/api/settings", SettingsPatch{Difficulty: &bad}); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad difficulty: %d", rec.Code)
	}
}

func TestTrainingControl(t *testing.T) {
	e := newTestEnv(t, false)
	if rec := e.do(t, http.MethodPost, "/api/training/stop", nil); rec.Code != http.StatusConflict {
		t.Fatalf("stop idle: %d", rec.Code)
	}
	if rec := e.do(t, http.MethodPost, "/api/training/start", nil); rec.Code != http.StatusAccepted {
		t.Fatalf("start: %d %s", rec.Code, rec.Body.String())
	}
	if rec := e.do(t, http.MethodPost, "/api/training/start", nil); rec.Code != http.StatusConflict {
		t.Fatalf("second start: %d", rec.Code)
	}
	if rec := e.do(t, http.MethodDelete, "/api/training", nil); rec.Code != http.StatusConflict {
		t.Fatalf("clear while running: %d", rec.Code)
	}
	if rec := e.do(t, http.MethodPost, "/api/training/stop", nil); rec.Code != http.StatusOK {
		t.Fatalf("stop: %d", rec.Code)
	}

	status := decode[TrainingResponse](t, e.do(t, http.MethodGet, "/api/training", nil))
	if status.Progress.Running || status.Learner == nil {
		t.Fatalf("training status %+v", status)
	}
	if rec := e.do(t, http.MethodPost, "/api/training/save", nil); rec.Code != http.StatusOK {
		t.Fatalf("save: %d", rec.Code)
	}
	if rec := e.do(t, http.MethodDelete, "/api/training", nil); rec.Code != http.StatusOK {
		t.Fatalf("clear: %d", rec.Code)
	}
}

func TestTrainingWithoutController(t *testing.T) {
	srv := New(Deps{Logger: zerolog.Nop()})
	h := srv.Routes()
	for _, path := range []string{"/api/training/start", "/api/training/save"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, nil))
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("%s: %d", path, rec.Code)
		}
	}
}

func TestTrainingWebsocket(t *testing.T) {
	e := newTestEnv(t, false)
	ts := httptest.NewServer(e.h)
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws/training", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	read := func() wsMessage {
		t.Helper()
		_ = conn.SetReadDeadline(time.Now().Add(30 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatal(err)
		}
		var m wsMessage
		if err := json.Unmarshal(data, &m); err != nil {
			t.Fatal(err)
		}
		return m
	}
	if m := read(); m.Type != "progress" {
		t.Fatalf("first message %q", m.Type)
	}

	resp, err := http.Post(ts.URL+"/api/training/start", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	defer e.ctrl.Stop()

	for {
		m := read()
		if m.Type != selfplay.EventGameFinished {
			continue
		}
		var ev selfplay.Event
		if err := json.Unmarshal(m.Payload, &ev); err != nil {
			t.Fatal(err)
		}
		if ev.Result == nil || ev.Progress.GamesPlayed < 1 {
			t.Fatalf("finished event %+v", ev)
		}
		return
	}
}
