package httpserver

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"xiangqi/internal/selfplay"
)

const wsIdlePingInterval = 30 * time.Second

type wsMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// handleTrainingWS 推送自对弈事件；连上时先发一份当前进度
func (s *Server) handleTrainingWS(w http.ResponseWriter, r *http.Request) {
	if s.controller == nil {
		writeError(w, http.StatusServiceUnavailable, "self-play is not configured")
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	events, unsubscribe := s.controller.Subscribe()
	defer unsubscribe()

	// 读循环只用来发现对端关闭
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	hello := selfplay.Event{Type: "progress", Progress: s.controller.Progress()}
	if err := writeEvent(conn, hello); err != nil {
		return
	}
	if err := writeWSWithHeartbeat(conn, events, closed); err != nil {
		s.log.Debug().Err(err).Msg("training feed closed")
	}
}

func writeEvent(conn *websocket.Conn, e selfplay.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	msg, err := json.Marshal(wsMessage{Type: e.Type, Payload: payload})
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, msg)
}

func writeWSWithHeartbeat(conn *websocket.Conn, events <-chan selfplay.Event, closed <-chan struct{}) error {
	ticker := time.NewTicker(wsIdlePingInterval)
	defer ticker.Stop()
	lastWrite := time.Now()
	ping, _ := json.Marshal(wsMessage{Type: "ping"})

	for {
		select {
		case <-closed:
			return nil
		case e, ok := <-events:
			if !ok {
				return nil
			}
			if err := writeEvent(conn, e); err != nil {
				return err
			}
			lastWrite = time.Now()
		case <-ticker.C:
			if time.Since(lastWrite) < wsIdlePingInterval {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, ping); err != nil {
				return err
			}
			lastWrite = time.Now()
		}
	}
}
