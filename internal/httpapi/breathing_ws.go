package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsIdleTimeout  = 120 * time.Second
)

type breathingCommand struct {
	Action string `json:"action"`
}

type wsError struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// handleBreathingWS streams phase updates and accepts start/stop commands.
// A cycle started by a connection is stopped when that connection goes away.
func (s *Server) handleBreathingWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Breathing websocket upgrade failed")
		return
	}
	defer conn.Close()

	updates, unsubscribe := s.breathing.Subscribe()
	defer unsubscribe()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	errorsOut := make(chan wsError, 4)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		write := func(v any) bool {
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(v); err != nil {
				cancel()
				return false
			}
			return true
		}
		if !write(s.breathing.Current()) {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case u, ok := <-updates:
				if !ok || !write(u) {
					return
				}
			case e := <-errorsOut:
				if !write(e) {
					return
				}
			}
		}
	}()

	// Generation of the run this connection started; zero when it owns none.
	var owned uint64
	conn.SetReadLimit(4096)
	_ = conn.SetReadDeadline(time.Now().Add(wsIdleTimeout))

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsIdleTimeout))
		if msgType != websocket.TextMessage {
			continue
		}

		var cmd breathingCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			s.queueWSError(errorsOut, "invalid_message", err.Error())
			continue
		}
		switch cmd.Action {
		case "start":
			if gen, ok := s.breathing.Start(context.Background()); ok {
				owned = gen
			}
		case "stop":
			s.breathing.Stop()
			owned = 0
		default:
			s.queueWSError(errorsOut, "unknown_action", "action must be start or stop")
		}
	}

	if owned != 0 {
		s.breathing.StopIfCurrent(owned)
	}
	cancel()
	<-writerDone
}

func (s *Server) queueWSError(out chan<- wsError, code, msg string) {
	select {
	case out <- wsError{Error: msg, Code: code}:
	default:
		s.logger.Debug().Str("code", code).Msg("Dropping websocket error, queue full")
	}
}
