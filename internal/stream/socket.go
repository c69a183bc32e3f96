package stream

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/satindergrewal/backline/internal/status"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// StatusSocket pushes a JSON snapshot to each WebSocket client whenever the
// board changes.
type StatusSocket struct {
	board    *status.Board
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

func NewStatusSocket(b *status.Board, logger zerolog.Logger) *StatusSocket {
	return &StatusSocket{
		board: b,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger.With().Str("component", "ws").Logger(),
	}
}

func (s *StatusSocket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug().Err(err).Msg("upgrade")
		return
	}
	defer conn.Close()

	updates, cancel := s.board.Subscribe()
	defer cancel()

	closed := make(chan struct{})
	go readPump(conn, closed)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	s.logger.Info().Str("remote", r.RemoteAddr).Msg("status client connected")
	defer s.logger.Info().Str("remote", r.RemoteAddr).Msg("status client disconnected")

	if err := s.push(conn); err != nil {
		return
	}
	for {
		select {
		case <-closed:
			return
		case <-updates:
			if err := s.push(conn); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *StatusSocket) push(conn *websocket.Conn) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(s.board.Snapshot())
}

// readPump drains client frames so pongs and close frames are processed.
func readPump(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
