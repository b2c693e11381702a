package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zeusync/worldcore/internal/core/observability/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

const maxSubscriptionSize = 64 * 1024

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if err := s.authorize(r); err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", log.Error(err))
		return
	}

	sess := newSession(conn, s.cfg.SendBuffer)
	if err = s.register(sess); err != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error()),
			time.Now().Add(s.cfg.WriteTimeout))
		_ = conn.Close()
		return
	}

	l := s.log.With(log.String("session", sess.id.String()), log.String("remote", conn.RemoteAddr().String()))
	l.Info("observer session opened")

	go s.writeLoop(sess, l)
	s.readLoop(sess, l)

	sess.close()
	s.unregister(sess)
	l.Info("observer session closed")
}

// readLoop handles subscription requests until the peer goes away.
func (s *Server) readLoop(sess *session, l log.Log) {
	sess.conn.SetReadLimit(maxSubscriptionSize)
	for {
		var req Subscription
		if err := sess.conn.ReadJSON(&req); err != nil {
			var closeErr *websocket.CloseError
			if !errors.As(err, &closeErr) {
				l.Debug("observer read failed", log.Error(err))
			}
			return
		}

		reply := Reply{Subscribed: req.Components}
		if err := s.subscribe(sess, req); err != nil {
			reply = Reply{Error: err.Error()}
		}
		frame, err := s.encode(reply)
		if err != nil {
			return
		}
		if !sess.enqueue(frame) {
			l.Warn("observer reply dropped")
		}
	}
}

func (s *Server) writeLoop(sess *session, l log.Log) {
	defer sess.conn.Close()
	for {
		select {
		case frame := <-sess.send:
			_ = sess.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := sess.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				l.Debug("observer write failed", log.Error(err))
				sess.close()
				return
			}
		case <-sess.done:
			_ = sess.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(s.cfg.WriteTimeout))
			return
		}
	}
}
