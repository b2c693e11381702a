package server

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/zeusync/worldcore/internal/core/models"
	"github.com/zeusync/worldcore/internal/core/observability/log"
	"github.com/zeusync/worldcore/internal/core/query"
	"github.com/zeusync/worldcore/internal/core/values"
)

// Subscription selects what a session receives, by component name. The
// projected components are implicitly required.
type Subscription struct {
	Components []string `json:"components"`
	Include    []string `json:"include,omitempty"`
	Exclude    []string `json:"exclude,omitempty"`
}

// Snapshot is one frame of a session's query.
type Snapshot struct {
	Tick    uint64        `json:"tick"`
	Version uint64        `json:"version"`
	Rows    []SnapshotRow `json:"rows"`
}

type SnapshotRow struct {
	Entity     models.EntityID `json:"entity"`
	Components map[string]any  `json:"components"`
}

// Reply acknowledges or rejects a subscription.
type Reply struct {
	Subscribed []string `json:"subscribed,omitempty"`
	Error      string   `json:"error,omitempty"`
}

type session struct {
	id   uuid.UUID
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once

	mu     sync.Mutex
	handle query.Handle
	names  []string
	active bool
}

func newSession(conn *websocket.Conn, buffer int) *session {
	return &session{
		id:   uuid.New(),
		conn: conn,
		send: make(chan []byte, buffer),
		done: make(chan struct{}),
	}
}

// owner scopes the session's query handles in the engine.
func (s *session) owner() string {
	return "observer/" + s.id.String()
}

func (s *session) enqueue(frame []byte) bool {
	select {
	case <-s.done:
		return true
	default:
	}
	select {
	case s.send <- frame:
		return true
	default:
		return false
	}
}

func (s *session) close() {
	s.once.Do(func() { close(s.done) })
}

func (srv *Server) subscribe(sess *session, req Subscription) error {
	if len(req.Components) == 0 {
		return fmt.Errorf("%w: no components", ErrInvalidSubscription)
	}
	components, err := srv.resolve(req.Components)
	if err != nil {
		return err
	}
	include, err := srv.resolve(req.Include)
	if err != nil {
		return err
	}
	exclude, err := srv.resolve(req.Exclude)
	if err != nil {
		return err
	}
	spec := query.Spec{
		Components: components,
		Include:    append(include, components...),
		Exclude:    exclude,
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.active {
		srv.world.Queries.Drop(sess.handle)
	}
	sess.handle = srv.world.Queries.CompileFor(sess.owner(), spec)
	sess.names = append([]string(nil), req.Components...)
	sess.active = true
	return nil
}

func (srv *Server) resolve(names []string) ([]models.ComponentIndex, error) {
	out := make([]models.ComponentIndex, 0, len(names))
	for _, name := range names {
		idx, ok := srv.world.Registry.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("%w: unknown component %q", ErrInvalidSubscription, name)
		}
		out = append(out, idx)
	}
	return out, nil
}

// snapshot evaluates the session's query and encodes the frame. It is false
// for a session that has not subscribed yet.
func (srv *Server) snapshot(sess *session, tick uint64) ([]byte, bool) {
	sess.mu.Lock()
	if !sess.active {
		sess.mu.Unlock()
		return nil, false
	}
	rows, _ := srv.world.Queries.EvaluateFor(sess.owner(), sess.handle)
	names := sess.names
	sess.mu.Unlock()

	snap := Snapshot{
		Tick:    tick,
		Version: srv.world.Store.Version(),
		Rows:    make([]SnapshotRow, 0, len(rows)),
	}
	for _, row := range rows {
		snap.Rows = append(snap.Rows, SnapshotRow{
			Entity:     row.Entity,
			Components: projection(names, row.Values),
		})
	}

	frame, err := srv.encode(snap)
	if err != nil {
		srv.log.Error("snapshot encoding failed",
			log.String("session", sess.id.String()), log.Uint64("tick", tick), log.Error(err))
		return nil, false
	}
	return frame, true
}

func projection(names []string, vals []values.Value) map[string]any {
	out := make(map[string]any, len(vals))
	for i, v := range vals {
		if i >= len(names) {
			break
		}
		out[names[i]] = values.Interface(v)
	}
	return out
}

func (srv *Server) encode(v any) ([]byte, error) {
	buf := srv.buffers.Get()
	defer srv.buffers.Put(buf)
	if err := json.NewEncoder(buf).Encode(v); err != nil {
		return nil, err
	}
	return append([]byte(nil), buf.Bytes()...), nil
}
