package server

import (
	"os"
	"sync"
	"time"

	"github.com/MeKo-Tech/ucrop/internal/engine"
	"github.com/MeKo-Tech/ucrop/internal/gesture"
	"github.com/MeKo-Tech/ucrop/internal/overlay"
	"github.com/MeKo-Tech/ucrop/internal/source"
)

// session is one interactive crop. mu serializes every engine call.
type session struct {
	id      string
	src     *source.Handle
	engine  *engine.Engine
	created time.Time

	mu       sync.Mutex
	lastSeen time.Time
	attached bool
	events   []string
	results  map[string]string
}

func newSession(id string, src *source.Handle, e *engine.Engine, now time.Time) *session {
	sess := &session{
		id:       id,
		src:      src,
		engine:   e,
		created:  now,
		lastSeen: now,
		results:  make(map[string]string),
	}
	// Listeners run inside engine calls, so mu is already held.
	e.OnBoundsCorrected(func(gesture.Event) { sess.queueEvent("bounds_corrected") })
	e.OnWindowEvent(func(ev overlay.Event) { sess.queueEvent(ev.Kind.String()) })
	return sess
}

func (s *session) queueEvent(name string) {
	if s.attached {
		s.events = append(s.events, name)
	}
}

// takeEvents returns and clears queued notifications. Callers hold mu.
func (s *session) takeEvents() []string {
	ev := s.events
	s.events = nil
	return ev
}

// attach marks a websocket as connected; only one may be at a time.
func (s *session) attach() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attached {
		return false
	}
	s.attached = true
	s.events = nil
	return true
}

func (s *session) detach(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attached = false
	s.events = nil
	s.lastSeen = now
}

func (s *session) addResult(id, path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[id] = path
}

func (s *session) result(id string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.results[id]
	return p, ok
}

// close stops the engine and deletes written results.
func (s *session) close() {
	s.engine.Close()
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, p := range s.results {
		_ = os.Remove(p)
		delete(s.results, id)
	}
}

type sessionStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[string]*session
}

func newSessionStore(ttl time.Duration) *sessionStore {
	return &sessionStore{ttl: ttl, now: time.Now, sessions: make(map[string]*session)}
}

func (st *sessionStore) add(sess *session) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.sessions[sess.id] = sess
	sessionsActive.Set(float64(len(st.sessions)))
}

// get returns the session and refreshes its expiry.
func (st *sessionStore) get(id string) (*session, bool) {
	st.mu.Lock()
	sess, ok := st.sessions[id]
	st.mu.Unlock()
	if !ok {
		return nil, false
	}
	sess.mu.Lock()
	sess.lastSeen = st.now()
	sess.mu.Unlock()
	return sess, true
}

func (st *sessionStore) remove(id string) bool {
	st.mu.Lock()
	sess, ok := st.sessions[id]
	delete(st.sessions, id)
	sessionsActive.Set(float64(len(st.sessions)))
	st.mu.Unlock()
	if ok {
		sess.close()
	}
	return ok
}

func (st *sessionStore) expiry(sess *session) time.Time {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.lastSeen.Add(st.ttl)
}

// sweep closes sessions idle for longer than the ttl. Attached sessions
// never expire.
func (st *sessionStore) sweep() int {
	now := st.now()
	var expired []*session
	st.mu.Lock()
	for id, sess := range st.sessions {
		sess.mu.Lock()
		idle := !sess.attached && now.Sub(sess.lastSeen) > st.ttl
		sess.mu.Unlock()
		if idle {
			expired = append(expired, sess)
			delete(st.sessions, id)
		}
	}
	sessionsActive.Set(float64(len(st.sessions)))
	st.mu.Unlock()

	for _, sess := range expired {
		sess.close()
	}
	return len(expired)
}

func (st *sessionStore) count() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

func (st *sessionStore) closeAll() {
	st.mu.Lock()
	all := st.sessions
	st.sessions = make(map[string]*session)
	sessionsActive.Set(0)
	st.mu.Unlock()
	for _, sess := range all {
		sess.close()
	}
}
