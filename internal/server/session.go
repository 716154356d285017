package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pauljones0/cph-deal-finder/internal/metrics"
	"github.com/pauljones0/cph-deal-finder/internal/models"
	"github.com/pauljones0/cph-deal-finder/internal/pipeline"
)

const (
	sessionCookie = "cph_session"
	// positionMaxAge is how long a shared position is reused.
	positionMaxAge = 5 * time.Minute
)

// session is one viewer's server-side state.
type session struct {
	id    string
	pager *pipeline.Pager

	mu       sync.Mutex
	position *models.Coordinate
	posAt    time.Time
	lastSeen time.Time
}

func (s *session) setPosition(c models.Coordinate, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.position = &c
	s.posAt = now
}

// recentPosition returns the last shared position if it is still fresh.
func (s *session) recentPosition(now time.Time) (models.Coordinate, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.position == nil || now.Sub(s.posAt) > positionMaxAge {
		return models.Coordinate{}, false
	}
	return *s.position, true
}

func (s *session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// sessions tracks viewers by cookie.
type sessions struct {
	mu       sync.Mutex
	byID     map[string]*session
	pageSize int
	idle     time.Duration
	now      func() time.Time
}

func newSessions(pageSize int, idle time.Duration) *sessions {
	return &sessions{
		byID:     make(map[string]*session),
		pageSize: pageSize,
		idle:     idle,
		now:      time.Now,
	}
}

// get returns the caller's session, creating one and setting the cookie when needed.
func (s *sessions) get(w http.ResponseWriter, r *http.Request) *session {
	now := s.now()
	if c, err := r.Cookie(sessionCookie); err == nil {
		if _, perr := uuid.Parse(c.Value); perr == nil {
			s.mu.Lock()
			sess, ok := s.byID[c.Value]
			if !ok {
				sess = s.newLocked(c.Value)
			}
			s.mu.Unlock()
			sess.touch(now)
			return sess
		}
	}

	id := uuid.NewString()
	s.mu.Lock()
	sess := s.newLocked(id)
	s.mu.Unlock()
	sess.touch(now)

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int((30 * 24 * time.Hour).Seconds()),
	})
	return sess
}

func (s *sessions) newLocked(id string) *session {
	sess := &session{id: id, pager: pipeline.NewPager(s.pageSize)}
	s.byID[id] = sess
	metrics.ActiveSessions.Set(float64(len(s.byID)))
	return sess
}

// sweep drops sessions idle for longer than the configured window.
func (s *sessions) sweep() int {
	cutoff := s.now().Add(-s.idle)
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, sess := range s.byID {
		if sess.idleSince().Before(cutoff) {
			delete(s.byID, id)
			removed++
		}
	}
	metrics.ActiveSessions.Set(float64(len(s.byID)))
	return removed
}

func (s *sessions) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

// runSweeper sweeps every interval until ctx is done.
func (s *sessions) runSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.sweep(); n > 0 {
				slog.Debug("Swept idle sessions", "removed", n)
			}
		}
	}
}
