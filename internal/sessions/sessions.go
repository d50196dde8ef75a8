// Package sessions hosts reasoning sessions in memory. Each session owns
// its own chain engine; the store never shares chain state between
// sessions and serialises submissions within one session.
package sessions

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fastertools/ftl-tool-think/internal/chain"
	"github.com/fastertools/ftl-tool-think/internal/telemetry"
	"github.com/fastertools/ftl-tool-think/pkg/models"
)

var tracer = otel.Tracer("ftl-tool-think/sessions")

// MaxIDLength bounds caller-supplied session ids.
const MaxIDLength = 128

// ErrNotFound is returned when a session does not exist.
type ErrNotFound struct {
	ID string
}

func (e *ErrNotFound) Error() string {
	return "session not found: " + e.ID
}

// ErrLimitReached is returned when creating a session would exceed the
// configured cap.
type ErrLimitReached struct {
	Max int
}

func (e *ErrLimitReached) Error() string {
	return fmt.Sprintf("session limit reached (%d)", e.Max)
}

// Options configures a MemorySessionStore.
type Options struct {
	MaxSessions     int // 0 means unlimited
	FeedSize        int
	DuplicatePolicy chain.DuplicatePolicy
	Clock           func() time.Time
}

// Session is one isolated reasoning chain.
type Session struct {
	id        string
	createdAt time.Time
	now       func() time.Time

	mu        sync.Mutex
	engine    *chain.Engine
	updatedAt time.Time

	feed *Feed
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// Feed returns the session's live feed.
func (s *Session) Feed() *Feed {
	return s.feed
}

// Submit runs one thought through the session's engine. Calls on the same
// session are serialised so chain order matches arrival order.
func (s *Session) Submit(ctx context.Context, in models.ThoughtInput) (*models.RenderedStep, error) {
	_, span := tracer.Start(ctx, "reasoning.submit", trace.WithAttributes(
		attribute.String("think.session", s.id),
		attribute.Int("think.thought_number", in.ThoughtNumber),
		attribute.Bool("think.is_revision", in.IsRevision),
		attribute.String("think.branch_id", in.BranchID),
	))
	defer span.End()

	s.mu.Lock()
	start := time.Now()
	out, err := s.engine.Submit(in)
	telemetry.SubmitDuration.Observe(time.Since(start).Seconds())
	s.updatedAt = s.now()
	s.mu.Unlock()

	if err != nil {
		kind := "internal"
		if ve, ok := chain.AsValidationError(err); ok {
			kind = string(ve.Kind)
		}
		telemetry.ValidationErrors.WithLabelValues(kind).Inc()
		span.SetStatus(codes.Error, err.Error())
		log.Debug().Str("session", s.id).Str("kind", kind).Err(err).Msg("Thought rejected")
		return nil, err
	}

	telemetry.ThoughtsSubmitted.WithLabelValues(string(out.Thought.Type), chainKind(out.Thought)).Inc()
	span.SetAttributes(
		attribute.Int("think.seq", out.Thought.Seq),
		attribute.Int("think.estimate", out.Summary.CurrentTotalEstimate),
		attribute.String("think.state", string(out.Summary.State)),
	)

	s.feed.Publish(models.FeedEvent{
		SessionID: s.id,
		Timestamp: out.Thought.SubmittedAt,
		Step:      *out,
	})

	log.Debug().
		Str("session", s.id).
		Int("seq", out.Thought.Seq).
		Int("number", out.Thought.Number).
		Str("branch", chain.BranchLabel(out.Thought.BranchID)).
		Str("state", string(out.Summary.State)).
		Msg("Thought appended")
	return out, nil
}

func chainKind(t models.Thought) string {
	switch {
	case t.IsRevision:
		return "revision"
	case !t.OnMainLine():
		return "branch"
	default:
		return "main"
	}
}

// Info returns the session header and summary.
func (s *Session) Info() models.SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.infoLocked()
}

func (s *Session) infoLocked() models.SessionInfo {
	return models.SessionInfo{
		ID:        s.id,
		CreatedAt: s.createdAt,
		UpdatedAt: s.updatedAt,
		Summary:   s.engine.Summary(),
	}
}

// Detail returns the session with its full chain and branch index.
func (s *Session) Detail() models.SessionDetail {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.SessionDetail{
		SessionInfo: s.infoLocked(),
		Thoughts:    s.engine.Thoughts(),
		Branches:    s.engine.Branches(),
	}
}

// Lineage returns the ordered view of one branch.
func (s *Session) Lineage(branchID string) ([]models.Thought, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Lineage(branchID)
}

func (s *Session) lastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}

// MemorySessionStore is a thread-safe in-memory session registry.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	opts     Options
}

// NewMemorySessionStore creates an empty store.
func NewMemorySessionStore(opts Options) *MemorySessionStore {
	if opts.FeedSize <= 0 {
		opts.FeedSize = 50
	}
	if opts.Clock == nil {
		opts.Clock = func() time.Time { return time.Now().UTC() }
	}
	if opts.DuplicatePolicy == "" {
		opts.DuplicatePolicy = chain.DuplicatePermit
	}
	return &MemorySessionStore{
		sessions: make(map[string]*Session),
		opts:     opts,
	}
}

// CreateSession starts a new session under a fresh id.
func (m *MemorySessionStore) CreateSession(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createLocked(uuid.New().String())
}

// GetOrCreateSession returns the session with id, creating it on first
// use. An empty id creates a session under a fresh id.
func (m *MemorySessionStore) GetOrCreateSession(ctx context.Context, id string) (*Session, bool, error) {
	id = strings.TrimSpace(id)
	if len(id) > MaxIDLength {
		return nil, false, fmt.Errorf("session id longer than %d characters", MaxIDLength)
	}
	if id != "" {
		m.mu.RLock()
		s, ok := m.sessions[id]
		m.mu.RUnlock()
		if ok {
			return s, false, nil
		}
	} else {
		id = uuid.New().String()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		return s, false, nil
	}
	s, err := m.createLocked(id)
	if err != nil {
		return nil, false, err
	}
	return s, true, nil
}

func (m *MemorySessionStore) createLocked(id string) (*Session, error) {
	if m.opts.MaxSessions > 0 && len(m.sessions) >= m.opts.MaxSessions {
		return nil, &ErrLimitReached{Max: m.opts.MaxSessions}
	}
	now := m.opts.Clock()
	s := &Session{
		id:        id,
		createdAt: now,
		updatedAt: now,
		now:       m.opts.Clock,
		engine:    chain.New(chain.WithDuplicatePolicy(m.opts.DuplicatePolicy), chain.WithClock(m.opts.Clock)),
		feed:      NewFeed(m.opts.FeedSize),
	}
	m.sessions[id] = s
	telemetry.SessionsLive.Set(float64(len(m.sessions)))
	log.Info().Str("session", id).Msg("Reasoning session created")
	return s, nil
}

// GetSession retrieves a session by id.
func (m *MemorySessionStore) GetSession(_ context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, &ErrNotFound{ID: id}
	}
	return s, nil
}

// ListSessions returns every session ordered by creation time.
func (m *MemorySessionStore) ListSessions(_ context.Context) []models.SessionInfo {
	m.mu.RLock()
	all := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.mu.RUnlock()

	out := make([]models.SessionInfo, 0, len(all))
	for _, s := range all {
		out = append(out, s.Info())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// DeleteSession removes a session and closes its feed.
func (m *MemorySessionStore) DeleteSession(_ context.Context, id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
		telemetry.SessionsLive.Set(float64(len(m.sessions)))
	}
	m.mu.Unlock()

	if !ok {
		return &ErrNotFound{ID: id}
	}
	s.feed.Close()
	return nil
}

// PurgeIdle removes sessions whose last activity is before cutoff and
// returns their ids.
func (m *MemorySessionStore) PurgeIdle(_ context.Context, cutoff time.Time) []string {
	m.mu.Lock()
	var purged []*Session
	for id, s := range m.sessions {
		if s.lastActive().Before(cutoff) {
			delete(m.sessions, id)
			purged = append(purged, s)
		}
	}
	telemetry.SessionsLive.Set(float64(len(m.sessions)))
	m.mu.Unlock()

	ids := make([]string, 0, len(purged))
	for _, s := range purged {
		s.feed.Close()
		ids = append(ids, s.id)
	}
	sort.Strings(ids)
	return ids
}

// Count returns the number of live sessions.
func (m *MemorySessionStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
