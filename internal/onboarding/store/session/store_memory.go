package session

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/gramv/onboardingsoftware-sub000/internal/onboarding/models"
	id "github.com/gramv/onboardingsoftware-sub000/pkg/domain"
	"github.com/gramv/onboardingsoftware-sub000/pkg/platform/sentinel"
)

// Error Contract:
// - ErrNotFound when the session does not exist
// - ErrAlreadyUsed when a token hash is already bound to another session
// - ErrConflict when the candidate already holds a live session
// - errors returned by an Execute validate callback are passed through unchanged

// InMemoryStore keeps sessions in memory for tests/dev. Every read returns a
// deep copy so callers never share state with the store.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[id.SessionID]*models.Session
	byToken  map[string]id.SessionID

	lockMu     sync.Mutex
	candidates map[string]*candidateLock
}

type candidateLock struct {
	mu   sync.Mutex
	refs int
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions:   make(map[id.SessionID]*models.Session),
		byToken:    make(map[string]id.SessionID),
		candidates: make(map[string]*candidateLock),
	}
}

// LockCandidate serializes issuance for one candidate until release is
// called. Entries are dropped once no caller holds or waits on them.
func (s *InMemoryStore) LockCandidate(ctx context.Context, orgID id.OrganizationID, email string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := candidateKey(orgID, email)

	s.lockMu.Lock()
	l, ok := s.candidates[key]
	if !ok {
		l = &candidateLock{}
		s.candidates[key] = l
	}
	l.refs++
	s.lockMu.Unlock()

	l.mu.Lock()
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Unlock()
			s.lockMu.Lock()
			l.refs--
			if l.refs == 0 {
				delete(s.candidates, key)
			}
			s.lockMu.Unlock()
		})
	}, nil
}

func candidateKey(orgID id.OrganizationID, email string) string {
	return orgID.String() + "|" + strings.ToLower(strings.TrimSpace(email))
}

func (s *InMemoryStore) Create(_ context.Context, sess *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byToken[sess.TokenHash]; ok {
		return fmt.Errorf("token hash already bound: %w", sentinel.ErrAlreadyUsed)
	}
	if _, ok := s.sessions[sess.ID]; ok {
		return fmt.Errorf("session %s already exists: %w", sess.ID, sentinel.ErrConflict)
	}
	if sess.Status.HoldsLiveSlot() {
		email := sess.Candidate.NormalizedEmail()
		for _, other := range s.sessions {
			if other.OrganizationID == sess.OrganizationID && other.Status.HoldsLiveSlot() &&
				other.Candidate.NormalizedEmail() == email {
				return fmt.Errorf("candidate already has live session %s: %w", other.ID, sentinel.ErrConflict)
			}
		}
	}
	stored := sess.Clone()
	stored.Version = 1
	sess.Version = 1
	s.sessions[sess.ID] = stored
	s.byToken[sess.TokenHash] = sess.ID
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, sessionID id.SessionID) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("session not found: %w", sentinel.ErrNotFound)
	}
	return sess.Clone(), nil
}

func (s *InMemoryStore) FindByTokenHash(_ context.Context, tokenHash string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sessionID, ok := s.byToken[tokenHash]
	if !ok {
		return nil, fmt.Errorf("session not found: %w", sentinel.ErrNotFound)
	}
	return s.sessions[sessionID].Clone(), nil
}

// ListByCandidate returns every session for email in the organization,
// newest first.
func (s *InMemoryStore) ListByCandidate(_ context.Context, orgID id.OrganizationID, email string) ([]*models.Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Session
	for _, sess := range s.sessions {
		if sess.OrganizationID == orgID && sess.Candidate.NormalizedEmail() == email {
			out = append(out, sess.Clone())
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *InMemoryStore) ListByOrganization(_ context.Context, orgID id.OrganizationID, filter models.ListFilter) ([]*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Session
	for _, sess := range s.sessions {
		if sess.OrganizationID != orgID {
			continue
		}
		if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, sess.Status) {
			continue
		}
		out = append(out, sess.Clone())
	}
	sortNewestFirst(out)
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Execute validates and mutates a session under the store lock. The
// mutation runs on a copy that replaces the stored session only when
// validate succeeds, and the version is bumped on every write.
func (s *InMemoryStore) Execute(_ context.Context, sessionID id.SessionID, validate func(*models.Session) error, mutate func(*models.Session)) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("session not found: %w", sentinel.ErrNotFound)
	}
	working := current.Clone()
	if validate != nil {
		if err := validate(working); err != nil {
			return nil, err
		}
	}
	mutate(working)
	working.Version = current.Version + 1
	s.sessions[sessionID] = working
	return working.Clone(), nil
}

func sortNewestFirst(sessions []*models.Session) {
	slices.SortFunc(sessions, func(a, b *models.Session) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
}
