package store

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/gramv/onboardingsoftware-sub000/internal/hiring/models"
	id "github.com/gramv/onboardingsoftware-sub000/pkg/domain"
	"github.com/gramv/onboardingsoftware-sub000/pkg/platform/sentinel"
)

// Error Contract:
// - ErrNotFound when the application does not exist
// - ErrAlreadyUsed when an application id is reused

// InMemoryStore keeps applications in memory for tests/dev.
type InMemoryStore struct {
	mu   sync.RWMutex
	apps map[id.ApplicationID]*models.JobApplication
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{apps: make(map[id.ApplicationID]*models.JobApplication)}
}

func (s *InMemoryStore) Create(_ context.Context, app *models.JobApplication) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.apps[app.ID]; ok {
		return fmt.Errorf("application %s: %w", app.ID, sentinel.ErrAlreadyUsed)
	}
	app.Version = 1
	s.apps[app.ID] = app.Clone()
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, appID id.ApplicationID) (*models.JobApplication, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	app, ok := s.apps[appID]
	if !ok {
		return nil, fmt.Errorf("application %s: %w", appID, sentinel.ErrNotFound)
	}
	return app.Clone(), nil
}

func (s *InMemoryStore) List(_ context.Context, orgID id.OrganizationID, filter models.ListFilter) ([]*models.JobApplication, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.JobApplication
	for _, app := range s.apps {
		if app.OrganizationID != orgID {
			continue
		}
		if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, app.Status) {
			continue
		}
		out = append(out, app.Clone())
	}
	slices.SortFunc(out, func(a, b *models.JobApplication) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Execute validates and mutates a copy under the store lock and swaps it in
// only when validate passes.
func (s *InMemoryStore) Execute(_ context.Context, appID id.ApplicationID, validate func(*models.JobApplication) error, mutate func(*models.JobApplication)) (*models.JobApplication, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.apps[appID]
	if !ok {
		return nil, fmt.Errorf("application %s: %w", appID, sentinel.ErrNotFound)
	}
	app := current.Clone()
	if validate != nil {
		if err := validate(app); err != nil {
			return nil, err
		}
	}
	mutate(app)
	app.Version = current.Version + 1
	s.apps[appID] = app
	return app.Clone(), nil
}
