package documents

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gramv/onboardingsoftware-sub000/internal/onboarding/models"
	id "github.com/gramv/onboardingsoftware-sub000/pkg/domain"
	"github.com/gramv/onboardingsoftware-sub000/pkg/platform/sentinel"
)

// InMemoryStorage keeps document bytes in process memory for tests/dev.
type InMemoryStorage struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func NewInMemoryStorage() *InMemoryStorage {
	return &InMemoryStorage{objects: make(map[string][]byte)}
}

func (s *InMemoryStorage) Store(_ context.Context, sessionID id.SessionID, upload Upload, now time.Time) (models.Document, error) {
	if err := upload.Validate(); err != nil {
		return models.Document{}, err
	}
	doc := descriptor(sessionID, upload, now)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[doc.StorageKey] = append([]byte(nil), upload.Data...)
	return doc, nil
}

func (s *InMemoryStorage) Delete(_ context.Context, storageKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, storageKey)
	return nil
}

func (s *InMemoryStorage) URL(_ context.Context, storageKey string, _ time.Duration) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.objects[storageKey]; !ok {
		return "", fmt.Errorf("document %s: %w", storageKey, sentinel.ErrNotFound)
	}
	return "memory://" + storageKey, nil
}

// Object returns the stored bytes.
func (s *InMemoryStorage) Object(storageKey string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.objects[storageKey]
	return b, ok
}
