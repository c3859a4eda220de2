package photos

import (
	"context"
	"io"
	"sync"

	"organograma/pkg/platform/sentinel"
)

// InMemory keeps photos in process memory.
type InMemory struct {
	mu      sync.RWMutex
	objects map[string]Object
	baseURL string
}

func NewInMemory(publicBaseURL string) *InMemory {
	return &InMemory{objects: make(map[string]Object), baseURL: publicBaseURL}
}

func (s *InMemory) Put(_ context.Context, key string, r io.Reader, _ int64, contentType string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = Object{Data: data, ContentType: contentType}
	return publicURL(s.baseURL, key), nil
}

func (s *InMemory) Get(_ context.Context, key string) (*Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &obj, nil
}
