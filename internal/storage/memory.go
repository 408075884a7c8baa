package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sort"
	"sync"
	"time"
)

// Memory keeps objects in a map.  FailPut and FailRemove let tests inject
// failures for chosen keys.
type Memory struct {
	mu      sync.Mutex
	objects map[string][]byte
	baseURL string
	bucket  string

	FailPut    func(key string) error
	FailRemove func(key string) error
}

func NewMemory(baseURL, bucket string) *Memory {
	if baseURL == "" {
		baseURL = "http://memory.local"
	}
	if bucket == "" {
		bucket = "orchid-test"
	}
	return &Memory{objects: make(map[string][]byte), baseURL: baseURL, bucket: bucket}
}

func (m *Memory) Put(_ context.Context, key string, body io.Reader, _ int64, _ string) error {
	if m.FailPut != nil {
		if err := m.FailPut(key); err != nil {
			return fmt.Errorf("storage/memory: put %s: %w", key, err)
		}
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("storage/memory: read: %w", err)
	}
	m.mu.Lock()
	m.objects[key] = data
	m.mu.Unlock()
	return nil
}

func (m *Memory) Remove(_ context.Context, key string) error {
	if m.FailRemove != nil {
		if err := m.FailRemove(key); err != nil {
			return fmt.Errorf("storage/memory: delete %s: %w", key, err)
		}
	}
	m.mu.Lock()
	delete(m.objects, key)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok, nil
}

func (m *Memory) PresignGet(_ context.Context, key string, ttl time.Duration) (string, error) {
	q := url.Values{}
	q.Set("X-Amz-Expires", fmt.Sprintf("%d", int(ttl.Seconds())))
	q.Set("X-Amz-Signature", "memory")
	return m.URL(key) + "?" + q.Encode(), nil
}

func (m *Memory) URL(key string) string { return publicURL(m.baseURL, m.bucket, key) }

// Get returns a copy of the stored bytes.
func (m *Memory) Get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

// Keys lists stored keys in sorted order.
func (m *Memory) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.objects))
	for k := range m.objects {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
