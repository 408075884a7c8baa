package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/product-catalog/internal/model"
	"github.com/iliyamo/product-catalog/internal/queue"
	"github.com/iliyamo/product-catalog/internal/repository"
)

type memUsers struct {
	mu     sync.Mutex
	nextID uint64
	byID   map[uint64]model.User
}

func newMemUsers() *memUsers { return &memUsers{byID: map[uint64]model.User{}} }

func (m *memUsers) Create(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range m.byID {
		if x.Username == u.Username || strings.EqualFold(x.Email, u.Email) {
			return repository.ErrUserExists
		}
	}
	m.nextID++
	u.ID = m.nextID
	u.Email = strings.ToLower(u.Email)
	m.byID[u.ID] = *u
	return nil
}

func (m *memUsers) GetByLogin(_ context.Context, login string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range m.byID {
		if x.Username == login || x.Email == strings.ToLower(login) {
			return x, nil
		}
	}
	return model.User{}, repository.ErrUserNotFound
}

func (m *memUsers) GetByID(_ context.Context, id uint64) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return model.User{}, repository.ErrUserNotFound
	}
	return u, nil
}

func (m *memUsers) Update(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, x := range m.byID {
		if id != u.ID && (x.Username == u.Username || x.Email == u.Email) {
			return repository.ErrUserExists
		}
	}
	if _, ok := m.byID[u.ID]; !ok {
		return repository.ErrUserNotFound
	}
	m.byID[u.ID] = *u
	return nil
}

type memRevoker struct {
	mu      sync.Mutex
	revoked map[string]time.Time
}

func newMemRevoker() *memRevoker { return &memRevoker{revoked: map[string]time.Time{}} }

func (m *memRevoker) Revoke(_ context.Context, jti string, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked[jti] = until
	return nil
}

func (m *memRevoker) Consume(_ context.Context, jti string, until time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.revoked[jti]; ok {
		return false, nil
	}
	m.revoked[jti] = until
	return true, nil
}

func (m *memRevoker) isRevoked(jti string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.revoked[jti]
	return ok
}

// memProducts mimics ProductRepo: every method is atomic.
type memProducts struct {
	mu        sync.Mutex
	nextID    uint64
	nextImg   uint64
	items     map[uint64]model.Product
	mutations int

	failCreate error
	failUpdate error
}

func newMemProducts() *memProducts { return &memProducts{items: map[uint64]model.Product{}} }

func (m *memProducts) Create(_ context.Context, p *model.Product, urls []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreate != nil {
		return m.failCreate
	}
	m.mutations++
	m.nextID++
	p.ID = m.nextID
	p.CreatedAt = time.Now()
	p.Images = nil
	for _, u := range urls {
		m.nextImg++
		p.Images = append(p.Images, model.ProductImage{ID: m.nextImg, ProductID: p.ID, ImageURL: u})
	}
	m.items[p.ID] = clone(*p)
	return nil
}

func (m *memProducts) GetWithImages(_ context.Context, id uint64) (model.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.items[id]
	if !ok {
		return model.Product{}, repository.ErrProductNotFound
	}
	return clone(p), nil
}

func (m *memProducts) List(_ context.Context, q repository.ProductQuery) ([]model.Product, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []model.Product
	for _, p := range m.items {
		if q.Search == "" || strings.Contains(strings.ToLower(p.Name), strings.ToLower(q.Search)) {
			all = append(all, clone(p))
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	total := int64(len(all))
	start := (q.Page - 1) * q.Limit
	if start > len(all) {
		start = len(all)
	}
	end := start + q.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (m *memProducts) ApplyUpdate(_ context.Context, id uint64, f model.ProductFields, removeIDs []uint64, addURLs []string) (model.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failUpdate != nil {
		return model.Product{}, m.failUpdate
	}
	p, ok := m.items[id]
	if !ok {
		return model.Product{}, repository.ErrProductNotFound
	}
	m.mutations++
	drop := map[uint64]bool{}
	for _, r := range removeIDs {
		drop[r] = true
	}
	var imgs []model.ProductImage
	for _, img := range p.Images {
		if !drop[img.ID] {
			imgs = append(imgs, img)
		}
	}
	for _, u := range addURLs {
		m.nextImg++
		imgs = append(imgs, model.ProductImage{ID: m.nextImg, ProductID: id, ImageURL: u})
	}
	p.Images = imgs
	p.Name, p.Description, p.Price = f.Name, f.Description, f.Price
	m.items[id] = p
	return clone(p), nil
}

func (m *memProducts) Delete(_ context.Context, id uint64) ([]model.ProductImage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.items[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	m.mutations++
	delete(m.items, id)
	return p.Images, nil
}

func (m *memProducts) rows(id uint64) []model.ProductImage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.ProductImage(nil), m.items[id].Images...)
}

func clone(p model.Product) model.Product {
	p.Images = append([]model.ProductImage(nil), p.Images...)
	return p
}

type recordingReporter struct {
	mu     sync.Mutex
	events []queue.ImageOrphanedEvent
}

func (r *recordingReporter) ReportOrphan(_ context.Context, ev queue.ImageOrphanedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingReporter) keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Key
	}
	return out
}

var errBoom = errors.New("boom")
