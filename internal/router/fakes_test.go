package router

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/product-catalog/internal/model"
	"github.com/iliyamo/product-catalog/internal/repository"
)

type memUsers struct {
	mu   sync.Mutex
	next uint64
	byID map[uint64]model.User
}

func (m *memUsers) Create(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range m.byID {
		if x.Username == u.Username || x.Email == u.Email {
			return repository.ErrUserExists
		}
	}
	m.next++
	u.ID = m.next
	m.byID[u.ID] = *u
	return nil
}

func (m *memUsers) GetByLogin(_ context.Context, login string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range m.byID {
		if x.Username == login || x.Email == login {
			return x, nil
		}
	}
	return model.User{}, repository.ErrUserNotFound
}

func (m *memUsers) GetByID(_ context.Context, id uint64) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.byID[id]; ok {
		return u, nil
	}
	return model.User{}, repository.ErrUserNotFound
}

func (m *memUsers) Update(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[u.ID] = *u
	return nil
}

type memRevoker struct {
	mu  sync.Mutex
	ids map[string]bool
}

func (m *memRevoker) Revoke(_ context.Context, jti string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ids[jti] = true
	return nil
}

func (m *memRevoker) Consume(_ context.Context, jti string, _ time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ids[jti] {
		return false, nil
	}
	m.ids[jti] = true
	return true, nil
}

type memProducts struct {
	mu      sync.Mutex
	next    uint64
	nextImg uint64
	items   map[uint64]model.Product
}

func (m *memProducts) Create(_ context.Context, p *model.Product, urls []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	p.ID = m.next
	p.CreatedAt = time.Now()
	p.Images = m.images(p.ID, nil, urls)
	m.items[p.ID] = *p
	return nil
}

func (m *memProducts) images(id uint64, have []model.ProductImage, urls []string) []model.ProductImage {
	out := append([]model.ProductImage(nil), have...)
	for _, u := range urls {
		m.nextImg++
		out = append(out, model.ProductImage{ID: m.nextImg, ProductID: id, ImageURL: u})
	}
	return out
}

func (m *memProducts) GetWithImages(_ context.Context, id uint64) (model.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.items[id]
	if !ok {
		return model.Product{}, repository.ErrProductNotFound
	}
	p.Images = append([]model.ProductImage(nil), p.Images...)
	return p, nil
}

func (m *memProducts) List(_ context.Context, q repository.ProductQuery) ([]model.Product, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []model.Product
	for _, p := range m.items {
		if strings.Contains(strings.ToLower(p.Name), strings.ToLower(q.Search)) {
			all = append(all, p)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	start := min((q.Page-1)*q.Limit, len(all))
	end := min(start+q.Limit, len(all))
	return all[start:end], int64(len(all)), nil
}

func (m *memProducts) ApplyUpdate(_ context.Context, id uint64, f model.ProductFields, removeIDs []uint64, addURLs []string) (model.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.items[id]
	if !ok {
		return model.Product{}, repository.ErrProductNotFound
	}
	var kept []model.ProductImage
	for _, img := range p.Images {
		drop := false
		for _, r := range removeIDs {
			drop = drop || r == img.ID
		}
		if !drop {
			kept = append(kept, img)
		}
	}
	p.Images = m.images(id, kept, addURLs)
	p.Name, p.Description, p.Price = f.Name, f.Description, f.Price
	m.items[id] = p
	return p, nil
}

func (m *memProducts) Delete(_ context.Context, id uint64) ([]model.ProductImage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.items[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	delete(m.items, id)
	return p.Images, nil
}
