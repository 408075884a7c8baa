package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/product-catalog/internal/logger"
	"github.com/iliyamo/product-catalog/internal/metrics"
	"github.com/iliyamo/product-catalog/internal/model"
	"github.com/iliyamo/product-catalog/internal/queue"
	"github.com/iliyamo/product-catalog/internal/repository"
	"github.com/iliyamo/product-catalog/internal/storage"
	"github.com/iliyamo/product-catalog/internal/utils"
)

// Image count bounds of a product.
const (
	MinImages = model.MinProductImages
	MaxImages = model.MaxProductImages
)

// Listing page bounds.
const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

// ProductStore is the relational side of the catalog.
type ProductStore interface {
	Create(ctx context.Context, p *model.Product, imageURLs []string) error
	GetWithImages(ctx context.Context, id uint64) (model.Product, error)
	List(ctx context.Context, q repository.ProductQuery) ([]model.Product, int64, error)
	ApplyUpdate(ctx context.Context, id uint64, f model.ProductFields, removeIDs []uint64, addURLs []string) (model.Product, error)
	Delete(ctx context.Context, id uint64) ([]model.ProductImage, error)
}

// ProductInput holds the scalar fields of a create or update.
type ProductInput struct {
	Name        string  `json:"name" validate:"required,max=255"`
	Description string  `json:"description" validate:"max=5000"`
	Price       float64 `json:"price" validate:"gte=0"`
}

func (in ProductInput) fields() model.ProductFields {
	return model.ProductFields{Name: in.Name, Description: in.Description, Price: in.Price}
}

// Upload is one new image payload.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// ProductOptions tune ProductService.  Zero values select the defaults.
type ProductOptions struct {
	SignedURLTTL   time.Duration // default 1h
	MaxImageSize   int64         // default 5 MiB
	CleanupTimeout time.Duration // bound of post-write object deletes, default 5s
}

// ProductService keeps product rows and their image objects consistent.
// A row never references an object that failed to upload; an object whose
// row is gone is deleted best-effort and reported as orphaned on failure.
type ProductService struct {
	products ProductStore
	objects  storage.ObjectStore
	orphans  OrphanReporter
	signTTL  time.Duration
	maxImage int64
	cleanup  time.Duration
	log      *logger.Logger
	now      func() time.Time
}

func NewProductService(products ProductStore, objects storage.ObjectStore, orphans OrphanReporter, opts ProductOptions, log *logger.Logger) *ProductService {
	if orphans == nil {
		orphans = nopReporter{}
	}
	if opts.SignedURLTTL <= 0 {
		opts.SignedURLTTL = time.Hour
	}
	if opts.MaxImageSize <= 0 {
		opts.MaxImageSize = 5 << 20
	}
	if opts.CleanupTimeout <= 0 {
		opts.CleanupTimeout = 5 * time.Second
	}
	return &ProductService{
		products: products,
		objects:  objects,
		orphans:  orphans,
		signTTL:  opts.SignedURLTTL,
		maxImage: opts.MaxImageSize,
		cleanup:  opts.CleanupTimeout,
		log:      log.Named("products"),
		now:      time.Now,
	}
}

// Create uploads the images, then inserts the product with one image row
// per object.  Any failure removes the objects already uploaded.
func (s *ProductService) Create(ctx context.Context, in ProductInput, uploads []Upload) (uint64, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := validateStruct(in); err != nil {
		return 0, err
	}
	if err := s.checkUploads(len(uploads), uploads); err != nil {
		return 0, err
	}

	keys, err := s.uploadAll(ctx, 0, uploads)
	if err != nil {
		return 0, err
	}
	p := &model.Product{Name: in.Name, Description: in.Description, Price: in.Price}
	if err := s.products.Create(ctx, p, s.urls(keys)); err != nil {
		s.removeBestEffort(ctx, 0, keys, "product insert failed")
		return 0, storageErr("create product", err)
	}
	s.log.WithContext(ctx).Info("product created", zap.Uint64("product_id", p.ID), zap.Int("images", len(keys)))
	return p.ID, nil
}

// Update reconciles the product's images with the desired set: rows whose
// object name is in retained are kept, the others are removed, and every
// upload becomes a new row.  The image count must stay within
// [MinImages, MaxImages]; this is checked before anything is written.
//
// New objects are uploaded first.  Row deletions, row inserts and the
// scalar update are then committed in one transaction.  Objects of
// removed rows are deleted only after the commit, best-effort.
func (s *ProductService) Update(ctx context.Context, id uint64, in ProductInput, retained []string, uploads []Upload) (model.SignedProduct, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := validateStruct(in); err != nil {
		return model.SignedProduct{}, err
	}
	keep := normalizeNames(retained)
	if err := s.checkUploads(len(keep)+len(uploads), uploads); err != nil {
		return model.SignedProduct{}, err
	}

	current, err := s.products.GetWithImages(ctx, id)
	if err != nil {
		return model.SignedProduct{}, s.productErr("load product", id, err)
	}
	kept, removed := partitionImages(current.Images, keep)
	if len(kept)+len(uploads) < MinImages {
		return model.SignedProduct{}, invalid("validation failed",
			FieldError{Field: "images", Message: fmt.Sprintf("a product needs at least %d image", MinImages)})
	}

	keys, err := s.uploadAll(ctx, id, uploads)
	if err != nil {
		return model.SignedProduct{}, err
	}
	removeIDs := make([]uint64, len(removed))
	for i, img := range removed {
		removeIDs[i] = img.ID
	}
	updated, err := s.products.ApplyUpdate(ctx, id, in.fields(), removeIDs, s.urls(keys))
	if err != nil {
		s.removeBestEffort(ctx, id, keys, "product update failed")
		return model.SignedProduct{}, s.productErr("update product", id, err)
	}

	oldKeys := make([]string, 0, len(removed))
	for _, img := range removed {
		if k := utils.ObjectName(img.ImageURL); k != "" {
			oldKeys = append(oldKeys, k)
		}
	}
	s.removeBestEffort(ctx, id, oldKeys, "image replaced")

	s.log.WithContext(ctx).Info("product updated",
		zap.Uint64("product_id", id),
		zap.Int("kept", len(kept)),
		zap.Int("removed", len(removed)),
		zap.Int("added", len(keys)),
	)
	return s.sign(ctx, updated)
}

// Get loads a product with time-limited signed URLs for its images.
func (s *ProductService) Get(ctx context.Context, id uint64) (model.SignedProduct, error) {
	p, err := s.products.GetWithImages(ctx, id)
	if err != nil {
		return model.SignedProduct{}, s.productErr("load product", id, err)
	}
	return s.sign(ctx, p)
}

// List returns one page of products with signed image URLs.
func (s *ProductService) List(ctx context.Context, q repository.ProductQuery) (model.Page, error) {
	q = NormalizePage(q)
	items, total, err := s.products.List(ctx, q)
	if err != nil {
		return model.Page{}, storageErr("list products", err)
	}
	page := model.Page{
		Data:       make([]model.SignedProduct, 0, len(items)),
		Total:      total,
		TotalPages: int(math.Ceil(float64(total) / float64(q.Limit))),
		Page:       q.Page,
		Limit:      q.Limit,
	}
	for _, p := range items {
		sp, err := s.sign(ctx, p)
		if err != nil {
			return model.Page{}, err
		}
		page.Data = append(page.Data, sp)
	}
	return page, nil
}

// NormalizePage applies the default page and limit and caps the limit.
func NormalizePage(q repository.ProductQuery) repository.ProductQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = DefaultPageLimit
	}
	if q.Limit > MaxPageLimit {
		q.Limit = MaxPageLimit
	}
	return q
}

// Delete removes the product rows, then its objects best-effort.
func (s *ProductService) Delete(ctx context.Context, id uint64) error {
	imgs, err := s.products.Delete(ctx, id)
	if err != nil {
		return s.productErr("delete product", id, err)
	}
	keys := make([]string, 0, len(imgs))
	for _, img := range imgs {
		if k := utils.ObjectName(img.ImageURL); k != "" {
			keys = append(keys, k)
		}
	}
	s.removeBestEffort(ctx, id, keys, "product deleted")
	s.log.WithContext(ctx).Info("product deleted", zap.Uint64("product_id", id))
	return nil
}

func (s *ProductService) checkUploads(total int, uploads []Upload) error {
	if total < MinImages || total > MaxImages {
		return invalid("validation failed", FieldError{
			Field:   "images",
			Message: fmt.Sprintf("a product must have between %d and %d images", MinImages, MaxImages),
		})
	}
	for _, up := range uploads {
		if up.Body == nil {
			return invalid("validation failed", FieldError{Field: "images", Message: "empty upload"})
		}
		if up.Size > s.maxImage {
			return invalid("validation failed", FieldError{
				Field:   "images",
				Message: fmt.Sprintf("%s exceeds %d bytes", up.Filename, s.maxImage),
			})
		}
	}
	return nil
}

// uploadAll writes every upload in parallel.  If any write fails the ones
// that succeeded are removed and a StorageError is returned.
func (s *ProductService) uploadAll(ctx context.Context, productID uint64, uploads []Upload) ([]string, error) {
	if len(uploads) == 0 {
		return nil, nil
	}
	done := make([]string, len(uploads))
	g, gctx := errgroup.WithContext(ctx)
	for i, up := range uploads {
		key := utils.ObjectKey(s.now(), up.Filename)
		g.Go(func() error {
			err := s.objects.Put(gctx, key, up.Body, up.Size, up.ContentType)
			metrics.ImageOps.WithLabelValues("put", metrics.Result(err)).Inc()
			if err != nil {
				return err
			}
			done[i] = key
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		uploaded := make([]string, 0, len(done))
		for _, k := range done {
			if k != "" {
				uploaded = append(uploaded, k)
			}
		}
		s.removeBestEffort(ctx, productID, uploaded, "upload aborted")
		return nil, storageErr("upload image", err)
	}
	return done, nil
}

// removeBestEffort deletes objects no row references.  Failures are logged
// and reported; they never fail the caller.  The deletes and reports
// outlive the request's cancellation but are bounded by the cleanup
// timeout.
func (s *ProductService) removeBestEffort(ctx context.Context, productID uint64, keys []string, reason string) {
	if len(keys) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cleanup)
	defer cancel()
	log := s.log.WithContext(ctx)
	for _, key := range keys {
		err := s.objects.Remove(ctx, key)
		metrics.ImageOps.WithLabelValues("remove", metrics.Result(err)).Inc()
		if err == nil {
			continue
		}
		metrics.OrphanedObjects.Inc()
		log.Warn("object delete failed", zap.String("key", key), zap.Uint64("product_id", productID), zap.Error(err))
		ev := queue.ImageOrphanedEvent{
			Key:        key,
			ProductID:  productID,
			Reason:     reason,
			OccurredAt: s.now().UTC().Format(time.RFC3339),
		}
		if err := s.orphans.ReportOrphan(ctx, ev); err != nil {
			log.Warn("orphan report failed", zap.String("key", key), zap.Error(err))
		}
	}
}

func (s *ProductService) sign(ctx context.Context, p model.Product) (model.SignedProduct, error) {
	out := model.SignedProduct{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		CreatedAt:   p.CreatedAt,
		Images:      make([]string, 0, len(p.Images)),
	}
	for _, img := range p.Images {
		key := utils.ObjectName(img.ImageURL)
		if key == "" {
			continue
		}
		u, err := s.objects.PresignGet(ctx, key, s.signTTL)
		metrics.ImageOps.WithLabelValues("presign", metrics.Result(err)).Inc()
		if err != nil {
			return model.SignedProduct{}, storageErr("sign image url", err)
		}
		out.Images = append(out.Images, u)
	}
	return out, nil
}

func (s *ProductService) urls(keys []string) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = s.objects.URL(k)
	}
	return out
}

func (s *ProductService) productErr(op string, id uint64, err error) error {
	switch {
	case errors.Is(err, repository.ErrProductNotFound):
		return &NotFoundError{Resource: "product", ID: id}
	case errors.Is(err, repository.ErrConflict):
		return &ConflictError{Message: fmt.Sprintf("product %d was modified concurrently; reload and retry", id)}
	}
	return storageErr(op, err)
}

// normalizeNames reduces client-supplied references (bare names or
// previously issued signed URLs) to unique object names.
func normalizeNames(refs []string) []string {
	seen := make(map[string]struct{}, len(refs))
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		n := utils.ObjectName(r)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// partitionImages splits rows into those whose object name is retained and
// the rest, preserving row order.
func partitionImages(rows []model.ProductImage, retained []string) (kept, removed []model.ProductImage) {
	want := make(map[string]struct{}, len(retained))
	for _, n := range retained {
		want[n] = struct{}{}
	}
	for _, img := range rows {
		if _, ok := want[utils.ObjectName(img.ImageURL)]; ok {
			kept = append(kept, img)
		} else {
			removed = append(removed, img)
		}
	}
	return kept, removed
}
