package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/product-catalog/internal/model"
)

// ProductQuery defines the name filter and pagination for listings.
type ProductQuery struct {
	Search string
	Page   int
	Limit  int
}

// ProductRepo persists products and their image rows.  Multi-row writes
// run in one transaction so a product never exists half-written.
type ProductRepo struct {
	db *sql.DB
}

func NewProductRepo(db *sql.DB) *ProductRepo { return &ProductRepo{db: db} }

// withTx runs fn inside a transaction, committing when fn returns nil.
func (r *ProductRepo) withTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()
	return fn(tx)
}

// Create inserts p and one product_images row per URL, in order.  On
// success p.ID and p.Images are populated.
func (r *ProductRepo) Create(ctx context.Context, p *model.Product, imageURLs []string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			"INSERT INTO products (name, description, price) VALUES (?,?,?)",
			p.Name, p.Description, p.Price)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		p.ID = uint64(id)
		p.Images, err = insertImages(ctx, tx, p.ID, imageURLs)
		return err
	})
}

func insertImages(ctx context.Context, tx *sql.Tx, productID uint64, urls []string) ([]model.ProductImage, error) {
	out := make([]model.ProductImage, 0, len(urls))
	for _, u := range urls {
		res, err := tx.ExecContext(ctx,
			"INSERT INTO product_images (product_id, image_url) VALUES (?,?)", productID, u)
		if err != nil {
			return nil, err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, err
		}
		out = append(out, model.ProductImage{ID: uint64(id), ProductID: productID, ImageURL: u})
	}
	return out, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// GetWithImages loads a product and its image rows in id order.
func (r *ProductRepo) GetWithImages(ctx context.Context, id uint64) (model.Product, error) {
	return getWithImages(ctx, r.db, id, false)
}

func getWithImages(ctx context.Context, q querier, id uint64, lock bool) (model.Product, error) {
	query := "SELECT id, name, COALESCE(description,''), price, created_at FROM products WHERE id = ?"
	if lock {
		query += " FOR UPDATE"
	}
	var p model.Product
	err := q.QueryRowContext(ctx, query, id).Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Product{}, ErrProductNotFound
	}
	if err != nil {
		return model.Product{}, err
	}
	imgs, err := imagesFor(ctx, q, []uint64{id})
	if err != nil {
		return model.Product{}, err
	}
	p.Images = imgs[id]
	return p, nil
}

// imagesFor loads the image rows of several products, grouped by product.
func imagesFor(ctx context.Context, q querier, ids []uint64) (map[uint64][]model.ProductImage, error) {
	out := make(map[uint64][]model.ProductImage, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := q.QueryContext(ctx,
		"SELECT id, product_id, image_url FROM product_images WHERE product_id IN ("+placeholders(len(ids))+") ORDER BY id ASC",
		args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var img model.ProductImage
		if err := rows.Scan(&img.ID, &img.ProductID, &img.ImageURL); err != nil {
			return nil, err
		}
		out[img.ProductID] = append(out[img.ProductID], img)
	}
	return out, rows.Err()
}

// List returns one page of products, newest first, with their images, and
// the total number of matching products.  Search is a case-insensitive
// substring filter on the name.
func (r *ProductRepo) List(ctx context.Context, q ProductQuery) ([]model.Product, int64, error) {
	cond := "1=1"
	args := []any{}
	if s := strings.TrimSpace(q.Search); s != "" {
		cond = "LOWER(name) LIKE ?"
		args = append(args, "%"+escapeLike(strings.ToLower(s))+"%")
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM products WHERE "+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := q.Limit
	offset := (q.Page - 1) * q.Limit
	dataSQL := `SELECT id, name, COALESCE(description,''), price, created_at
		FROM products
		WHERE ` + cond + `
		ORDER BY id DESC
		LIMIT ? OFFSET ?`
	argsData := append(append([]any{}, args...), limit, offset)

	rows, err := r.db.QueryContext(ctx, dataSQL, argsData...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]model.Product, 0, limit)
	ids := make([]uint64, 0, limit)
	for rows.Next() {
		var p model.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.CreatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, p)
		ids = append(ids, p.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	rows.Close()

	imgs, err := imagesFor(ctx, r.db, ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range out {
		out[i].Images = imgs[out[i].ID]
	}
	return out, total, nil
}

// ApplyUpdate locks the product row, deletes the image rows in removeIDs,
// inserts rows for addURLs and writes the scalar fields, all in one
// transaction.  It returns the product as committed, or ErrConflict when
// an id in removeIDs no longer belongs to the product or the resulting
// image count would leave [MinProductImages, MaxProductImages].
func (r *ProductRepo) ApplyUpdate(ctx context.Context, id uint64, f model.ProductFields, removeIDs []uint64, addURLs []string) (model.Product, error) {
	var out model.Product
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		locked, err := getWithImages(ctx, tx, id, true)
		if err != nil {
			return err
		}
		present := make(map[uint64]bool, len(locked.Images))
		for _, img := range locked.Images {
			present[img.ID] = true
		}
		for _, rid := range removeIDs {
			if !present[rid] {
				// another update removed it after the caller's read
				return ErrConflict
			}
		}
		if n := len(locked.Images) - len(removeIDs) + len(addURLs); n < model.MinProductImages || n > model.MaxProductImages {
			// another update changed the image set after the caller's read
			return ErrConflict
		}
		if len(removeIDs) > 0 {
			args := make([]any, 0, len(removeIDs)+1)
			args = append(args, id)
			for _, rid := range removeIDs {
				args = append(args, rid)
			}
			if _, err := tx.ExecContext(ctx,
				"DELETE FROM product_images WHERE product_id = ? AND id IN ("+placeholders(len(removeIDs))+")",
				args...); err != nil {
				return err
			}
		}
		if _, err := insertImages(ctx, tx, id, addURLs); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE products SET name = ?, description = ?, price = ? WHERE id = ?",
			f.Name, f.Description, f.Price, id); err != nil {
			return err
		}
		out, err = getWithImages(ctx, tx, id, false)
		return err
	})
	return out, err
}

// Delete removes the product and its image rows, returning the removed
// image rows so the caller can clean up their objects.
func (r *ProductRepo) Delete(ctx context.Context, id uint64) ([]model.ProductImage, error) {
	var imgs []model.ProductImage
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		p, err := getWithImages(ctx, tx, id, true)
		if err != nil {
			return err
		}
		imgs = p.Images
		if _, err := tx.ExecContext(ctx, "DELETE FROM product_images WHERE product_id = ?", id); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, "DELETE FROM products WHERE id = ?", id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return imgs, nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
