package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/product-catalog/internal/model"
)

var (
	productCols = []string{"id", "name", "description", "price", "created_at"}
	imageCols   = []string{"id", "product_id", "image_url"}
)

func TestProductRepo_CreateInsertsRowsInOneTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO products (name, description, price)")).
		WithArgs("Orchid", "purple", 12.5).
		WillReturnResult(sqlmock.NewResult(5, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO product_images")).WithArgs(uint64(5), "u/a").
		WillReturnResult(sqlmock.NewResult(10, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO product_images")).WithArgs(uint64(5), "u/b").
		WillReturnResult(sqlmock.NewResult(11, 1))
	mock.ExpectCommit()

	p := &model.Product{Name: "Orchid", Description: "purple", Price: 12.5}
	require.NoError(t, NewProductRepo(db).Create(context.Background(), p, []string{"u/a", "u/b"}))
	assert.Equal(t, uint64(5), p.ID)
	require.Len(t, p.Images, 2)
	assert.Equal(t, uint64(11), p.Images[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepo_CreateRollsBackOnImageFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO products").WillReturnResult(sqlmock.NewResult(5, 1))
	mock.ExpectExec("INSERT INTO product_images").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err = NewProductRepo(db).Create(context.Background(), &model.Product{Name: "x"}, []string{"u/a"})
	assert.EqualError(t, err, "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepo_ApplyUpdate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM products WHERE id = ? FOR UPDATE")).WithArgs(uint64(5)).
		WillReturnRows(sqlmock.NewRows(productCols).AddRow(5, "Old", "", 1.0, now))
	mock.ExpectQuery("FROM product_images WHERE product_id IN").WithArgs(uint64(5)).
		WillReturnRows(sqlmock.NewRows(imageCols).AddRow(10, 5, "u/a").AddRow(11, 5, "u/b"))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM product_images WHERE product_id = ? AND id IN (?)")).
		WithArgs(uint64(5), uint64(11)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO product_images").WithArgs(uint64(5), "u/c").
		WillReturnResult(sqlmock.NewResult(12, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE products SET name = ?, description = ?, price = ? WHERE id = ?")).
		WithArgs("New", "d", 2.0, uint64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("FROM products WHERE id = ?")).WithArgs(uint64(5)).
		WillReturnRows(sqlmock.NewRows(productCols).AddRow(5, "New", "d", 2.0, now))
	mock.ExpectQuery("FROM product_images WHERE product_id IN").WithArgs(uint64(5)).
		WillReturnRows(sqlmock.NewRows(imageCols).AddRow(10, 5, "u/a").AddRow(12, 5, "u/c"))
	mock.ExpectCommit()

	p, err := NewProductRepo(db).ApplyUpdate(context.Background(), 5,
		model.ProductFields{Name: "New", Description: "d", Price: 2}, []uint64{11}, []string{"u/c"})
	require.NoError(t, err)
	assert.Equal(t, "New", p.Name)
	require.Len(t, p.Images, 2)
	assert.Equal(t, "u/c", p.Images[1].ImageURL)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepo_ApplyUpdateConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM products WHERE id = ? FOR UPDATE")).WithArgs(uint64(5)).
		WillReturnRows(sqlmock.NewRows(productCols).AddRow(5, "Old", "", 1.0, time.Now()))
	mock.ExpectQuery("FROM product_images WHERE product_id IN").WithArgs(uint64(5)).
		WillReturnRows(sqlmock.NewRows(imageCols).AddRow(10, 5, "u/a"))
	mock.ExpectRollback()

	_, err = NewProductRepo(db).ApplyUpdate(context.Background(), 5,
		model.ProductFields{Name: "New"}, []uint64{11}, nil)
	assert.ErrorIs(t, err, ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepo_ApplyUpdateImageCountChanged(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	// the caller planned against two rows; a third landed before the lock
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM products WHERE id = ? FOR UPDATE")).WithArgs(uint64(5)).
		WillReturnRows(sqlmock.NewRows(productCols).AddRow(5, "Old", "", 1.0, time.Now()))
	mock.ExpectQuery("FROM product_images WHERE product_id IN").WithArgs(uint64(5)).
		WillReturnRows(sqlmock.NewRows(imageCols).AddRow(10, 5, "u/a").AddRow(11, 5, "u/b").AddRow(12, 5, "u/x"))
	mock.ExpectRollback()

	_, err = NewProductRepo(db).ApplyUpdate(context.Background(), 5,
		model.ProductFields{Name: "New"}, []uint64{11}, []string{"u/c", "u/d"})
	assert.ErrorIs(t, err, ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepo_DeleteMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM products WHERE id").WithArgs(uint64(9)).
		WillReturnRows(sqlmock.NewRows(productCols))
	mock.ExpectRollback()

	_, err = NewProductRepo(db).Delete(context.Background(), 9)
	assert.ErrorIs(t, err, ErrProductNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepo_ListSearchEscapesAndPages(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM products WHERE LOWER(name) LIKE ?")).
		WithArgs(`%50\%%`).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(3))
	mock.ExpectQuery("ORDER BY id DESC").
		WithArgs(`%50\%%`, 2, 2).
		WillReturnRows(sqlmock.NewRows(productCols).AddRow(1, "50% off", "", 3.0, now))
	mock.ExpectQuery("FROM product_images WHERE product_id IN").WithArgs(uint64(1)).
		WillReturnRows(sqlmock.NewRows(imageCols).AddRow(4, 1, "u/x"))

	items, total, err := NewProductRepo(db).List(context.Background(), ProductQuery{Search: "50%", Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, items, 1)
	require.Len(t, items[0].Images, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}
