package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/product-catalog/internal/model"
)

func TestUserRepo_CreateNormalizesEmail(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users (username, email, password_hash, role_id)")).
		WithArgs("ann", "ann@example.com", "hash", uint8(model.RoleAdmin)).
		WillReturnResult(sqlmock.NewResult(9, 1))

	u := &model.User{Username: "ann", Email: "  Ann@Example.COM ", PasswordHash: "hash", Role: model.RoleAdmin}
	require.NoError(t, NewUserRepo(db).Create(context.Background(), u))
	assert.Equal(t, uint64(9), u.ID)
	assert.Equal(t, "ann@example.com", u.Email)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_CreateDuplicate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO users").
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'ann' for key 'uq_users_username'"})

	err = NewUserRepo(db).Create(context.Background(), &model.User{Username: "ann", Email: "a@b.c"})
	assert.ErrorIs(t, err, ErrUserExists)
}

func TestUserRepo_GetByLogin(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "username", "email", "password_hash", "role_id", "created_at", "updated_at"}).
		AddRow(3, "bob", "bob@example.com", "h", 2, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE username=? OR email=?")).
		WithArgs("Bob@Example.com", "bob@example.com").
		WillReturnRows(rows)

	u, err := NewUserRepo(db).GetByLogin(context.Background(), "Bob@Example.com")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), u.ID)
	assert.Equal(t, model.RoleMember, u.Role)
}

func TestUserRepo_GetByIDNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("FROM users WHERE id=").WithArgs(uint64(77)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err = NewUserRepo(db).GetByID(context.Background(), 77)
	assert.ErrorIs(t, err, ErrUserNotFound)
}
