package database

import (
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDSN(t *testing.T) {
	dsn := DSN("app", "p@ss", "db", "3306", "catalog")
	c, err := mysql.ParseDSN(dsn)
	require.NoError(t, err)
	assert.Equal(t, "app", c.User)
	assert.Equal(t, "p@ss", c.Passwd)
	assert.Equal(t, "db:3306", c.Addr)
	assert.Equal(t, "catalog", c.DBName)
	assert.True(t, c.ParseTime)
}

func TestStatements(t *testing.T) {
	stmts := Statements()
	require.Len(t, stmts, 3)
	assert.Contains(t, stmts[0], "CREATE TABLE IF NOT EXISTS users")
	assert.Contains(t, stmts[2], "ON DELETE CASCADE")
}
