package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSQLiteDSNAddsMissingParams(t *testing.T) {
	dsn := sqliteDSN("file:library.db")
	assert.Equal(t, "file:library.db?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_txlock=immediate&_time_format=sqlite", dsn)
}

func TestSQLiteDSNKeepsOperatorParams(t *testing.T) {
	dsn := sqliteDSN("file:library.db?_pragma=busy_timeout(100)&_txlock=deferred")
	assert.Equal(t, "file:library.db?_pragma=busy_timeout(100)&_txlock=deferred&_pragma=foreign_keys(1)&_time_format=sqlite", dsn)
}

func TestResolveRejectsUnknownDriver(t *testing.T) {
	_, _, _, err := resolve("oracle", "")
	assert.Error(t, err)
}
