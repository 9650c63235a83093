package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsUniqueViolation(t *testing.T) {
	dup := fmt.Errorf("insert document: %w", &pgconn.PgError{Code: "23505"})
	assert.True(t, isUniqueViolation(dup))

	assert.False(t, isUniqueViolation(errors.New("connection reset")))
	// Other constraint classes are not duplicates.
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, isUniqueViolation(nil))
}
