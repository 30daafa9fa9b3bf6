package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestConstraintViolationClassification(t *testing.T) {
	slug := fmt.Errorf("insert product: %w", &pgconn.PgError{Code: uniqueViolation, ConstraintName: "products_slug_key"})
	fk := &pgconn.PgError{Code: foreignKeyViolation, ConstraintName: "affiliate_clicks_affiliate_id_fkey"}

	assert.True(t, uniqueViolationOn(slug, "products_slug_key"))
	assert.True(t, uniqueViolationOn(slug, ""))
	assert.False(t, uniqueViolationOn(slug, "affiliates_user_id_key"))
	assert.False(t, uniqueViolationOn(fk, ""))

	assert.True(t, foreignKeyViolationOn(fk, "affiliate_clicks_affiliate_id_fkey"))
	assert.False(t, foreignKeyViolationOn(fk, "affiliate_clicks_product_id_fkey"))
	assert.False(t, foreignKeyViolationOn(slug, "products_slug_key"))
	assert.False(t, foreignKeyViolationOn(errors.New("connection reset"), "affiliate_clicks_affiliate_id_fkey"))
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, 100, clampLimit(0))
	assert.Equal(t, 100, clampLimit(500))
	assert.Equal(t, 20, clampLimit(20))
}
