package tx

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFrom(t *testing.T) {
	_, ok := From(context.Background())
	assert.False(t, ok)

	ctx := WithTx(context.Background(), nil)
	_, ok = From(ctx)
	assert.False(t, ok, "nil transactions are not stored")

	sqlTx := &sql.Tx{}
	got, ok := From(WithTx(context.Background(), sqlTx))
	assert.True(t, ok)
	assert.Same(t, sqlTx, got)
}

func TestExecerFrom(t *testing.T) {
	db := &sql.DB{}
	assert.Equal(t, Execer(db), ExecerFrom(context.Background(), db))

	sqlTx := &sql.Tx{}
	assert.Equal(t, Execer(sqlTx), ExecerFrom(WithTx(context.Background(), sqlTx), db))
}
