package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"desci/pkg/domain"
	"desci/pkg/platform/kv"
	"desci/pkg/platform/kv/memory"
)

func TestBalanceStore(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()

	err := mem.RunInTx(ctx, func(ctx context.Context, tx kv.Tx) error {
		s := NewBalanceStore(tx, DefaultToken)

		zero, err := s.Get(ctx, "X")
		require.NoError(t, err)
		assert.True(t, zero.IsZero(), "absent balances read as zero")

		require.NoError(t, s.Put(ctx, "X", domain.NewAmount(10)))
		got, err := s.Get(ctx, "X")
		require.NoError(t, err)
		assert.Equal(t, domain.NewAmount(10), got)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, `"10"`, string(mem.Snapshot()["balance/BALANCE/X"]))
}

func TestKey_TokensDoNotCollide(t *testing.T) {
	a := Key(domain.MustTag("BALANCE"), "x/y")
	b := Key(domain.MustTag("BALANCE_x"), "y")
	assert.NotEqual(t, a, b)
}
