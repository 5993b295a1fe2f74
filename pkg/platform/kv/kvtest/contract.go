// Package kvtest holds the behavioural contract every kv.Store backend must
// satisfy. Backend tests call RunContract with a factory that returns an
// empty store.
package kvtest

import (
	"context"
	"errors"
	"testing"

	"desci/pkg/platform/kv"
	"desci/pkg/platform/sentinel"
)

// ContractTest is a single behavioural check against a fresh store.
type ContractTest struct {
	Name string
	Run  func(t *testing.T, store kv.Store)
}

// Contract lists the checks in the order they run.
var Contract = []ContractTest{
	{Name: "missing key reports not found", Run: missingKey},
	{Name: "committed writes are visible to later transactions", Run: commitVisible},
	{Name: "failed transaction discards every write", Run: rollback},
	{Name: "transaction reads its own writes", Run: readYourWrites},
	{Name: "nested run joins the outer transaction", Run: nestedJoin},
}

// RunContract executes Contract against stores produced by newStore.
func RunContract(t *testing.T, newStore func(t *testing.T) kv.Store) {
	for _, tc := range Contract {
		t.Run(tc.Name, func(t *testing.T) {
			tc.Run(t, newStore(t))
		})
	}
}

var errAbort = errors.New("abort")

func missingKey(t *testing.T, store kv.Store) {
	ctx := context.Background()
	err := store.RunInTx(ctx, func(ctx context.Context, tx kv.Tx) error {
		ok, err := tx.Has(ctx, "absent")
		if err != nil {
			return err
		}
		if ok {
			t.Error("Has reported an absent key")
		}
		_, err = tx.Get(ctx, "absent")
		return err
	})
	if !errors.Is(err, sentinel.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func commitVisible(t *testing.T, store kv.Store) {
	mustRun(t, store, func(ctx context.Context, tx kv.Tx) error {
		return kv.SetJSON(ctx, tx, "study/aa", map[string]string{"owner": "O"})
	})
	mustRun(t, store, func(ctx context.Context, tx kv.Tx) error {
		var got map[string]string
		found, err := kv.GetJSON(ctx, tx, "study/aa", &got)
		if err != nil {
			return err
		}
		if !found || got["owner"] != "O" {
			t.Errorf("expected committed value, got found=%v value=%v", found, got)
		}
		return nil
	})
}

func rollback(t *testing.T, store kv.Store) {
	ctx := context.Background()
	mustRun(t, store, func(ctx context.Context, tx kv.Tx) error {
		return kv.SetJSON(ctx, tx, "balance/X", "10")
	})

	err := store.RunInTx(ctx, func(ctx context.Context, tx kv.Tx) error {
		if err := kv.SetJSON(ctx, tx, "balance/X", "5"); err != nil {
			return err
		}
		if err := kv.SetJSON(ctx, tx, "balance/Y", "5"); err != nil {
			return err
		}
		return errAbort
	})
	if !errors.Is(err, errAbort) {
		t.Fatalf("expected abort error, got %v", err)
	}

	mustRun(t, store, func(ctx context.Context, tx kv.Tx) error {
		var x string
		if _, err := kv.GetJSON(ctx, tx, "balance/X", &x); err != nil {
			return err
		}
		if x != "10" {
			t.Errorf("balance/X changed by aborted transaction: %s", x)
		}
		ok, err := tx.Has(ctx, "balance/Y")
		if err != nil {
			return err
		}
		if ok {
			t.Error("balance/Y written by aborted transaction")
		}
		return nil
	})
}

func readYourWrites(t *testing.T, store kv.Store) {
	mustRun(t, store, func(ctx context.Context, tx kv.Tx) error {
		if err := kv.SetJSON(ctx, tx, "owner/O", []string{"aa"}); err != nil {
			return err
		}
		var got []string
		if _, err := kv.GetJSON(ctx, tx, "owner/O", &got); err != nil {
			return err
		}
		if len(got) != 1 || got[0] != "aa" {
			t.Errorf("expected buffered write, got %v", got)
		}
		ok, err := tx.Has(ctx, "owner/O")
		if err != nil {
			return err
		}
		if !ok {
			t.Error("Has missed a buffered write")
		}
		return nil
	})
}

func nestedJoin(t *testing.T, store kv.Store) {
	ctx := context.Background()
	err := store.RunInTx(ctx, func(ctx context.Context, tx kv.Tx) error {
		if err := store.RunInTx(ctx, func(ctx context.Context, inner kv.Tx) error {
			return kv.SetJSON(ctx, inner, "nested", true)
		}); err != nil {
			return err
		}
		return errAbort
	})
	if !errors.Is(err, errAbort) {
		t.Fatalf("expected abort error, got %v", err)
	}
	mustRun(t, store, func(ctx context.Context, tx kv.Tx) error {
		ok, err := tx.Has(ctx, "nested")
		if err != nil {
			return err
		}
		if ok {
			t.Error("nested write survived the outer rollback")
		}
		return nil
	})
}

func mustRun(t *testing.T, store kv.Store, fn func(ctx context.Context, tx kv.Tx) error) {
	t.Helper()
	if err := store.RunInTx(context.Background(), fn); err != nil {
		t.Fatalf("transaction failed: %v", err)
	}
}
