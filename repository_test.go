/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package kindstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suparena/kindstore"
	"github.com/suparena/kindstore/codec"
	"github.com/suparena/kindstore/datastore"
	"github.com/suparena/kindstore/datastore/mock"
	"github.com/suparena/kindstore/errors"
	"github.com/suparena/kindstore/registry"
	"github.com/suparena/kindstore/schema"
	"github.com/suparena/kindstore/storagemodels"
	"go.uber.org/zap/zaptest"
	"google.golang.org/api/iterator"
)

// Test types
type TestAccount struct {
	ID   string
	Name string
}

func (TestAccount) DatastoreConfig() schema.Config {
	return schema.Config{Key: []schema.KeyPart{{Kind: "Account", Field: "ID"}}}
}

type TestInvoice struct {
	AccountID string
	ID        *int64
	Amount    int64
	Status    string
}

func (TestInvoice) DatastoreConfig() schema.Config {
	return schema.Config{Key: []schema.KeyPart{
		{Kind: "Account", Field: "AccountID"},
		{Kind: "Invoice", Field: "ID"},
	}}
}

func int64p(n int64) *int64 { return &n }

func newRepository(t *testing.T, opts ...kindstore.Option) (*kindstore.Repository, *mock.Executor) {
	t.Helper()
	reg := registry.New()
	_, err := registry.Register[TestAccount](reg)
	require.NoError(t, err)
	_, err = registry.Register[TestInvoice](reg)
	require.NoError(t, err)

	m := mock.New()
	opts = append([]kindstore.Option{
		kindstore.WithProject("test-project"),
		kindstore.WithLogger(zaptest.NewLogger(t)),
	}, opts...)
	return kindstore.New(m, codec.New(reg), opts...), m
}

func TestRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("InsertAndGet", func(t *testing.T) {
		repo, _ := newRepository(t)

		res, err := repo.Insert(ctx, &TestAccount{ID: "acme", Name: "Acme"})
		require.NoError(t, err)
		assert.Equal(t, "Account", res.Key.Kind())
		assert.Equal(t, "test-project", res.Key.Partition.ProjectID)

		got, err := repo.Get(ctx, repo.Key(storagemodels.NameElement("Account", "acme")))
		require.NoError(t, err)
		require.IsType(t, &TestAccount{}, got)
		assert.Equal(t, "Acme", got.(*TestAccount).Name)
	})

	t.Run("InsertReplaces", func(t *testing.T) {
		repo, m := newRepository(t)

		_, err := repo.Insert(ctx, &TestAccount{ID: "acme", Name: "Acme"})
		require.NoError(t, err)
		_, err = repo.Insert(ctx, &TestAccount{ID: "acme", Name: "Acme Corp"})
		require.NoError(t, err)

		assert.Equal(t, 1, m.Count())
		var acct TestAccount
		require.NoError(t, repo.GetInto(ctx, repo.Key(storagemodels.NameElement("Account", "acme")), &acct))
		assert.Equal(t, "Acme Corp", acct.Name)
	})

	t.Run("CreateConflicts", func(t *testing.T) {
		repo, _ := newRepository(t)

		_, err := repo.Create(ctx, &TestAccount{ID: "acme"})
		require.NoError(t, err)
		_, err = repo.Create(ctx, &TestAccount{ID: "acme"})
		assert.True(t, errors.IsAlreadyExists(err))
	})

	t.Run("GetMissing", func(t *testing.T) {
		repo, _ := newRepository(t)
		key := repo.Key(storagemodels.NameElement("Account", "nobody"))

		got, err := repo.Get(ctx, key)
		assert.NoError(t, err)
		assert.Nil(t, got)

		var acct TestAccount
		err = repo.GetInto(ctx, key, &acct)
		assert.True(t, errors.IsNotFound(err))
	})

	t.Run("Namespaces", func(t *testing.T) {
		repo, _ := newRepository(t, kindstore.WithNamespace("default"))

		_, err := repo.Insert(ctx, &TestAccount{ID: "acme", Name: "in other"}, "other")
		require.NoError(t, err)

		got, err := repo.Get(ctx, repo.Key(storagemodels.NameElement("Account", "acme")))
		require.NoError(t, err)
		assert.Nil(t, got)

		got, err = repo.Get(ctx, repo.KeyIn("other", storagemodels.NameElement("Account", "acme")))
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "in other", got.(*TestAccount).Name)
	})

	t.Run("UpsertAndDeleteMulti", func(t *testing.T) {
		repo, m := newRepository(t)

		results, err := repo.UpsertMulti(ctx, []any{
			&TestInvoice{AccountID: "acme", Amount: 10},
			&TestInvoice{AccountID: "acme", Amount: 20},
		})
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.False(t, results[0].Key.Incomplete())
		assert.NotEqual(t, results[0].Key.Path[1].ID, results[1].Key.Path[1].ID)
		assert.Equal(t, 2, m.Count())

		_, err = repo.DeleteMulti(ctx, []*storagemodels.Key{results[0].Key, results[1].Key})
		require.NoError(t, err)
		assert.Equal(t, 0, m.Count())
	})

	t.Run("UnregisteredType", func(t *testing.T) {
		repo, _ := newRepository(t)

		_, err := repo.Insert(ctx, &struct{ X int }{X: 1})
		assert.True(t, errors.IsNotFound(err))
	})

	t.Run("CommitError", func(t *testing.T) {
		repo, m := newRepository(t)
		m.WithCommitError(assert.AnError)

		_, err := repo.Insert(ctx, &TestAccount{ID: "acme"})
		assert.ErrorIs(t, err, assert.AnError)
	})
}

func TestBatch(t *testing.T) {
	ctx := context.Background()

	t.Run("SubmitAndClear", func(t *testing.T) {
		repo, m := newRepository(t)
		b := repo.Batch()
		assert.False(t, b.HasPending())

		require.NoError(t, b.AddItems(&TestAccount{ID: "a"}, &TestAccount{ID: "b"}))
		b.AddDelete(repo.Key(storagemodels.NameElement("Account", "c")))
		assert.True(t, b.HasPending())
		assert.Len(t, b.Mutations(), 3)

		results, err := repo.SubmitBatch(ctx, b)
		require.NoError(t, err)
		assert.Len(t, results, 3)
		assert.Equal(t, results, b.Results())
		assert.Equal(t, 2, m.Count())

		b.Clear()
		assert.False(t, b.HasPending())
		assert.Len(t, b.Results(), 3)
	})

	t.Run("Capacity", func(t *testing.T) {
		repo, _ := newRepository(t)
		b := repo.Batch()

		assert.True(t, b.HasCapacity(kindstore.BatchCapacity-1))
		assert.False(t, b.HasCapacity(kindstore.BatchCapacity))

		for i := 0; i < kindstore.BatchCapacity-2; i++ {
			require.NoError(t, b.AddItem(&TestInvoice{AccountID: "acme", Amount: int64(i)}))
		}
		assert.True(t, b.HasCapacity(1))
		assert.False(t, b.HasCapacity(2))
	})

	t.Run("Namespace", func(t *testing.T) {
		repo, _ := newRepository(t)
		b := repo.Batch("tenant")

		require.NoError(t, b.AddItem(&TestAccount{ID: "a"}))
		assert.Equal(t, "tenant", b.Mutations()[0].Entity.Key.Partition.NamespaceID)
	})

	t.Run("EncodeError", func(t *testing.T) {
		repo, _ := newRepository(t)
		b := repo.Batch()

		err := b.AddItems(&TestAccount{ID: "a"}, 42)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "item 1")
		assert.Len(t, b.Mutations(), 1)
	})
}

func TestRunQuery(t *testing.T) {
	ctx := context.Background()
	repo, m := newRepository(t)
	m.WithMaxSkip(2)

	var invoices []any
	for i := int64(1); i <= 6; i++ {
		status := "open"
		if i%2 == 0 {
			status = "paid"
		}
		invoices = append(invoices, &TestInvoice{AccountID: "acme", ID: int64p(i), Amount: i * 100, Status: status})
	}
	invoices = append(invoices, &TestInvoice{AccountID: "other", ID: int64p(7), Status: "open"})
	_, err := repo.UpsertMulti(ctx, invoices)
	require.NoError(t, err)

	t.Run("Filtered", func(t *testing.T) {
		q := repo.QueryFiltered("Invoice", storagemodels.Filter{
			Property: "Status",
			Op:       storagemodels.Equal,
			Value:    &storagemodels.ValueMemberString{Value: "paid"},
		})

		var amounts []int64
		for item, err := range repo.RunQuery(q).All(ctx) {
			require.NoError(t, err)
			amounts = append(amounts, item.(*TestInvoice).Amount)
		}
		assert.Equal(t, []int64{200, 400, 600}, amounts)
	})

	t.Run("Ancestor", func(t *testing.T) {
		q := repo.QueryAncestor("Invoice", repo.Key(storagemodels.NameElement("Account", "other")))

		item, err := repo.RunQuery(q).Next(ctx)
		require.NoError(t, err)
		inv := item.(*TestInvoice)
		assert.Equal(t, "other", inv.AccountID)
		assert.Equal(t, int64(7), *inv.ID)
	})

	t.Run("LimitAndOffset", func(t *testing.T) {
		q := repo.QueryAncestor("Invoice", repo.Key(storagemodels.NameElement("Account", "acme")))
		it := repo.RunQuery(q, datastore.WithOffset(3), datastore.WithLimit(2))

		var ids []int64
		for {
			item, err := it.Next(ctx)
			if err == iterator.Done {
				break
			}
			require.NoError(t, err)
			ids = append(ids, *item.(*TestInvoice).ID)
		}
		assert.Equal(t, []int64{4, 5}, ids)
	})

	t.Run("Raw", func(t *testing.T) {
		q := repo.QueryFiltered("Invoice")
		page, err := repo.RunQueryRaw(q, datastore.WithLimit(1)).NextPage(ctx)
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		e, ok := page.Items[0].(*storagemodels.Entity)
		require.True(t, ok)
		assert.Equal(t, "Invoice", e.Kind())
	})
}
