package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/collection-ingest/internal/catalog"
	"github.com/JakeFAU/collection-ingest/internal/clock/system"
)

type fixedIDs struct{ id string }

func (f fixedIDs) NewID() (string, error) { return f.id, nil }

func newCatalogStore(t *testing.T) (*CatalogStore, pgxmock.PgxPoolIface, time.Time) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	now := time.Unix(1700000000, 0).UTC()
	store, err := NewCatalogStore(mock, Tables{}, system.NewFrozen(now), fixedIDs{id: "item-1"})
	require.NoError(t, err)
	return store, mock, now
}

func TestCreateItemInsertsRow(t *testing.T) {
	t.Parallel()

	store, mock, now := newCatalogStore(t)
	md := catalog.NewMetadata("title", "채식주의자", "author", "한강")

	mock.ExpectExec("INSERT INTO items").
		WithArgs(
			"item-1",
			int64(7),
			"채식주의자",
			[]byte(`{"title":"채식주의자","author":"한강"}`),
			now,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	item, err := store.CreateItem(context.Background(), 7, md)
	require.NoError(t, err)
	require.Equal(t, "item-1", item.ID)
	require.Equal(t, "채식주의자", item.Title)
	require.Equal(t, []string{"title", "author"}, item.Metadata.Keys())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCollectionDecodesMapping(t *testing.T) {
	t.Parallel()

	store, mock, _ := newCatalogStore(t)
	rows := pgxmock.NewRows([]string{"id", "name", "field_mapping"}).
		AddRow(int64(3), "Books", []byte(`{"mapping":{"title":"name"},"ignore_unmapped":true}`))
	mock.ExpectQuery("SELECT id, name, field_mapping FROM collections").
		WithArgs(int64(3)).
		WillReturnRows(rows)

	col, err := store.GetCollection(context.Background(), 3)
	require.NoError(t, err)
	require.Equal(t, "Books", col.Name)
	require.NotNil(t, col.FieldMapping)
	require.Equal(t, map[string]string{"title": "name"}, col.FieldMapping.Mapping)
	require.True(t, col.FieldMapping.IgnoreUnmapped)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetFieldMappingNullColumn(t *testing.T) {
	t.Parallel()

	store, mock, _ := newCatalogStore(t)
	rows := pgxmock.NewRows([]string{"id", "name", "field_mapping"}).AddRow(int64(3), "Books", nil)
	mock.ExpectQuery("SELECT id, name, field_mapping FROM collections").WithArgs(int64(3)).WillReturnRows(rows)

	fm, err := store.GetFieldMapping(context.Background(), 3)
	require.NoError(t, err)
	require.Nil(t, fm)
}

func TestGetCollectionNotFound(t *testing.T) {
	t.Parallel()

	store, mock, _ := newCatalogStore(t)
	mock.ExpectQuery("SELECT id, name, field_mapping FROM collections").
		WithArgs(int64(99)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "field_mapping"}))

	_, err := store.GetCollection(context.Background(), 99)
	require.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestSaveAndDeleteFieldMapping(t *testing.T) {
	t.Parallel()

	store, mock, _ := newCatalogStore(t)
	update := regexp.QuoteMeta("UPDATE collections SET field_mapping = $1 WHERE id = $2")
	mock.ExpectExec(update).
		WithArgs([]byte(`{"mapping":{"author":"writer"},"ignore_unmapped":false}`), int64(5)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(update).
		WithArgs([]byte(nil), int64(5)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(update).
		WithArgs([]byte(nil), int64(6)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	ctx := context.Background()
	require.NoError(t, store.SaveFieldMapping(ctx, 5, catalog.FieldMapping{Mapping: map[string]string{"author": "writer"}}))
	require.NoError(t, store.DeleteFieldMapping(ctx, 5))
	require.ErrorIs(t, store.DeleteFieldMapping(ctx, 6), catalog.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewCatalogStoreRejectsBadTable(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewCatalogStore(mock, Tables{Items: "items; DROP"}, system.New(), fixedIDs{})
	require.ErrorContains(t, err, "invalid table name")
}
