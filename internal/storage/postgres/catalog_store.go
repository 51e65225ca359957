package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/JakeFAU/collection-ingest/internal/catalog"
	"github.com/JakeFAU/collection-ingest/internal/mapping"
)

// CatalogStore implements catalog.ItemStore and catalog.CollectionStore.
type CatalogStore struct {
	db     querier
	tables Tables
	clock  catalog.Clock
	ids    catalog.IDGenerator
}

// NewCatalogStore wraps an existing pool. Passing a pgxmock pool is supported for tests.
func NewCatalogStore(db querier, tables Tables, clock catalog.Clock, ids catalog.IDGenerator) (*CatalogStore, error) {
	if db == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if clock == nil || ids == nil {
		return nil, fmt.Errorf("clock and id generator are required")
	}
	tables = tables.withDefaults()
	if err := tables.validate(); err != nil {
		return nil, err
	}
	return &CatalogStore{db: db, tables: tables, clock: clock, ids: ids}, nil
}

// CreateItem inserts an item with a derived title.
func (s *CatalogStore) CreateItem(ctx context.Context, collectionID int64, md catalog.Metadata) (catalog.Item, error) {
	id, err := s.ids.NewID()
	if err != nil {
		return catalog.Item{}, fmt.Errorf("item id: %w", err)
	}
	payload, err := md.MarshalJSON()
	if err != nil {
		return catalog.Item{}, fmt.Errorf("marshal metadata: %w", err)
	}
	item := catalog.Item{
		ID:           id,
		CollectionID: collectionID,
		Title:        catalog.DeriveTitle(md),
		Metadata:     md.Clone(),
		CreatedAt:    s.clock.Now(),
	}
	query := fmt.Sprintf(
		`INSERT INTO %s (id, collection_id, title, metadata, created_at) VALUES ($1,$2,$3,$4,$5)`,
		s.tables.Items,
	)
	if _, err := s.db.Exec(ctx, query, item.ID, item.CollectionID, item.Title, payload, item.CreatedAt); err != nil {
		return catalog.Item{}, fmt.Errorf("insert item: %w", err)
	}
	return item, nil
}

// GetCollection loads a collection and its decoded field mapping.
func (s *CatalogStore) GetCollection(ctx context.Context, id int64) (catalog.Collection, error) {
	query := fmt.Sprintf(`SELECT id, name, field_mapping FROM %s WHERE id = $1`, s.tables.Collections)
	var (
		col catalog.Collection
		raw []byte
	)
	if err := s.db.QueryRow(ctx, query, id).Scan(&col.ID, &col.Name, &raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return catalog.Collection{}, catalog.ErrNotFound
		}
		return catalog.Collection{}, fmt.Errorf("get collection: %w", err)
	}
	fm, err := mapping.Decode(raw)
	if err != nil {
		return catalog.Collection{}, fmt.Errorf("collection %d: %w", id, err)
	}
	col.FieldMapping = fm
	return col, nil
}

// GetFieldMapping returns the stored mapping, or nil when none is set.
func (s *CatalogStore) GetFieldMapping(ctx context.Context, id int64) (*catalog.FieldMapping, error) {
	col, err := s.GetCollection(ctx, id)
	if err != nil {
		return nil, err
	}
	return col.FieldMapping, nil
}

// SaveFieldMapping replaces the collection's mapping.
func (s *CatalogStore) SaveFieldMapping(ctx context.Context, id int64, fm catalog.FieldMapping) error {
	payload, err := mapping.Encode(fm)
	if err != nil {
		return err
	}
	return s.setFieldMapping(ctx, id, payload)
}

// DeleteFieldMapping clears the collection's mapping.
func (s *CatalogStore) DeleteFieldMapping(ctx context.Context, id int64) error {
	return s.setFieldMapping(ctx, id, nil)
}

func (s *CatalogStore) setFieldMapping(ctx context.Context, id int64, payload []byte) error {
	query := fmt.Sprintf(`UPDATE %s SET field_mapping = $1 WHERE id = $2`, s.tables.Collections)
	tag, err := s.db.Exec(ctx, query, payload, id)
	if err != nil {
		return fmt.Errorf("update field mapping: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrNotFound
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *CatalogStore) Close() {
	if s == nil || s.db == nil {
		return
	}
	s.db.Close()
}
