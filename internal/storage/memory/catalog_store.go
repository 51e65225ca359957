package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/collection-ingest/internal/catalog"
)

// CatalogStore implements catalog.ItemStore and catalog.CollectionStore with maps.
type CatalogStore struct {
	mu          sync.RWMutex
	collections map[int64]catalog.Collection
	items       map[int64][]catalog.Item
	clock       catalog.Clock
	ids         catalog.IDGenerator
}

// NewCatalogStore constructs an empty CatalogStore.
func NewCatalogStore(clock catalog.Clock, ids catalog.IDGenerator) *CatalogStore {
	return &CatalogStore{
		collections: make(map[int64]catalog.Collection),
		items:       make(map[int64][]catalog.Item),
		clock:       clock,
		ids:         ids,
	}
}

// AddCollection registers a collection. Used for seeding and tests.
func (s *CatalogStore) AddCollection(col catalog.Collection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	col.FieldMapping = cloneMapping(col.FieldMapping)
	s.collections[col.ID] = col
}

// CreateItem stores a new item in the collection.
func (s *CatalogStore) CreateItem(_ context.Context, collectionID int64, md catalog.Metadata) (catalog.Item, error) {
	id, err := s.ids.NewID()
	if err != nil {
		return catalog.Item{}, fmt.Errorf("item id: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[collectionID]; !ok {
		return catalog.Item{}, fmt.Errorf("collection %d: %w", collectionID, catalog.ErrNotFound)
	}
	item := catalog.Item{
		ID:           id,
		CollectionID: collectionID,
		Title:        catalog.DeriveTitle(md),
		Metadata:     md.Clone(),
		CreatedAt:    s.clock.Now(),
	}
	s.items[collectionID] = append(s.items[collectionID], item)
	return item, nil
}

// Items returns the items stored for a collection in creation order.
func (s *CatalogStore) Items(collectionID int64) []catalog.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]catalog.Item, len(s.items[collectionID]))
	copy(out, s.items[collectionID])
	return out
}

// GetCollection returns the collection or catalog.ErrNotFound.
func (s *CatalogStore) GetCollection(_ context.Context, id int64) (catalog.Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	col, ok := s.collections[id]
	if !ok {
		return catalog.Collection{}, catalog.ErrNotFound
	}
	col.FieldMapping = cloneMapping(col.FieldMapping)
	return col, nil
}

// GetFieldMapping returns a copy of the stored mapping or nil.
func (s *CatalogStore) GetFieldMapping(ctx context.Context, id int64) (*catalog.FieldMapping, error) {
	col, err := s.GetCollection(ctx, id)
	if err != nil {
		return nil, err
	}
	return col.FieldMapping, nil
}

// SaveFieldMapping replaces the collection's mapping.
func (s *CatalogStore) SaveFieldMapping(_ context.Context, id int64, fm catalog.FieldMapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	col, ok := s.collections[id]
	if !ok {
		return catalog.ErrNotFound
	}
	col.FieldMapping = cloneMapping(&fm)
	s.collections[id] = col
	return nil
}

// DeleteFieldMapping clears the collection's mapping.
func (s *CatalogStore) DeleteFieldMapping(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	col, ok := s.collections[id]
	if !ok {
		return catalog.ErrNotFound
	}
	col.FieldMapping = nil
	s.collections[id] = col
	return nil
}

func cloneMapping(fm *catalog.FieldMapping) *catalog.FieldMapping {
	if fm == nil {
		return nil
	}
	out := &catalog.FieldMapping{
		Mapping:        make(map[string]string, len(fm.Mapping)),
		IgnoreUnmapped: fm.IgnoreUnmapped,
	}
	for k, v := range fm.Mapping {
		out.Mapping[k] = v
	}
	return out
}
