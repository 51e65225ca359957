package catalog

import (
	"context"
	"time"
)

// ItemStore persists catalog items.
type ItemStore interface {
	CreateItem(ctx context.Context, collectionID int64, md Metadata) (Item, error)
}

// CollectionStore reads collections and manages their field mapping.
type CollectionStore interface {
	GetCollection(ctx context.Context, id int64) (Collection, error)
	GetFieldMapping(ctx context.Context, id int64) (*FieldMapping, error)
	SaveFieldMapping(ctx context.Context, id int64, fm FieldMapping) error
	DeleteFieldMapping(ctx context.Context, id int64) error
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// IDGenerator produces unique identifiers.
type IDGenerator interface {
	NewID() (string, error)
}
