package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Field names maintained by the storage layer on every document.
const (
	IDField        = "_id"
	CreatedAtField = "created_at"
	UpdatedAtField = "updated_at"
)

var (
	ErrNotFound          = errors.New("document not found")
	ErrInvalidID         = errors.New("invalid identifier")
	ErrUnsupportedScheme = errors.New("unsupported database url scheme")
)

// Document is a single stored record keyed by field name.
// The internal identifier lives under IDField as a primitive.ObjectID.
type Document map[string]interface{}

// Filter restricts a query to documents whose fields equal the given values.
type Filter map[string]interface{}

// Store is the document store used by the HTTP layer.
// Implementations must be safe for concurrent use.
type Store interface {
	// CreateDocument inserts doc into collection and returns the new identifier as hex string.
	// IDField, CreatedAtField and UpdatedAtField are set on doc before insertion.
	CreateDocument(ctx context.Context, collection string, doc Document) (string, error)

	// GetDocuments returns documents matching filter, at most limit of them when limit is positive.
	// An empty slice is returned when nothing matches.
	GetDocuments(ctx context.Context, collection string, filter Filter, limit int64) ([]Document, error)

	// FindOne returns the first document matching filter or ErrNotFound.
	FindOne(ctx context.Context, collection string, filter Filter) (Document, error)

	// AddToSet appends value to the array field of the first document matching filter
	// unless the array already contains it.
	AddToSet(ctx context.Context, collection string, filter Filter, field string, value interface{}) error

	// CollectionNames lists collections of the underlying database.
	CollectionNames(ctx context.Context) ([]string, error)

	// Name returns the database name.
	Name() string

	Close(ctx context.Context) error
}

// ParseID converts external hex representation of identifier into primitive.ObjectID.
// Only the canonical form of 24 lower-case hex characters is accepted.
func ParseID(hex string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil || id.Hex() != hex {
		return primitive.NilObjectID, fmt.Errorf("%w: %q", ErrInvalidID, hex)
	}
	return id, nil
}

// Open connects to the store addressed by cfg.URL. The URL scheme selects the backend:
// mongodb and mongodb+srv for MongoDB, postgres and postgresql for PostgreSQL, memory for in-process store.
func Open(ctx context.Context, logger *zap.SugaredLogger, cfg Config, opts ...Option) (Store, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing database url: %w", err)
	}

	s := defaultSettings()
	for _, o := range opts {
		o.apply(&s)
	}

	switch strings.ToLower(u.Scheme) {
	case "mongodb", "mongodb+srv":
		store, err := newMongoStore(ctx, logger, cfg, s)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "postgres", "postgresql":
		store, err := newPostgresStore(ctx, logger, cfg, s)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "memory":
		return NewMemory(logger, strings.Trim(u.Host+u.Path, "/")), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
}

// now returns current time truncated to the precision every backend can persist
func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// stamp assigns a fresh identifier and timestamps to doc
func stamp(doc Document) primitive.ObjectID {
	id := primitive.NewObjectID()
	t := now()
	doc[IDField] = id
	doc[CreatedAtField] = t
	doc[UpdatedAtField] = t
	return id
}

// copyDocument makes a copy of doc so callers cannot mutate stored state.
// String slices are widened to []interface{}, the shape documents are read back in.
func copyDocument(doc Document) Document {
	out := make(Document, len(doc))
	for k, v := range doc {
		switch a := v.(type) {
		case []interface{}:
			v = append([]interface{}(nil), a...)
		case []string:
			wide := make([]interface{}, len(a))
			for i, s := range a {
				wide[i] = s
			}
			v = wide
		}
		out[k] = v
	}
	return out
}
