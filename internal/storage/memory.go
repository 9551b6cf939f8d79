package storage

import (
	"context"
	"reflect"
	"sort"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Memory is an in-process Store. Documents are kept per collection in insertion order.
type Memory struct {
	logger *zap.SugaredLogger
	name   string

	mu          sync.RWMutex
	collections map[string][]Document
}

// NewMemory returns empty in-memory store named name
func NewMemory(logger *zap.SugaredLogger, name string) *Memory {
	if name == "" {
		name = defaultDatabaseName
	}
	return &Memory{
		logger:      logger,
		name:        name,
		collections: make(map[string][]Document),
	}
}

func (m *Memory) CreateDocument(_ context.Context, collection string, doc Document) (string, error) {
	id := stamp(doc)
	m.logger.Debugf("Creating document %s in collection %s", id.Hex(), collection)

	m.mu.Lock()
	m.collections[collection] = append(m.collections[collection], copyDocument(doc))
	m.mu.Unlock()

	return id.Hex(), nil
}

func (m *Memory) GetDocuments(_ context.Context, collection string, filter Filter, limit int64) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	docs := make([]Document, 0)
	for _, doc := range m.collections[collection] {
		if limit > 0 && int64(len(docs)) >= limit {
			break
		}
		if matches(doc, filter) {
			docs = append(docs, copyDocument(doc))
		}
	}

	return docs, nil
}

func (m *Memory) FindOne(_ context.Context, collection string, filter Filter) (Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, doc := range m.collections[collection] {
		if matches(doc, filter) {
			return copyDocument(doc), nil
		}
	}

	return nil, ErrNotFound
}

func (m *Memory) AddToSet(_ context.Context, collection string, filter Filter, field string, value interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, doc := range m.collections[collection] {
		if !matches(doc, filter) {
			continue
		}

		set, _ := doc[field].([]interface{})
		for _, v := range set {
			if reflect.DeepEqual(v, value) {
				return nil
			}
		}
		doc[field] = append(append([]interface{}(nil), set...), value)
		return nil
	}

	return nil
}

func (m *Memory) CollectionNames(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.collections))
	for name := range m.collections {
		names = append(names, name)
	}
	sort.Strings(names)

	return names, nil
}

func (m *Memory) Name() string {
	return m.name
}

func (m *Memory) Close(_ context.Context) error {
	return nil
}

// matches reports whether every filter field equals the document field.
// Array fields match when they contain the filter value.
func matches(doc Document, filter Filter) bool {
	for k, want := range filter {
		got, ok := doc[k]
		if !ok {
			return false
		}

		if k == IDField {
			if hex, isString := want.(string); isString {
				id, err := primitive.ObjectIDFromHex(hex)
				if err != nil {
					return false
				}
				want = id
			}
		}

		if reflect.DeepEqual(got, want) {
			continue
		}

		arr, isArray := got.([]interface{})
		if !isArray || !contains(arr, want) {
			return false
		}
	}
	return true
}

func contains(arr []interface{}, v interface{}) bool {
	for _, e := range arr {
		if reflect.DeepEqual(e, v) {
			return true
		}
	}
	return false
}
