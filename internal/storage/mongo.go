package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"chat-api/internal/storage/zapadapter"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const defaultDatabaseName = "chat"

// mongoStore keeps every collection in one MongoDB database
type mongoStore struct {
	logger *zap.SugaredLogger
	db     *mongo.Database
}

func newMongoStore(ctx context.Context, logger *zap.SugaredLogger, cfg Config, s settings) (*mongoStore, error) {
	loggerOpts := options.Logger().
		SetSink(zapadapter.NewMongoSink(logger.Desugar())).
		SetComponentLevel(options.LogComponentConnection, options.LogLevelInfo)

	clientOpts := options.Client().
		ApplyURI(cfg.URL).
		SetConnectTimeout(s.connectTimeout).
		SetServerSelectionTimeout(s.connectTimeout).
		SetMaxPoolSize(uint64(s.maxConns)).
		SetLoggerOptions(loggerOpts)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("mongo.Connect: %w", err)
	}

	name := cfg.Name
	if name == "" {
		name = databaseFromURL(cfg.URL)
	}

	logger.Infof("Using MongoDB database %q", name)

	return newMongoStoreFromDatabase(logger, client.Database(name)), nil
}

func newMongoStoreFromDatabase(logger *zap.SugaredLogger, db *mongo.Database) *mongoStore {
	return &mongoStore{
		logger: logger,
		db:     db,
	}
}

// databaseFromURL returns the database named in the path of a mongodb url
func databaseFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return defaultDatabaseName
	}
	if name := strings.Trim(u.Path, "/"); name != "" {
		return name
	}
	return defaultDatabaseName
}

func (s *mongoStore) CreateDocument(ctx context.Context, collection string, doc Document) (string, error) {
	id := stamp(doc)
	s.logger.Debugf("Creating document %s in collection %s", id.Hex(), collection)

	_, err := s.db.Collection(collection).InsertOne(ctx, bson.M(doc))
	if err != nil {
		return "", fmt.Errorf("inserting into %s: %w", collection, err)
	}

	return id.Hex(), nil
}

func (s *mongoStore) GetDocuments(ctx context.Context, collection string, filter Filter, limit int64) ([]Document, error) {
	s.logger.Debugf("Retrieving documents from collection %s (limit: %d)", collection, limit)

	opts := options.Find()
	if limit > 0 {
		opts.SetLimit(limit)
	}

	cursor, err := s.db.Collection(collection).Find(ctx, mongoFilter(filter), opts)
	if err != nil {
		return nil, fmt.Errorf("finding in %s: %w", collection, err)
	}
	defer cursor.Close(ctx)

	var raw []bson.M
	if err := cursor.All(ctx, &raw); err != nil {
		return nil, fmt.Errorf("decoding %s documents: %w", collection, err)
	}

	docs := make([]Document, 0, len(raw))
	for _, r := range raw {
		docs = append(docs, Document(r))
	}

	s.logger.Debugf("Retrieved %d documents", len(docs))

	return docs, nil
}

func (s *mongoStore) FindOne(ctx context.Context, collection string, filter Filter) (Document, error) {
	var raw bson.M
	err := s.db.Collection(collection).FindOne(ctx, mongoFilter(filter)).Decode(&raw)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("finding one in %s: %w", collection, err)
	}
	return Document(raw), nil
}

func (s *mongoStore) AddToSet(ctx context.Context, collection string, filter Filter, field string, value interface{}) error {
	update := bson.M{"$addToSet": bson.M{field: value}}
	res, err := s.db.Collection(collection).UpdateOne(ctx, mongoFilter(filter), update)
	if err != nil {
		return fmt.Errorf("updating %s: %w", collection, err)
	}

	s.logger.Debugf("Add to set on %s.%s matched %d, modified %d", collection, field, res.MatchedCount, res.ModifiedCount)

	return nil
}

func (s *mongoStore) CollectionNames(ctx context.Context) ([]string, error) {
	names, err := s.db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("listing collections: %w", err)
	}
	return names, nil
}

func (s *mongoStore) Name() string {
	return s.db.Name()
}

func (s *mongoStore) Close(ctx context.Context) error {
	return s.db.Client().Disconnect(ctx)
}

// mongoFilter converts filter to bson, hex strings under IDField become ObjectIDs
func mongoFilter(filter Filter) bson.M {
	out := make(bson.M, len(filter))
	for k, v := range filter {
		if k == IDField {
			if hex, ok := v.(string); ok {
				if id, err := primitive.ObjectIDFromHex(hex); err == nil {
					v = id
				}
			}
		}
		out[k] = v
	}
	return out
}
