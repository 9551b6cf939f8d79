package storage

import (
	"context"
	"os"
	"testing"
	"time"

	mytesting "chat-api/internal/testing"

	"github.com/jackc/pgtype"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func TestWhereClause(t *testing.T) {
	id := primitive.NewObjectID()

	where, args, err := whereClause(Filter{}, nil)
	require.NoError(t, err)
	require.Equal(t, "true", where)
	require.Empty(t, args)

	where, args, err = whereClause(Filter{IDField: id}, []interface{}{"members"})
	require.NoError(t, err)
	require.Equal(t, "id = $2", where)
	require.Equal(t, []interface{}{"members", id.Hex()}, args)

	where, args, err = whereClause(Filter{"room_id": "r1"}, nil)
	require.NoError(t, err)
	require.Equal(t, "doc @> $1::jsonb", where)
	require.Len(t, args, 1)
	require.Equal(t, `{"room_id":"r1"}`, string(args[0].(pgtype.JSONB).Bytes))

	_, _, err = whereClause(Filter{IDField: "nope"}, nil)
	require.ErrorIs(t, err, ErrInvalidID)
}

func TestDocumentBody(t *testing.T) {
	doc := Document{"name": "general"}
	stamp(doc)

	require.Equal(t, Document{"name": "general"}, documentBody(doc))
}

// bootstrapPostgres connects to the database from TEST_POSTGRES_URL and skips the test otherwise
func bootstrapPostgres(t *testing.T) *postgresStore {
	url := os.Getenv("TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("TEST_POSTGRES_URL is not set")
	}

	logger, err := zap.NewDevelopment()
	require.NoError(t, err)

	s, err := newPostgresStore(context.Background(), logger.Sugar(), Config{URL: url}, defaultSettings())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close(context.Background()) })

	return s
}

func TestPostgresDocuments(t *testing.T) {
	s := bootstrapPostgres(t)
	ctx := context.Background()
	collection := "test_" + mytesting.RandString()

	doc := Document{"name": "general", "members": []string{}, "is_private": false}
	id, err := s.CreateDocument(ctx, collection, doc)
	require.NoError(t, err)

	got, err := s.FindOne(ctx, collection, Filter{IDField: id})
	require.NoError(t, err)
	require.Equal(t, doc[IDField], got[IDField])
	require.True(t, doc[CreatedAtField].(time.Time).Equal(got[CreatedAtField].(time.Time)))
	require.Equal(t, "general", got["name"])
	require.Equal(t, false, got["is_private"])

	for i := 0; i < 2; i++ {
		require.NoError(t, s.AddToSet(ctx, collection, Filter{IDField: id}, "members", "u1"))
	}

	got, err = s.FindOne(ctx, collection, Filter{IDField: id})
	require.NoError(t, err)
	require.Equal(t, []interface{}{"u1"}, got["members"])

	docs, err := s.GetDocuments(ctx, collection, Filter{"name": "general"}, 10)
	require.NoError(t, err)
	require.Len(t, docs, 1)

	names, err := s.CollectionNames(ctx)
	require.NoError(t, err)
	require.Contains(t, names, collection)

	_, err = s.db.Exec(ctx, "drop table "+table(collection))
	require.NoError(t, err)
}

func TestPostgresMissingCollection(t *testing.T) {
	s := bootstrapPostgres(t)
	ctx := context.Background()
	collection := "missing_" + mytesting.RandString()

	docs, err := s.GetDocuments(ctx, collection, Filter{}, 0)
	require.NoError(t, err)
	require.Empty(t, docs)

	_, err = s.FindOne(ctx, collection, Filter{IDField: primitive.NewObjectID()})
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.AddToSet(ctx, collection, Filter{IDField: primitive.NewObjectID()}, "members", "u1"))
}
