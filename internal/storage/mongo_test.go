package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
	"go.uber.org/zap"
)

func TestMongoStore(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	bootstrap := func(mt *mtest.T) *mongoStore {
		return newMongoStoreFromDatabase(zap.NewNop().Sugar(), mt.DB)
	}

	mt.Run("create document", func(mt *mtest.T) {
		s := bootstrap(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		doc := Document{"display_name": "alice", "status": "online"}
		id, err := s.CreateDocument(ctx, "user", doc)
		require.NoError(mt, err)
		require.Equal(mt, doc[IDField].(primitive.ObjectID).Hex(), id)
		require.IsType(mt, time.Time{}, doc[CreatedAtField])
	})

	mt.Run("create document error", func(mt *mtest.T) {
		s := bootstrap(mt)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    13,
			Name:    "Unauthorized",
			Message: "not authorized",
		}))

		_, err := s.CreateDocument(ctx, "user", Document{"display_name": "alice"})
		require.Error(mt, err)
	})

	mt.Run("get documents", func(mt *mtest.T) {
		s := bootstrap(mt)
		ns := mt.DB.Name() + ".message"
		first, second := primitive.NewObjectID(), primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			bson.D{{Key: "_id", Value: first}, {Key: "room_id", Value: "r"}, {Key: "content", Value: "hi"}},
			bson.D{{Key: "_id", Value: second}, {Key: "room_id", Value: "r"}, {Key: "content", Value: "there"}},
		))

		docs, err := s.GetDocuments(ctx, "message", Filter{"room_id": "r"}, 50)
		require.NoError(mt, err)
		require.Len(mt, docs, 2)
		require.Equal(mt, first, docs[0][IDField])
		require.Equal(mt, "there", docs[1]["content"])
	})

	mt.Run("get documents empty", func(mt *mtest.T) {
		s := bootstrap(mt)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, mt.DB.Name()+".user", mtest.FirstBatch))

		docs, err := s.GetDocuments(ctx, "user", Filter{}, 0)
		require.NoError(mt, err)
		require.NotNil(mt, docs)
		require.Empty(mt, docs)
	})

	mt.Run("find one", func(mt *mtest.T) {
		s := bootstrap(mt)
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, mt.DB.Name()+".user", mtest.FirstBatch,
			bson.D{{Key: "_id", Value: id}, {Key: "display_name", Value: "alice"}},
		))

		doc, err := s.FindOne(ctx, "user", Filter{IDField: id.Hex()})
		require.NoError(mt, err)
		require.Equal(mt, id, doc[IDField])
		require.Equal(mt, "alice", doc["display_name"])
	})

	mt.Run("find one not found", func(mt *mtest.T) {
		s := bootstrap(mt)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, mt.DB.Name()+".user", mtest.FirstBatch))

		_, err := s.FindOne(ctx, "user", Filter{IDField: primitive.NewObjectID()})
		require.ErrorIs(mt, err, ErrNotFound)
	})

	mt.Run("add to set", func(mt *mtest.T) {
		s := bootstrap(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 1},
		))

		err := s.AddToSet(ctx, "room", Filter{IDField: primitive.NewObjectID()}, "members", "u1")
		require.NoError(mt, err)
	})

	mt.Run("collection names", func(mt *mtest.T) {
		s := bootstrap(mt)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, mt.DB.Name()+".$cmd.listCollections", mtest.FirstBatch,
			bson.D{{Key: "name", Value: "user"}, {Key: "type", Value: "collection"}},
			bson.D{{Key: "name", Value: "room"}, {Key: "type", Value: "collection"}},
		))

		names, err := s.CollectionNames(ctx)
		require.NoError(mt, err)
		require.Equal(mt, []string{"user", "room"}, names)
	})
}

func TestMongoFilter(t *testing.T) {
	id := primitive.NewObjectID()

	f := mongoFilter(Filter{IDField: id.Hex(), "room_id": id.Hex()})
	require.Equal(t, id, f[IDField])
	require.Equal(t, id.Hex(), f["room_id"])

	f = mongoFilter(Filter{IDField: "not-an-id"})
	require.Equal(t, "not-an-id", f[IDField])
}
