package mongo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/JakeFAU/dealfeed-collector/internal/collector"
)

type fakeCollection struct {
	docs []any
	err  error
}

func (f *fakeCollection) InsertOne(_ context.Context, doc any, _ ...*options.InsertOneOptions) (*mongo.InsertOneResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.docs = append(f.docs, doc)
	return &mongo.InsertOneResult{}, nil
}

func newFakeStore(coll *fakeCollection, names *[]string) *RecordStore {
	return &RecordStore{collection: func(name string) inserter {
		*names = append(*names, name)
		return coll
	}}
}

func TestInsertRecordWritesDocument(t *testing.T) {
	t.Parallel()

	coll := &fakeCollection{}
	var names []string
	store := newFakeStore(coll, &names)

	category := "Toys"
	rec := collector.IngestRecord{
		ID:            11,
		CreatedAt:     time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Text:          "Lego",
		Views:         5,
		OriginItemURL: "https://amazon.com/toys",
		Price:         "120 ש\"ח",
		Category:      &category,
		ImageID:       "d41d8cd98f00b204e9800998ecf8427e",
	}
	require.NoError(t, store.InsertRecord(context.Background(), "telegram_messages", rec))

	require.Equal(t, []string{"telegram_messages"}, names)
	require.Len(t, coll.docs, 1)
	doc, ok := coll.docs[0].(bson.D)
	require.True(t, ok)
	fields := doc.Map()
	assert.Equal(t, int64(11), fields["_id"])
	assert.Equal(t, "Lego", fields["text"])
	assert.Equal(t, &category, fields["category"])
	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", fields["image_id"])
	assert.Nil(t, fields["bucket_image_url"].(*string))
}

func TestInsertRecordErrors(t *testing.T) {
	t.Parallel()

	coll := &fakeCollection{err: errors.New("E11000 duplicate key")}
	var names []string
	store := newFakeStore(coll, &names)

	err := store.InsertRecord(context.Background(), "telegram_messages", collector.IngestRecord{ID: 1})
	require.ErrorContains(t, err, "duplicate key")

	err = store.InsertRecord(context.Background(), "bad.name", collector.IngestRecord{ID: 1})
	require.Error(t, err)
	assert.Len(t, names, 1)
}

func TestNewRecordStoreValidation(t *testing.T) {
	t.Parallel()

	_, err := NewRecordStore(context.Background(), Config{Database: "db"})
	require.Error(t, err)
	_, err = NewRecordStore(context.Background(), Config{URI: "mongodb://localhost:27017"})
	require.Error(t, err)
}
