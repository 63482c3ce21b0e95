// Package mongo provides a MongoDB-backed record store.
package mongo

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/JakeFAU/dealfeed-collector/internal/collector"
)

var validCollection = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config describes the Mongo deployment records are written to.
type Config struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
}

type inserter interface {
	InsertOne(ctx context.Context, document any, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
}

// RecordStore writes one document per record, keyed by message id.
type RecordStore struct {
	client     *mongo.Client
	collection func(name string) inserter
}

// NewRecordStore connects to Mongo and verifies the deployment is reachable.
func NewRecordStore(ctx context.Context, cfg Config) (*RecordStore, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("records.mongo_uri is required")
	}
	if cfg.Database == "" {
		return nil, fmt.Errorf("records.mongo_database is required")
	}
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	db := client.Database(cfg.Database)
	return &RecordStore{
		client: client,
		collection: func(name string) inserter {
			return db.Collection(name)
		},
	}, nil
}

// InsertRecord inserts record into the collection named table.
func (s *RecordStore) InsertRecord(ctx context.Context, table string, record collector.IngestRecord) error {
	if !validCollection.MatchString(table) {
		return fmt.Errorf("invalid collection name %q", table)
	}
	if _, err := s.collection(table).InsertOne(ctx, document(record)); err != nil {
		return fmt.Errorf("insert record %d: %w", record.ID, err)
	}
	return nil
}

// Close disconnects the client.
func (s *RecordStore) Close(ctx context.Context) error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

func document(record collector.IngestRecord) bson.D {
	var imageID any
	if record.ImageID != "" {
		imageID = record.ImageID
	}
	return bson.D{
		{Key: "_id", Value: record.ID},
		{Key: "created_at", Value: record.CreatedAt.UTC()},
		{Key: "text", Value: record.Text},
		{Key: "views", Value: record.Views},
		{Key: "origin_item_url", Value: record.OriginItemURL},
		{Key: "bucket_image_url", Value: record.BucketImageURL},
		{Key: "image_id", Value: imageID},
		{Key: "price", Value: record.Price},
		{Key: "category", Value: record.Category},
	}
}
