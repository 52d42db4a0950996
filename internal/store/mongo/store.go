// Package mongo implements the record store adapter over a remote MongoDB
// database. Change streams push every committed write back to subscribers,
// which is the sole path by which repository state is updated in cloud
// mode.
package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Store owns the client connection shared by all collections.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewStore connects to the document store and verifies the connection.
func NewStore(uri, dbName string, connectTimeout time.Duration) (*Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo store: connect: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo store: ping: %w", err)
	}

	return &Store{client: client, db: client.Database(dbName)}, nil
}

func (s *Store) Database() *mongo.Database {
	return s.db
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
