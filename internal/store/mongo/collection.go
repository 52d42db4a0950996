package mongo

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"snapexpense/internal/store"
)

// Collection adapts one MongoDB collection to the record store contract.
// Documents are keyed by _id so retried writes stay idempotent.
type Collection[T any] struct {
	col    *mongo.Collection
	logger *slog.Logger
}

func NewCollection[T any](s *Store, name string, logger *slog.Logger) *Collection[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collection[T]{col: s.db.Collection(name), logger: logger}
}

func (c *Collection[T]) Put(ctx context.Context, id string, rec T) error {
	_, err := c.col.ReplaceOne(ctx,
		bson.D{{Key: "_id", Value: id}},
		rec,
		options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongo store: put %s/%s: %w", c.col.Name(), id, err)
	}
	return nil
}

func (c *Collection[T]) Patch(ctx context.Context, id string, fields map[string]any) error {
	update := bson.M{}
	for k, v := range fields {
		update[k] = v
	}
	// Matching nothing is deliberately not an error.
	_, err := c.col.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: id}},
		bson.M{"$set": update})
	if err != nil {
		return fmt.Errorf("mongo store: patch %s/%s: %w", c.col.Name(), id, err)
	}
	return nil
}

func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	_, err := c.col.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return fmt.Errorf("mongo store: delete %s/%s: %w", c.col.Name(), id, err)
	}
	return nil
}

// DeleteWhere issues a single server-side multi-delete so a crash cannot
// leave a partial cascade behind.
func (c *Collection[T]) DeleteWhere(ctx context.Context, field string, value any) error {
	_, err := c.col.DeleteMany(ctx, bson.D{{Key: field, Value: value}})
	if err != nil {
		return fmt.Errorf("mongo store: delete where %s.%s: %w", c.col.Name(), field, err)
	}
	return nil
}

// Subscribe delivers the current collection contents, then watches the
// change stream and re-delivers the full contents after every committed
// write, including the writer's own. Delivery order across clients is not
// guaranteed to match creation order; consumers re-sort.
func (c *Collection[T]) Subscribe(ctx context.Context, onChange func(records []T), onError func(error)) (store.CancelFunc, error) {
	records, err := c.fetchAll(ctx)
	if err != nil {
		return nil, err
	}

	streamCtx, cancel := context.WithCancel(context.Background())

	stream, err := c.col.Watch(streamCtx, mongo.Pipeline{})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("mongo store: watch %s: %w", c.col.Name(), err)
	}

	onChange(records)

	go func() {
		defer func() {
			_ = stream.Close(context.Background())
		}()

		for stream.Next(streamCtx) {
			current, err := c.fetchAll(streamCtx)
			if err != nil {
				if streamCtx.Err() != nil {
					return
				}
				c.logger.Error("change stream refetch failed", "collection", c.col.Name(), "error", err)
				continue
			}
			onChange(current)
		}

		if err := stream.Err(); err != nil && streamCtx.Err() == nil {
			c.logger.Error("change stream broken", "collection", c.col.Name(), "error", err)
			if onError != nil {
				onError(err)
			}
		}
	}()

	return store.CancelFunc(cancel), nil
}

func (c *Collection[T]) fetchAll(ctx context.Context) ([]T, error) {
	cursor, err := c.col.Find(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("mongo store: list %s: %w", c.col.Name(), err)
	}

	var records []T
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("mongo store: decode %s: %w", c.col.Name(), err)
	}
	return records, nil
}
