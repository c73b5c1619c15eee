package storage

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/your-org/annotate/internal/config"
)

// MongoStore backs DurableStore with a MongoDB database. Documents cross the
// boundary as plain JSON bytes; the driver-internal _id never leaves this
// package.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

func NewMongoStore(cfg config.MongoConfig) (*MongoStore, error) {
	client, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.URI()))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}

	if err := client.Ping(context.Background(), nil); err != nil {
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	return &MongoStore{
		client: client,
		db:     client.Database(cfg.Database),
	}, nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *MongoStore) FindOne(ctx context.Context, collection string, query Query) ([]byte, error) {
	var doc bson.M
	err := s.db.Collection(collection).FindOne(ctx, bson.M(query)).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("find one in %s: %w", collection, err)
	}
	delete(doc, "_id")

	data, err := bson.MarshalExtJSON(doc, false, false)
	if err != nil {
		return nil, fmt.Errorf("encode document from %s: %w", collection, err)
	}
	return data, nil
}

func (s *MongoStore) Upsert(ctx context.Context, collection string, query Query, data []byte) error {
	doc, err := s.decode(data)
	if err != nil {
		return fmt.Errorf("upsert into %s: %w", collection, err)
	}
	_, err = s.db.Collection(collection).UpdateOne(ctx,
		bson.M(query),
		bson.M{"$set": doc},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("upsert into %s: %w", collection, err)
	}
	return nil
}

func (s *MongoStore) Insert(ctx context.Context, collection string, data []byte) error {
	doc, err := s.decode(data)
	if err != nil {
		return fmt.Errorf("insert into %s: %w", collection, err)
	}
	if _, err := s.db.Collection(collection).InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert into %s: %w", collection, err)
	}
	return nil
}

func (s *MongoStore) DeleteOne(ctx context.Context, collection string, query Query) error {
	if _, err := s.db.Collection(collection).DeleteOne(ctx, bson.M(query)); err != nil {
		return fmt.Errorf("delete one from %s: %w", collection, err)
	}
	return nil
}

func (s *MongoStore) decode(data []byte) (bson.M, error) {
	var doc bson.M
	if err := bson.UnmarshalExtJSON(data, false, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return doc, nil
}

var _ DurableStore = (*MongoStore)(nil)
