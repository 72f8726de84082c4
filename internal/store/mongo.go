package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type kvDocument struct {
	Key       string `bson:"_id"`
	Value     []byte `bson:"value"`
	ExpiresAt int64  `bson:"expires_at"`
}

// MongoKV stores one document per key in the kv collection.
type MongoKV struct {
	col *mongo.Collection
	now func() time.Time
}

func NewMongoKV(db *mongo.Database) *MongoKV {
	return &MongoKV{col: db.Collection("kv"), now: time.Now}
}

func (s *MongoKV) liveFilter(extra bson.M) bson.M {
	f := bson.M{"$or": bson.A{
		bson.M{"expires_at": 0},
		bson.M{"expires_at": bson.M{"$gt": s.now().UnixMilli()}},
	}}
	for k, v := range extra {
		f[k] = v
	}
	return f
}

func (s *MongoKV) Get(ctx context.Context, key string) ([]byte, error) {
	var doc kvDocument
	err := s.col.FindOne(ctx, s.liveFilter(bson.M{"_id": key})).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mongo get %q: %w", key, err)
	}
	return doc.Value, nil
}

func (s *MongoKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	opts := options.Update().SetUpsert(true)
	update := bson.M{"$set": bson.M{"value": value, "expires_at": expiresAt(s.now(), ttl)}}
	if _, err := s.col.UpdateOne(ctx, bson.M{"_id": key}, update, opts); err != nil {
		return fmt.Errorf("mongo set %q: %w", key, err)
	}
	return nil
}

// SetNX relies on the unique _id index; an expired document is replaced in place.
func (s *MongoKV) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	now := s.now()
	doc := kvDocument{Key: key, Value: value, ExpiresAt: expiresAt(now, ttl)}
	_, err := s.col.InsertOne(ctx, doc)
	if err == nil {
		return true, nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		return false, fmt.Errorf("mongo setnx %q: %w", key, err)
	}

	expired := bson.M{"_id": key, "expires_at": bson.M{"$ne": 0, "$lte": now.UnixMilli()}}
	res, err := s.col.UpdateOne(ctx, expired, bson.M{"$set": bson.M{"value": value, "expires_at": doc.ExpiresAt}})
	if err != nil {
		return false, fmt.Errorf("mongo setnx %q: %w", key, err)
	}
	return res.MatchedCount == 1, nil
}

func (s *MongoKV) CompareAndSwap(ctx context.Context, key string, prev, next []byte) (bool, error) {
	res, err := s.col.UpdateOne(ctx,
		s.liveFilter(bson.M{"_id": key, "value": prev}),
		bson.M{"$set": bson.M{"value": next}},
	)
	if err != nil {
		return false, fmt.Errorf("mongo cas %q: %w", key, err)
	}
	if res.MatchedCount == 1 {
		return true, nil
	}
	if _, err := s.Get(ctx, key); err != nil {
		return false, err
	}
	return false, nil
}

func (s *MongoKV) Delete(ctx context.Context, key string) error {
	_, err := s.col.DeleteOne(ctx, bson.M{"_id": key})
	return err
}

func (s *MongoKV) List(ctx context.Context, prefix string) ([]string, error) {
	filter := s.liveFilter(bson.M{"_id": bson.M{"$regex": "^" + regexp.QuoteMeta(prefix)}})
	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetProjection(bson.M{"_id": 1})
	cur, err := s.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo list %q: %w", prefix, err)
	}
	defer cur.Close(ctx)

	keys := []string{}
	for cur.Next(ctx) {
		var doc struct {
			Key string `bson:"_id"`
		}
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		keys = append(keys, doc.Key)
	}
	return keys, cur.Err()
}

func (s *MongoKV) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.col.Database().Client().Disconnect(ctx)
}
