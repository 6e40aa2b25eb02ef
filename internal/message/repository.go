package message

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Repository interface {
	Insert(ctx context.Context, m Message) error
	GetByID(ctx context.Context, id string) (Message, error)
	List(ctx context.Context, limit, offset int64) ([]Message, error)
	Count(ctx context.Context) (int64, error)
	ListRecent(ctx context.Context, limit int64) ([]Message, error)
	SetStatus(ctx context.Context, id, status string) (Message, error)
	Delete(ctx context.Context, id string) error
}

type MongoRepository struct {
	col *mongo.Collection
}

func NewRepository(col *mongo.Collection) *MongoRepository {
	return &MongoRepository{col: col}
}

func (r *MongoRepository) Insert(ctx context.Context, m Message) error {
	_, err := r.col.InsertOne(ctx, m)
	return err
}

func (r *MongoRepository) GetByID(ctx context.Context, id string) (Message, error) {
	var m Message
	err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&m)
	return m, err
}

func (r *MongoRepository) List(ctx context.Context, limit, offset int64) ([]Message, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(limit).
		SetSkip(offset)
	return r.find(ctx, bson.M{}, opts)
}

func (r *MongoRepository) Count(ctx context.Context) (int64, error) {
	return r.col.CountDocuments(ctx, bson.M{})
}

func (r *MongoRepository) ListRecent(ctx context.Context, limit int64) ([]Message, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(limit)
	return r.find(ctx, bson.M{}, opts)
}

func (r *MongoRepository) SetStatus(ctx context.Context, id, status string) (Message, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated Message
	err := r.col.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"status": status}},
		opts,
	).Decode(&updated)
	if err != nil {
		return Message{}, err
	}
	return updated, nil
}

func (r *MongoRepository) Delete(ctx context.Context, id string) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

func (r *MongoRepository) find(ctx context.Context, query bson.M, opts *options.FindOptions) ([]Message, error) {
	cursor, err := r.col.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	items := make([]Message, 0)
	for cursor.Next(ctx) {
		var m Message
		if err := cursor.Decode(&m); err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
