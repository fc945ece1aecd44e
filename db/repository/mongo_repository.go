package repository

import (
	"context"

	"github.com/agnosto/fbtweeter/db/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoPostRepository stores post records as documents keyed by the Facebook post id.
type MongoPostRepository struct {
	client *mongo.Client
	coll   *mongo.Collection
}

func NewMongoPostRepository(client *mongo.Client, coll *mongo.Collection) *MongoPostRepository {
	return &MongoPostRepository{client: client, coll: coll}
}

// EnsureIndexes creates the index backing FindUnpublishedOldest.
func (r *MongoPostRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "published", Value: 1}, {Key: "created_time", Value: 1}},
	})
	return err
}

func (r *MongoPostRepository) FindByIDs(ctx context.Context, ids []string) ([]models.PostRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cursor, err := r.coll.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var posts []models.PostRecord
	if err := cursor.All(ctx, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (r *MongoPostRepository) InsertMany(ctx context.Context, posts []models.PostRecord) error {
	if len(posts) == 0 {
		return nil
	}
	docs := make([]interface{}, len(posts))
	for i := range posts {
		docs[i] = posts[i]
	}
	_, err := r.coll.InsertMany(ctx, docs)
	return err
}

func (r *MongoPostRepository) FindUnpublishedOldest(ctx context.Context, limit int) ([]models.PostRecord, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_time", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := r.coll.Find(ctx, bson.M{"published": false}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var posts []models.PostRecord
	if err := cursor.All(ctx, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (r *MongoPostRepository) MarkPublished(ctx context.Context, id string) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"published": true}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoPostRepository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}
