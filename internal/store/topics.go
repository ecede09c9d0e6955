package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/qwe111-didna/auto-get-arxiv-papers/models"
)

// ErrDuplicateTopic is returned when a topic name already exists.
var ErrDuplicateTopic = errors.New("topic name already exists")

// TopicStore persists saved fetch queries in MongoDB.
type TopicStore struct {
	collection *mongo.Collection
}

func NewTopicStore(db *mongo.Database) *TopicStore {
	return &TopicStore{collection: db.Collection("topics")}
}

func (s *TopicStore) AddTopic(ctx context.Context, name, query string) (*models.Topic, error) {
	topic := models.Topic{
		ID:        primitive.NewObjectID().Hex(),
		Name:      name,
		Query:     query,
		CreatedAt: time.Now(),
	}

	if _, err := s.collection.InsertOne(ctx, topic); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrDuplicateTopic
		}
		return nil, err
	}
	return &topic, nil
}

func (s *TopicStore) ListTopics(ctx context.Context) ([]models.Topic, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})

	cursor, err := s.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	topics := []models.Topic{}
	if err := cursor.All(ctx, &topics); err != nil {
		return nil, err
	}
	return topics, nil
}

func (s *TopicStore) DeleteTopic(ctx context.Context, id string) error {
	result, err := s.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchTopic records a successful fetch for the topic.
func (s *TopicStore) TouchTopic(ctx context.Context, id string) error {
	_, err := s.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"last_fetched": time.Now()}},
	)
	return err
}
