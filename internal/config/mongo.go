package config

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func ConnectMongoDB(cfg *Config) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %v", err)
	}

	// Test connection
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %v", err)
	}

	if err := createIndexes(client, cfg.DBName); err != nil {
		return nil, fmt.Errorf("failed to create indexes: %v", err)
	}

	return client, nil
}

func createIndexes(client *mongo.Client, dbName string) error {
	db := client.Database(dbName)

	papersCollection := db.Collection("papers")
	paperIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "published", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "indexed", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "favorite", Value: 1}},
		},
	}
	if _, err := papersCollection.Indexes().CreateMany(context.Background(), paperIndexes); err != nil {
		return err
	}

	topicsCollection := db.Collection("topics")
	topicIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "name", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	if _, err := topicsCollection.Indexes().CreateMany(context.Background(), topicIndexes); err != nil {
		return err
	}

	chunksCollection := db.Collection("paper_chunks")
	chunkIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "paper_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	if _, err := chunksCollection.Indexes().CreateMany(context.Background(), chunkIndexes); err != nil {
		return err
	}

	return nil
}
