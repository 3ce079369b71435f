package config

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson" // Use bson for index keys
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
	err = client.Ping(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %v", err)
	}

	// Create indexes
	err = createIndexes(client, cfg.DBName)
	if err != nil {
		return nil, fmt.Errorf("failed to create indexes: %v", err)
	}

	return client, nil
}

func createIndexes(client *mongo.Client, dbName string) error {
	db := client.Database(dbName)

	// Units collection indexes
	unitsCollection := db.Collection("units")
	unitIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "property_id", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "is_approved", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "field_values.field_id", Value: 1}},
		},
	}
	_, err := unitsCollection.Indexes().CreateMany(context.Background(), unitIndexes)
	if err != nil {
		return err
	}

	// Properties collection indexes
	propertiesCollection := db.Collection("properties")
	propertyIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "owner_id", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "city", Value: 1}},
		},
	}
	_, err = propertiesCollection.Indexes().CreateMany(context.Background(), propertyIndexes)
	if err != nil {
		return err
	}

	// Schedules collection indexes
	schedulesCollection := db.Collection("schedules")
	scheduleIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "unit_id", Value: 1}, {Key: "date", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "date", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "property_id", Value: 1}},
		},
	}
	_, err = schedulesCollection.Indexes().CreateMany(context.Background(), scheduleIndexes)
	if err != nil {
		return err
	}

	// Dynamic field definitions collection indexes
	fieldsCollection := db.Collection("dynamic_fields")
	fieldIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "name", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "is_searchable", Value: 1}},
		},
	}
	_, err = fieldsCollection.Indexes().CreateMany(context.Background(), fieldIndexes)
	if err != nil {
		return err
	}

	return nil
}
