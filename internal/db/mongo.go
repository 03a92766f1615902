package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	mopt "go.mongodb.org/mongo-driver/mongo/options"
)

var Mongo *mongo.Client

// InitMongo connects and pings; it returns the named database.
func InitMongo(ctx context.Context, uri, database string) (*mongo.Database, error) {
	opts := mopt.Client().ApplyURI(uri)
	opts.SetConnectTimeout(10 * time.Second).SetServerSelectionTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	Mongo = client
	return client.Database(database), nil
}

func CloseMongo(ctx context.Context) error {
	if Mongo == nil {
		return nil
	}
	return Mongo.Disconnect(ctx)
}
