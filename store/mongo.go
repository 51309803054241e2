package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MongoDialer connects to MongoDB deployments with the official driver.
type MongoDialer struct {
	opts Options
}

// NewMongoDialer creates a MongoDialer. Zero durations leave the driver
// defaults in place.
func NewMongoDialer(opts Options) *MongoDialer {
	return &MongoDialer{opts: opts}
}

// Dial implements Dialer. The driver connects lazily, so an unreachable
// deployment only surfaces on the first Ping or operation.
func (d *MongoDialer) Dial(_ context.Context, uri string) (Client, error) {
	co := options.Client().ApplyURI(uri)
	if d.opts.AppName != "" {
		co.SetAppName(d.opts.AppName)
	}
	if d.opts.ConnectTimeout > 0 {
		co.SetConnectTimeout(d.opts.ConnectTimeout)
	}
	if d.opts.ServerSelectionTimeout > 0 {
		co.SetServerSelectionTimeout(d.opts.ServerSelectionTimeout)
	}
	if d.opts.OperationTimeout > 0 {
		co.SetTimeout(d.opts.OperationTimeout)
	}
	if err := co.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDescriptor, err)
	}

	client, err := mongo.Connect(co)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	return &mongoClient{client: client}, nil
}

type mongoClient struct {
	client *mongo.Client
}

func (c *mongoClient) Ping(ctx context.Context) error {
	res := c.client.Database("admin").RunCommand(ctx, bson.D{{Key: "ping", Value: 1}})
	if err := res.Err(); err != nil {
		return fmt.Errorf("mongo ping: %w", err)
	}
	return nil
}

func (c *mongoClient) Database(name string) Database {
	return &mongoDatabase{db: c.client.Database(name)}
}

func (c *mongoClient) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

type mongoDatabase struct {
	db *mongo.Database
}

func (d *mongoDatabase) Name() string { return d.db.Name() }

func (d *mongoDatabase) Collection(name string) Collection {
	return &mongoCollection{coll: d.db.Collection(name)}
}

type mongoCollection struct {
	coll *mongo.Collection
}

func (c *mongoCollection) InsertOne(ctx context.Context, doc bson.D) (any, error) {
	res, err := c.coll.InsertOne(ctx, doc)
	if err != nil {
		return nil, classify(err)
	}
	return res.InsertedID, nil
}

func (c *mongoCollection) Find(ctx context.Context, filter bson.D, opts FindOptions) ([]bson.D, error) {
	fo := options.Find()
	if opts.Skip != nil {
		fo.SetSkip(*opts.Skip)
	}
	if opts.Limit != nil {
		fo.SetLimit(*opts.Limit)
	}

	cur, err := c.coll.Find(ctx, filter, fo)
	if err != nil {
		return nil, classify(err)
	}
	defer cur.Close(ctx)

	docs := []bson.D{}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, classify(err)
	}
	return docs, nil
}

func (c *mongoCollection) UpdateMany(ctx context.Context, filter, update bson.D, upsert bool) (UpdateResult, error) {
	res, err := c.coll.UpdateMany(ctx, filter, update, options.UpdateMany().SetUpsert(upsert))
	if err != nil {
		return UpdateResult{}, classify(err)
	}
	return UpdateResult{
		Matched:    res.MatchedCount,
		Modified:   res.ModifiedCount,
		UpsertedID: res.UpsertedID,
	}, nil
}

func (c *mongoCollection) DeleteMany(ctx context.Context, filter bson.D) (int64, error) {
	res, err := c.coll.DeleteMany(ctx, filter)
	if err != nil {
		return 0, classify(err)
	}
	return res.DeletedCount, nil
}
