package storage

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/project-89/Quantum-Veil/internal/shifter"
)

// MongoStore holds fragments in a MongoDB collection, one document per
// fragment keyed by fragment id. It usually backs the on-chain mirror
// timeline where an external anchoring job reads from.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

func NewMongoStore(ctx context.Context, uri, dbName, collName string) (*MongoStore, error) {
	if uri == "" {
		return nil, errors.New("mongo uri is empty")
	}
	cli, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	// Verify connection quickly
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := cli.Ping(pctx, nil); err != nil {
		_ = cli.Disconnect(ctx)
		return nil, err
	}

	coll := cli.Database(dbName).Collection(collName)

	_, _ = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "timeline", Value: 1}},
		Options: options.Index(),
	})

	return &MongoStore{client: cli, coll: coll}, nil
}

func (m *MongoStore) Store(ctx context.Context, f *shifter.Fragment) (string, error) {
	if f.ID == "" {
		return "", errors.New("empty fragment id")
	}
	data, err := encodeFragment(f)
	if err != nil {
		return "", err
	}
	_, err = m.coll.UpdateByID(
		ctx,
		f.ID,
		bson.M{
			"$set": bson.M{
				"timeline":  string(f.Timeline),
				"data":      data,
				"updatedAt": time.Now(),
			},
			"$setOnInsert": bson.M{
				"createdAt": time.Now(),
			},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return "", err
	}
	return "mongo://" + m.coll.Database().Name() + "/" + m.coll.Name() + "/" + f.ID, nil
}

func (m *MongoStore) Retrieve(ctx context.Context, id string) (*shifter.Fragment, error) {
	if id == "" {
		return nil, errors.New("empty fragment id")
	}
	var doc struct {
		Data []byte `bson:"data"`
	}
	err := m.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeFragment(doc.Data)
}

func (m *MongoStore) Exists(ctx context.Context, id string) (bool, error) {
	n, err := m.coll.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	return n > 0, err
}

func (m *MongoStore) Delete(ctx context.Context, id string) error {
	_, err := m.coll.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

func (m *MongoStore) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
