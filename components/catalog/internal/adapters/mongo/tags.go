// Package mongo stores the catalog's free-form tag map in MongoDB,
// alongside the relational store, so that tag queries don't force a
// schema migration every time an operator invents a new key (§4.4.1).
package mongo

import (
	"context"

	"github.com/cedadev/nlds-go/pkg/mmongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const collectionName = "holding_tags"

// TagDocument is the per-holding document stored in MongoDB; HoldingID
// mirrors the Postgres holding.id so the two stores stay joinable without
// a distributed transaction.
type TagDocument struct {
	HoldingID int64             `bson:"holding_id"`
	Tags      map[string]string `bson:"tags"`
}

// TagRepository is the MongoDB-specific side store for holding tags.
type TagRepository struct {
	conn     *mmongo.Connection
	database string
}

func NewTagRepository(conn *mmongo.Connection, database string) *TagRepository {
	return &TagRepository{conn: conn, database: database}
}

func (r *TagRepository) collection(ctx context.Context) (*mongo.Collection, error) {
	db, err := r.conn.GetDB(ctx)
	if err != nil {
		return nil, err
	}

	return db.Collection(collectionName), nil
}

// Put upserts the tag map for a holding, merging rather than replacing, so
// a partial catalog-update doesn't drop tags set by an earlier call.
func (r *TagRepository) Put(ctx context.Context, holdingID int64, tags map[string]string) error {
	coll, err := r.collection(ctx)
	if err != nil {
		return err
	}

	set := bson.M{}
	for k, v := range tags {
		set["tags."+k] = v
	}

	_, err = coll.UpdateOne(ctx,
		bson.M{"holding_id": holdingID},
		bson.M{"$set": set},
		options.Update().SetUpsert(true))

	return err
}

// Get returns the full tag map for a holding, or an empty map if none has
// been set.
func (r *TagRepository) Get(ctx context.Context, holdingID int64) (map[string]string, error) {
	coll, err := r.collection(ctx)
	if err != nil {
		return nil, err
	}

	var doc TagDocument

	err = coll.FindOne(ctx, bson.M{"holding_id": holdingID}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return map[string]string{}, nil
	}

	if err != nil {
		return nil, err
	}

	return doc.Tags, nil
}

// FindHoldingIDsByTag returns holding ids whose tag map contains key=value,
// backing catalog-get's "find holdings with tag X=Y" query mode.
func (r *TagRepository) FindHoldingIDsByTag(ctx context.Context, key, value string) ([]int64, error) {
	coll, err := r.collection(ctx)
	if err != nil {
		return nil, err
	}

	cursor, err := coll.Find(ctx, bson.M{"tags." + key: value})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []int64

	for cursor.Next(ctx) {
		var doc TagDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}

		out = append(out, doc.HoldingID)
	}

	return out, cursor.Err()
}

// Delete removes a holding's tag document entirely; no catalog operation
// calls it.
func (r *TagRepository) Delete(ctx context.Context, holdingID int64) error {
	coll, err := r.collection(ctx)
	if err != nil {
		return err
	}

	_, err = coll.DeleteOne(ctx, bson.M{"holding_id": holdingID})

	return err
}
