package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/propgate/propgate/internal/gating"
	"github.com/propgate/propgate/internal/listing"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRepo stores listings with a string "id" field and the raw record under
// "fields". Field values round-trip through BSON, so numbers may come back as
// int32/int64/float64 and arrays as bson.A.
type MongoRepo struct {
	col *mongo.Collection
}

func NewMongoRepo(ctx context.Context, col *mongo.Collection) (*MongoRepo, error) {
	_, err := col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}},
	})
	if err != nil {
		return nil, fmt.Errorf("listing indexes: %w", err)
	}
	return &MongoRepo{col: col}, nil
}

func (m *MongoRepo) Create(ctx context.Context, l *listing.Listing) (string, error) {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.Status == "" {
		l.Status = listing.StatusAvailable
	}
	if l.Fields == nil {
		l.Fields = gating.Record{}
	}
	now := time.Now().UTC()
	l.CreatedAt = now
	l.UpdatedAt = now
	if _, err := m.col.InsertOne(ctx, l); err != nil {
		return "", err
	}
	return l.ID, nil
}

func (m *MongoRepo) Get(ctx context.Context, id string) (*listing.Listing, error) {
	var l listing.Listing
	if err := m.col.FindOne(ctx, bson.M{"id": id}).Decode(&l); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	normalize(&l)
	return &l, nil
}

func (m *MongoRepo) ListAvailable(ctx context.Context) ([]*listing.Listing, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "id", Value: 1}})
	cur, err := m.col.Find(ctx, bson.M{"status": listing.StatusAvailable}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []*listing.Listing{}
	for cur.Next(ctx) {
		var l listing.Listing
		if err := cur.Decode(&l); err != nil {
			return nil, err
		}
		normalize(&l)
		out = append(out, &l)
	}
	return out, cur.Err()
}

func (m *MongoRepo) UpdateFields(ctx context.Context, id string, set gating.Record, unset []string) error {
	upd := bson.M{}
	s := bson.M{"updatedAt": time.Now().UTC()}
	for k, v := range set {
		s["fields."+k] = v
	}
	upd["$set"] = s
	if len(unset) > 0 {
		u := bson.M{}
		for _, k := range unset {
			u["fields."+k] = ""
		}
		upd["$unset"] = u
	}
	return m.update(ctx, id, upd)
}

// AppendField uses $push, so the stored value must be an array or missing.
func (m *MongoRepo) AppendField(ctx context.Context, id, field string, value any) error {
	return m.update(ctx, id, bson.M{
		"$push": bson.M{"fields." + field: value},
		"$set":  bson.M{"updatedAt": time.Now().UTC()},
	})
}

func (m *MongoRepo) ReplaceField(ctx context.Context, id, field string, value any) (any, error) {
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.Before).
		SetProjection(bson.M{"fields." + field: 1})
	upd := bson.M{"$set": bson.M{"fields." + field: value, "updatedAt": time.Now().UTC()}}
	var before listing.Listing
	if err := m.col.FindOneAndUpdate(ctx, bson.M{"id": id}, upd, opts).Decode(&before); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return plain(before.Fields[field]), nil
}

func (m *MongoRepo) SetStatus(ctx context.Context, id string, status listing.Status) error {
	return m.update(ctx, id, bson.M{"$set": bson.M{"status": status, "updatedAt": time.Now().UTC()}})
}

func (m *MongoRepo) update(ctx context.Context, id string, upd bson.M) error {
	res, err := m.col.UpdateOne(ctx, bson.M{"id": id}, upd)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *MongoRepo) Delete(ctx context.Context, id string) (*listing.Listing, error) {
	var l listing.Listing
	if err := m.col.FindOneAndDelete(ctx, bson.M{"id": id}).Decode(&l); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	normalize(&l)
	return &l, nil
}

// normalize converts BSON container types in decoded fields to plain Go values.
func normalize(l *listing.Listing) {
	if l.Fields == nil {
		l.Fields = gating.Record{}
		return
	}
	for k, v := range l.Fields {
		l.Fields[k] = plain(v)
	}
}

func plain(v any) any {
	switch t := v.(type) {
	case bson.A:
		out := make([]any, len(t))
		for i := range t {
			out[i] = plain(t[i])
		}
		return out
	case bson.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = plain(e.Value)
		}
		return out
	case bson.M:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = plain(e)
		}
		return out
	}
	return v
}
