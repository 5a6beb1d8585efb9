package users

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/propgate/propgate/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrNotFound is returned when no profile exists for a subject.
var ErrNotFound = errors.New("user not found")

// UserRepository defines persistence operations for users
type UserRepository interface {
	// UpsertBySub writes identity fields only; a stored plan is preserved.
	UpsertBySub(ctx context.Context, u *models.User) (*models.User, error)
	GetBySub(ctx context.Context, sub string) (*models.User, error)
	SetPlan(ctx context.Context, sub string, plan *string) error
}

// MongoUserRepository implements UserRepository using MongoDB
type MongoUserRepository struct {
	col *mongo.Collection
}

// NewMongoUserRepository creates a new repository for the given collection
func NewMongoUserRepository(col *mongo.Collection) *MongoUserRepository {
	return &MongoUserRepository{col: col}
}

func (r *MongoUserRepository) UpsertBySub(ctx context.Context, u *models.User) (*models.User, error) {
	now := time.Now().UTC()
	filter := bson.M{"sub": u.Sub}
	upd := bson.M{
		"$set": bson.M{
			"email":     u.Email,
			"name":      u.Name,
			"updatedAt": now,
		},
		"$setOnInsert": bson.M{"createdAt": now},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var updated models.User
	if err := r.col.FindOneAndUpdate(ctx, filter, upd, opts).Decode(&updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (r *MongoUserRepository) GetBySub(ctx context.Context, sub string) (*models.User, error) {
	var u models.User
	if err := r.col.FindOne(ctx, bson.M{"sub": sub}).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *MongoUserRepository) SetPlan(ctx context.Context, sub string, plan *string) error {
	upd := bson.M{"$set": bson.M{"plan": plan, "updatedAt": time.Now().UTC()}}
	if plan == nil {
		upd = bson.M{"$unset": bson.M{"plan": ""}, "$set": bson.M{"updatedAt": time.Now().UTC()}}
	}
	res, err := r.col.UpdateOne(ctx, bson.M{"sub": sub}, upd)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// MemoryUserRepository keeps profiles in process; used when MongoDB is not configured.
type MemoryUserRepository struct {
	mu    sync.RWMutex
	store map[string]*models.User
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{store: make(map[string]*models.User)}
}

func (m *MemoryUserRepository) UpsertBySub(ctx context.Context, u *models.User) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	cur, ok := m.store[u.Sub]
	if !ok {
		cur = &models.User{ID: uuid.NewString(), Sub: u.Sub, CreatedAt: now}
		m.store[u.Sub] = cur
	}
	cur.Email = u.Email
	cur.Name = u.Name
	cur.UpdatedAt = now
	out := *cur
	return &out, nil
}

func (m *MemoryUserRepository) GetBySub(ctx context.Context, sub string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.store[sub]
	if !ok {
		return nil, ErrNotFound
	}
	out := *u
	return &out, nil
}

func (m *MemoryUserRepository) SetPlan(ctx context.Context, sub string, plan *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.store[sub]
	if !ok {
		return ErrNotFound
	}
	if plan != nil {
		p := *plan
		plan = &p
	}
	u.Plan = plan
	u.UpdatedAt = time.Now().UTC()
	return nil
}
