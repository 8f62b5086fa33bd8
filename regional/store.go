package regional

import (
	"context"
	"errors"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"taquilla/models"
)

type Store interface {
	// Get returns the default config when owner has none stored.
	Get(ctx context.Context, owner string) (models.RegionalConfig, error)
	Put(ctx context.Context, owner string, cfg models.RegionalConfig) error
}

type MongoStore struct {
	coll *mongo.Collection
}

func NewMongoStore(coll *mongo.Collection) *MongoStore {
	return &MongoStore{coll: coll}
}

// EnsureIndexes creates the unique owner index.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "owner", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func (s *MongoStore) Get(ctx context.Context, owner string) (models.RegionalConfig, error) {
	var cfg models.RegionalConfig
	err := s.coll.FindOne(ctx, bson.M{"owner": owner}).Decode(&cfg)
	if errors.Is(err, mongo.ErrNoDocuments) {
		cfg = models.DefaultRegionalConfig()
		cfg.Owner = owner
		return cfg, nil
	}
	if err != nil {
		return models.RegionalConfig{}, err
	}
	return cfg, nil
}

func (s *MongoStore) Put(ctx context.Context, owner string, cfg models.RegionalConfig) error {
	cfg.Owner = owner
	_, err := s.coll.UpdateOne(ctx,
		bson.M{"owner": owner},
		bson.M{"$set": cfg},
		options.Update().SetUpsert(true),
	)
	return err
}

type MemoryStore struct {
	mu      sync.RWMutex
	configs map[string]models.RegionalConfig
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{configs: make(map[string]models.RegionalConfig)}
}

func (s *MemoryStore) Get(_ context.Context, owner string) (models.RegionalConfig, error) {
	s.mu.RLock()
	cfg, ok := s.configs[owner]
	s.mu.RUnlock()
	if !ok {
		cfg = models.DefaultRegionalConfig()
		cfg.Owner = owner
	}
	return cfg, nil
}

func (s *MemoryStore) Put(_ context.Context, owner string, cfg models.RegionalConfig) error {
	cfg.Owner = owner
	s.mu.Lock()
	s.configs[owner] = cfg
	s.mu.Unlock()
	return nil
}
