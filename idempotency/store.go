package idempotency

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Record is one reserved key. Done is set once the first response is stored.
type Record struct {
	Key         string    `bson:"key"`
	Method      string    `bson:"method"`
	Path        string    `bson:"path"`
	Owner       string    `bson:"owner"`
	RequestHash string    `bson:"request_hash"`
	Done        bool      `bson:"done"`
	Status      int       `bson:"status,omitempty"`
	ContentType string    `bson:"content_type,omitempty"`
	Body        []byte    `bson:"body,omitempty"`
	CreatedAt   time.Time `bson:"created_at"`
	ExpiresAt   time.Time `bson:"expires_at"`
}

type Store interface {
	// Reserve inserts rec. When the key is already taken it returns the
	// existing record and reserved=false.
	Reserve(ctx context.Context, rec Record) (existing Record, reserved bool, err error)
	Complete(ctx context.Context, key string, status int, contentType string, body []byte) error
	Release(ctx context.Context, key string) error
}

type MongoStore struct {
	coll *mongo.Collection
}

func NewMongoStore(coll *mongo.Collection) *MongoStore {
	return &MongoStore{coll: coll}
}

// EnsureIndexes creates the unique key index and the TTL index that lets
// Mongo drop expired records.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	idxs := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "key", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("unique_key"),
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0).SetName("ttl_expires_at"),
		},
	}
	_, err := s.coll.Indexes().CreateMany(ctx, idxs)
	return err
}

func (s *MongoStore) Reserve(ctx context.Context, rec Record) (Record, bool, error) {
	_, err := s.coll.InsertOne(ctx, rec)
	if err == nil {
		return Record{}, true, nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		return Record{}, false, err
	}

	var existing Record
	err = s.coll.FindOne(ctx, bson.M{"key": rec.Key}).Decode(&existing)
	if errors.Is(err, mongo.ErrNoDocuments) {
		// expired between insert and lookup
		return s.Reserve(ctx, rec)
	}
	if err != nil {
		return Record{}, false, err
	}
	return existing, false, nil
}

func (s *MongoStore) Complete(ctx context.Context, key string, status int, contentType string, body []byte) error {
	_, err := s.coll.UpdateOne(ctx,
		bson.M{"key": key},
		bson.M{"$set": bson.M{"done": true, "status": status, "content_type": contentType, "body": body}},
	)
	return err
}

func (s *MongoStore) Release(ctx context.Context, key string) error {
	_, err := s.coll.DeleteOne(ctx, bson.M{"key": key, "done": false})
	return err
}

// MemoryStore keeps records in process; expired ones are dropped on access.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record), now: time.Now}
}

func (s *MemoryStore) Reserve(_ context.Context, rec Record) (Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.records[rec.Key]; ok && s.now().Before(existing.ExpiresAt) {
		return existing, false, nil
	}
	s.records[rec.Key] = rec
	return Record{}, true, nil
}

func (s *MemoryStore) Complete(_ context.Context, key string, status int, contentType string, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key]
	if !ok {
		return nil
	}
	rec.Done = true
	rec.Status = status
	rec.ContentType = contentType
	rec.Body = append([]byte(nil), body...)
	s.records[key] = rec
	return nil
}

func (s *MemoryStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[key]; ok && !rec.Done {
		delete(s.records, key)
	}
	return nil
}
