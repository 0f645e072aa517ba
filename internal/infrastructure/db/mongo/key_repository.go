package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/keyforge/license-panel/internal/core/domain"
	"github.com/keyforge/license-panel/internal/core/ports"
)

const (
	collectionKeys    = "keys"
	collectionDevices = "devices"
)

type KeyRepository struct {
	keys    *mongo.Collection
	devices *mongo.Collection
}

func NewKeyRepository(db *mongo.Database) *KeyRepository {
	return &KeyRepository{
		keys:    db.Collection(collectionKeys),
		devices: db.Collection(collectionDevices),
	}
}

type mongoKey struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"`
	Key            string             `bson:"key"`
	KeyType        string             `bson:"key_type"`
	MaxDevices     int                `bson:"max_devices"`
	CurrentDevices int                `bson:"current_devices"`
	ExpiryDate     time.Time          `bson:"expiry_date"`
	ActivatedAt    *time.Time         `bson:"activated_at,omitempty"`
	CreatedAt      time.Time          `bson:"created_at"`
	IsActive       bool               `bson:"is_active"`
	Price          float64            `bson:"price"`
	Duration       int                `bson:"duration"`
	DurationType   string             `bson:"duration_type"`
	CreatedBy      string             `bson:"created_by"`
}

type mongoDevice struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Key         string             `bson:"key"`
	UUID        string             `bson:"uuid"`
	ActivatedAt time.Time          `bson:"activated_at"`
}

func toDomainKey(m *mongoKey) *domain.Key {
	return &domain.Key{
		ID:             m.ID.Hex(),
		Key:            m.Key,
		KeyType:        domain.KeyType(m.KeyType),
		MaxDevices:     m.MaxDevices,
		CurrentDevices: m.CurrentDevices,
		ExpiryDate:     m.ExpiryDate,
		ActivatedAt:    m.ActivatedAt,
		CreatedAt:      m.CreatedAt,
		IsActive:       m.IsActive,
		Price:          m.Price,
		Duration:       m.Duration,
		DurationType:   domain.DurationType(m.DurationType),
		CreatedBy:      m.CreatedBy,
	}
}

func (r *KeyRepository) Insert(ctx context.Context, k *domain.Key) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := r.keys.InsertOne(ctx, mongoKey{
		Key:            k.Key,
		KeyType:        string(k.KeyType),
		MaxDevices:     k.MaxDevices,
		CurrentDevices: k.CurrentDevices,
		ExpiryDate:     k.ExpiryDate,
		ActivatedAt:    k.ActivatedAt,
		CreatedAt:      k.CreatedAt,
		IsActive:       k.IsActive,
		Price:          k.Price,
		Duration:       k.Duration,
		DurationType:   string(k.DurationType),
		CreatedBy:      k.CreatedBy,
	})
	if err != nil {
		return fmt.Errorf("insert key: %w", err)
	}
	return nil
}

func (r *KeyRepository) Exists(ctx context.Context, key string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	n, err := r.keys.CountDocuments(ctx, bson.M{"key": key})
	if err != nil {
		return false, fmt.Errorf("key exists: %w", err)
	}
	return n > 0, nil
}

func (r *KeyRepository) FindByKey(ctx context.Context, key string) (*domain.Key, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var mk mongoKey
	if err := r.keys.FindOne(ctx, bson.M{"key": key}).Decode(&mk); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrKeyNotFound
		}
		return nil, fmt.Errorf("find key: %w", err)
	}
	return toDomainKey(&mk), nil
}

func (r *KeyRepository) List(ctx context.Context, filter ports.KeyListFilter) ([]*domain.Key, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	q := bson.M{}
	switch filter.Visibility {
	case domain.VisibilityAll:
	case domain.VisibilityNonSuperOwner:
		if len(filter.ExcludeCreators) > 0 {
			q["created_by"] = bson.M{"$nin": filter.ExcludeCreators}
		}
	case domain.VisibilityOwnCreated, domain.VisibilitySelf:
		q["created_by"] = filter.Caller
	default:
		return nil, domain.ErrForbidden
	}

	cur, err := r.keys.Find(ctx, q, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	defer cur.Close(ctx)

	var out []*domain.Key
	for cur.Next(ctx) {
		var mk mongoKey
		if err := cur.Decode(&mk); err != nil {
			return nil, err
		}
		out = append(out, toDomainKey(&mk))
	}
	return out, cur.Err()
}

func (r *KeyRepository) Update(ctx context.Context, key string, upd ports.KeyUpdate) error {
	set := bson.M{}
	if upd.IsActive != nil {
		set["is_active"] = *upd.IsActive
	}
	if upd.MaxDevices != nil {
		set["max_devices"] = *upd.MaxDevices
	}
	if upd.ExpiryDate != nil {
		set["expiry_date"] = *upd.ExpiryDate
	}
	if upd.Price != nil {
		set["price"] = *upd.Price
	}
	if len(set) == 0 {
		return nil
	}
	return r.updateOne(ctx, key, bson.M{"$set": set})
}

func (r *KeyRepository) BulkSetActive(ctx context.Context, keys []string, active bool) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.keys.UpdateMany(ctx,
		bson.M{"key": bson.M{"$in": keys}},
		bson.M{"$set": bson.M{"is_active": active}},
	)
	if err != nil {
		return 0, fmt.Errorf("bulk update keys: %w", err)
	}
	return res.ModifiedCount, nil
}

func (r *KeyRepository) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.keys.DeleteOne(ctx, bson.M{"key": key})
	if err != nil {
		return fmt.Errorf("delete key: %w", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrKeyNotFound
	}
	return nil
}

func (r *KeyRepository) Activate(ctx context.Context, key string, at, expiry time.Time) error {
	return r.updateOne(ctx, key, bson.M{"$set": bson.M{
		"activated_at": at,
		"expiry_date":  expiry,
	}})
}

func (r *KeyRepository) IncrementDevices(ctx context.Context, key string) error {
	return r.updateOne(ctx, key, bson.M{"$inc": bson.M{"current_devices": 1}})
}

func (r *KeyRepository) ResetDevices(ctx context.Context, key string) error {
	return r.updateOne(ctx, key, bson.M{"$set": bson.M{"current_devices": 0}})
}

func (r *KeyRepository) InsertDevice(ctx context.Context, d *domain.Device) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := r.devices.InsertOne(ctx, mongoDevice{
		Key:         d.Key,
		UUID:        d.UUID,
		ActivatedAt: d.ActivatedAt,
	})
	if err != nil {
		return fmt.Errorf("insert device: %w", err)
	}
	return nil
}

func (r *KeyRepository) FindDevice(ctx context.Context, key, uuid string) (*domain.Device, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var md mongoDevice
	if err := r.devices.FindOne(ctx, bson.M{"key": key, "uuid": uuid}).Decode(&md); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrKeyNotFound
		}
		return nil, fmt.Errorf("find device: %w", err)
	}
	return &domain.Device{ID: md.ID.Hex(), Key: md.Key, UUID: md.UUID, ActivatedAt: md.ActivatedAt}, nil
}

func (r *KeyRepository) DeleteDevicesByKey(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if _, err := r.devices.DeleteMany(ctx, bson.M{"key": key}); err != nil {
		return fmt.Errorf("delete devices: %w", err)
	}
	return nil
}

func (r *KeyRepository) updateOne(ctx context.Context, key string, update bson.M) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.keys.UpdateOne(ctx, bson.M{"key": key}, update)
	if err != nil {
		return fmt.Errorf("update key: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrKeyNotFound
	}
	return nil
}

// EnsureIndexes backs the generate-and-check uniqueness loop with a unique
// index so races cannot slip duplicates through.
func (r *KeyRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if _, err := r.keys.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "key", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "created_by", Value: 1}}},
	}); err != nil {
		return err
	}
	_, err := r.devices.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "key", Value: 1}, {Key: "uuid", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	return err
}
