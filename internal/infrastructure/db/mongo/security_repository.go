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
)

const (
	collectionLoginAttempts = "login_attempts"
	collectionBlockedIPs    = "blocked_ips"
)

// SecurityRepository persists login attempts and IP blocks.
type SecurityRepository struct {
	attempts *mongo.Collection
	blocks   *mongo.Collection
}

func NewSecurityRepository(db *mongo.Database) *SecurityRepository {
	return &SecurityRepository{
		attempts: db.Collection(collectionLoginAttempts),
		blocks:   db.Collection(collectionBlockedIPs),
	}
}

type mongoAttempt struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	IP        string             `bson:"ip"`
	Username  string             `bson:"username"`
	Success   bool               `bson:"success"`
	Timestamp time.Time          `bson:"timestamp"`
	UserAgent string             `bson:"user_agent,omitempty"`
}

type mongoBlock struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	IP           string             `bson:"ip"`
	BlockedAt    time.Time          `bson:"blocked_at"`
	Reason       string             `bson:"reason"`
	AttemptCount int                `bson:"attempt_count"`
	IsPermanent  bool               `bson:"is_permanent"`
	ExpiresAt    *time.Time         `bson:"expires_at,omitempty"`
}

func toDomainBlock(m *mongoBlock) *domain.BlockedIP {
	return &domain.BlockedIP{
		ID:           m.ID.Hex(),
		IP:           m.IP,
		BlockedAt:    m.BlockedAt,
		Reason:       m.Reason,
		AttemptCount: m.AttemptCount,
		IsPermanent:  m.IsPermanent,
		ExpiresAt:    m.ExpiresAt,
	}
}

func (r *SecurityRepository) InsertAttempt(ctx context.Context, a *domain.LoginAttempt) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := r.attempts.InsertOne(ctx, mongoAttempt{
		IP:        a.IP,
		Username:  a.Username,
		Success:   a.Success,
		Timestamp: a.Timestamp,
		UserAgent: a.UserAgent,
	})
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

func (r *SecurityRepository) CountFailures(ctx context.Context, ip string, since time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	return r.attempts.CountDocuments(ctx, bson.M{
		"ip":        ip,
		"success":   false,
		"timestamp": bson.M{"$gte": since},
	})
}

func (r *SecurityRepository) InsertBlock(ctx context.Context, b *domain.BlockedIP) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := r.blocks.InsertOne(ctx, mongoBlock{
		IP:           b.IP,
		BlockedAt:    b.BlockedAt,
		Reason:       b.Reason,
		AttemptCount: b.AttemptCount,
		IsPermanent:  b.IsPermanent,
		ExpiresAt:    b.ExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("insert block: %w", err)
	}
	return nil
}

// ActiveBlock returns (nil, nil) for a clean IP: a block applies iff it is
// permanent or its expiry is still in the future.
func (r *SecurityRepository) ActiveBlock(ctx context.Context, ip string, now time.Time) (*domain.BlockedIP, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var mb mongoBlock
	err := r.blocks.FindOne(ctx, bson.M{
		"ip": ip,
		"$or": bson.A{
			bson.M{"is_permanent": true},
			bson.M{"expires_at": bson.M{"$gt": now}},
		},
	}).Decode(&mb)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("find block: %w", err)
	}
	return toDomainBlock(&mb), nil
}

func (r *SecurityRepository) ListBlocks(ctx context.Context) ([]*domain.BlockedIP, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cur, err := r.blocks.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "blocked_at", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}
	defer cur.Close(ctx)

	var out []*domain.BlockedIP
	for cur.Next(ctx) {
		var mb mongoBlock
		if err := cur.Decode(&mb); err != nil {
			return nil, err
		}
		out = append(out, toDomainBlock(&mb))
	}
	return out, cur.Err()
}

func (r *SecurityRepository) DeleteBlock(ctx context.Context, ip string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if _, err := r.blocks.DeleteMany(ctx, bson.M{"ip": ip}); err != nil {
		return fmt.Errorf("delete block: %w", err)
	}
	return nil
}

func (r *SecurityRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if _, err := r.attempts.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "ip", Value: 1}, {Key: "timestamp", Value: -1}}},
	}); err != nil {
		return err
	}
	_, err := r.blocks.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "ip", Value: 1}}},
	})
	return err
}
