package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/keyforge/license-panel/internal/core/domain"
	"github.com/keyforge/license-panel/internal/core/ports"
)

const collectionActivities = "activities"

// ActivityRepository persists the append-only audit trail.
type ActivityRepository struct {
	col *mongo.Collection
}

func NewActivityRepository(db *mongo.Database) *ActivityRepository {
	return &ActivityRepository{col: db.Collection(collectionActivities)}
}

type mongoActivity struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	Username   string             `bson:"username"`
	Role       string             `bson:"role"`
	Action     string             `bson:"action"`
	TargetType string             `bson:"target_type,omitempty"`
	Target     string             `bson:"target,omitempty"`
	Details    string             `bson:"details,omitempty"`
	Timestamp  time.Time          `bson:"timestamp"`
}

func (r *ActivityRepository) Insert(ctx context.Context, a *domain.Activity) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := r.col.InsertOne(ctx, mongoActivity{
		Username:   a.Username,
		Role:       string(a.Role),
		Action:     a.Action,
		TargetType: a.TargetType,
		Target:     a.Target,
		Details:    a.Details,
		Timestamp:  a.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

func (r *ActivityRepository) List(ctx context.Context, filter ports.ActivityListFilter) ([]*domain.Activity, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	q := bson.M{}
	switch filter.Visibility {
	case domain.VisibilityAll:
	case domain.VisibilityNonSuperOwner:
		// Suppression below already hides super-owner-authored rows.
	case domain.VisibilityOwnCreated, domain.VisibilitySelf:
		q["username"] = filter.Caller
	default:
		return nil, domain.ErrForbidden
	}
	if len(filter.SuppressRoles) > 0 {
		roles := make(bson.A, 0, len(filter.SuppressRoles))
		for _, role := range filter.SuppressRoles {
			roles = append(roles, string(role))
		}
		q["role"] = bson.M{"$nin": roles}
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	cur, err := r.col.Find(ctx, q, options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	defer cur.Close(ctx)

	var out []*domain.Activity
	for cur.Next(ctx) {
		var ma mongoActivity
		if err := cur.Decode(&ma); err != nil {
			return nil, err
		}
		out = append(out, &domain.Activity{
			ID:         ma.ID.Hex(),
			Username:   ma.Username,
			Role:       domain.Role(ma.Role),
			Action:     ma.Action,
			TargetType: ma.TargetType,
			Target:     ma.Target,
			Details:    ma.Details,
			Timestamp:  ma.Timestamp,
		})
	}
	return out, cur.Err()
}

func (r *ActivityRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "timestamp", Value: -1}}},
		{Keys: bson.D{{Key: "username", Value: 1}}},
	})
	return err
}
