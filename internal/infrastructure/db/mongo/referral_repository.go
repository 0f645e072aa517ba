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

const collectionReferrals = "referral_codes"

type ReferralRepository struct {
	col *mongo.Collection
}

func NewReferralRepository(db *mongo.Database) *ReferralRepository {
	return &ReferralRepository{col: db.Collection(collectionReferrals)}
}

type mongoReferral struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"`
	Code           string             `bson:"code"`
	Role           string             `bson:"role"`
	CreatedBy      string             `bson:"created_by"`
	CreatedAt      time.Time          `bson:"created_at"`
	IsActive       bool               `bson:"is_active"`
	UsedBy         string             `bson:"used_by,omitempty"`
	UsedAt         *time.Time         `bson:"used_at,omitempty"`
	InitialBalance float64            `bson:"initial_balance"`
	ExpiryDays     int                `bson:"expiry_days"`
	ExpiryDate     time.Time          `bson:"expiry_date"`
}

func toDomainReferral(m *mongoReferral) *domain.ReferralCode {
	return &domain.ReferralCode{
		ID:             m.ID.Hex(),
		Code:           m.Code,
		Role:           domain.Role(m.Role),
		CreatedBy:      m.CreatedBy,
		CreatedAt:      m.CreatedAt,
		IsActive:       m.IsActive,
		UsedBy:         m.UsedBy,
		UsedAt:         m.UsedAt,
		InitialBalance: m.InitialBalance,
		ExpiryDays:     m.ExpiryDays,
		ExpiryDate:     m.ExpiryDate,
	}
}

func (r *ReferralRepository) Insert(ctx context.Context, rc *domain.ReferralCode) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := r.col.InsertOne(ctx, mongoReferral{
		Code:           rc.Code,
		Role:           string(rc.Role),
		CreatedBy:      rc.CreatedBy,
		CreatedAt:      rc.CreatedAt,
		IsActive:       rc.IsActive,
		InitialBalance: rc.InitialBalance,
		ExpiryDays:     rc.ExpiryDays,
		ExpiryDate:     rc.ExpiryDate,
	})
	if err != nil {
		return fmt.Errorf("insert referral: %w", err)
	}
	return nil
}

func (r *ReferralRepository) FindByCode(ctx context.Context, code string) (*domain.ReferralCode, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var mr mongoReferral
	if err := r.col.FindOne(ctx, bson.M{"code": code}).Decode(&mr); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrReferralNotFound
		}
		return nil, fmt.Errorf("find referral: %w", err)
	}
	return toDomainReferral(&mr), nil
}

// Redeem flips an active, unused code to used in one conditional update.
// A second redemption matches no document and fails, which is what makes the
// code exactly-once.
func (r *ReferralRepository) Redeem(ctx context.Context, code, usedBy string, at time.Time) (*domain.ReferralCode, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var mr mongoReferral
	err := r.col.FindOneAndUpdate(ctx,
		bson.M{"code": code, "is_active": true, "used_by": bson.M{"$in": bson.A{"", nil}}},
		bson.M{"$set": bson.M{"is_active": false, "used_by": usedBy, "used_at": at}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&mr)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrReferralInvalid
		}
		return nil, fmt.Errorf("redeem referral: %w", err)
	}
	return toDomainReferral(&mr), nil
}

func (r *ReferralRepository) List(ctx context.Context, filter ports.ReferralListFilter) ([]*domain.ReferralCode, error) {
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

	cur, err := r.col.Find(ctx, q, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("list referrals: %w", err)
	}
	defer cur.Close(ctx)

	var out []*domain.ReferralCode
	for cur.Next(ctx) {
		var mr mongoReferral
		if err := cur.Decode(&mr); err != nil {
			return nil, err
		}
		out = append(out, toDomainReferral(&mr))
	}
	return out, cur.Err()
}

func (r *ReferralRepository) Delete(ctx context.Context, code string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.DeleteOne(ctx, bson.M{"code": code})
	if err != nil {
		return fmt.Errorf("delete referral: %w", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrReferralNotFound
	}
	return nil
}

func (r *ReferralRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "code", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "created_by", Value: 1}}},
	})
	return err
}
