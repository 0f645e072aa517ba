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

const collectionUsers = "users"

type UserRepository struct {
	col *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{col: db.Collection(collectionUsers)}
}

type mongoUser struct {
	ID                primitive.ObjectID `bson:"_id,omitempty"`
	Username          string             `bson:"username"`
	PasswordHash      string             `bson:"password_hash"`
	Role              string             `bson:"role"`
	CreatedBy         string             `bson:"created_by"`
	CreatedAt         time.Time          `bson:"created_at"`
	IsActive          bool               `bson:"is_active"`
	Balance           float64            `bson:"balance"`
	Email             string             `bson:"email,omitempty"`
	ServerStatus      bool               `bson:"server_status"`
	AccountExpiryDate *time.Time         `bson:"account_expiry_date,omitempty"`
	PreviousIsActive  *bool              `bson:"previous_is_active,omitempty"`
}

func toDomainUser(m *mongoUser) *domain.User {
	return &domain.User{
		ID:                m.ID.Hex(),
		Username:          m.Username,
		PasswordHash:      m.PasswordHash,
		Role:              domain.Role(m.Role),
		CreatedBy:         m.CreatedBy,
		CreatedAt:         m.CreatedAt,
		IsActive:          m.IsActive,
		Balance:           m.Balance,
		Email:             m.Email,
		ServerStatus:      m.ServerStatus,
		AccountExpiryDate: m.AccountExpiryDate,
		PreviousIsActive:  m.PreviousIsActive,
	}
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := mongoUser{
		Username:          user.Username,
		PasswordHash:      user.PasswordHash,
		Role:              string(user.Role),
		CreatedBy:         user.CreatedBy,
		CreatedAt:         user.CreatedAt,
		IsActive:          user.IsActive,
		Balance:           user.Balance,
		Email:             user.Email,
		ServerStatus:      user.ServerStatus,
		AccountExpiryDate: user.AccountExpiryDate,
	}
	res, err := r.col.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrUserExists
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	out := *user
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		out.ID = oid.Hex()
	}
	return &out, nil
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"username": username})
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var mu mongoUser
	if err := r.col.FindOne(ctx, filter).Decode(&mu); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return toDomainUser(&mu), nil
}

func (r *UserRepository) List(ctx context.Context, filter ports.UserListFilter) ([]*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	q := bson.M{}
	switch filter.Visibility {
	case domain.VisibilityAll:
	case domain.VisibilityNonSuperOwner:
		q["role"] = bson.M{"$ne": string(domain.RoleSuperOwner)}
		if len(filter.ExcludeCreators) > 0 {
			q["created_by"] = bson.M{"$nin": filter.ExcludeCreators}
		}
	case domain.VisibilityOwnCreated:
		q["$or"] = bson.A{
			bson.M{"username": filter.Caller},
			bson.M{"created_by": filter.Caller},
		}
	case domain.VisibilitySelf:
		q["username"] = filter.Caller
	default:
		return nil, domain.ErrForbidden
	}
	if filter.Role != "" {
		q["role"] = string(filter.Role)
	}

	cur, err := r.col.Find(ctx, q, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer cur.Close(ctx)

	var out []*domain.User
	for cur.Next(ctx) {
		var mu mongoUser
		if err := cur.Decode(&mu); err != nil {
			return nil, err
		}
		out = append(out, toDomainUser(&mu))
	}
	return out, cur.Err()
}

func (r *UserRepository) ListByCreator(ctx context.Context, creator string) ([]*domain.User, error) {
	return r.List(ctx, ports.UserListFilter{Visibility: domain.VisibilityOwnCreated, Caller: creator})
}

func (r *UserRepository) ListUsernamesByRole(ctx context.Context, role domain.Role) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cur, err := r.col.Find(ctx, bson.M{"role": string(role)},
		options.Find().SetProjection(bson.M{"username": 1}))
	if err != nil {
		return nil, fmt.Errorf("list usernames: %w", err)
	}
	defer cur.Close(ctx)

	var out []string
	for cur.Next(ctx) {
		var doc struct {
			Username string `bson:"username"`
		}
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.Username)
	}
	return out, cur.Err()
}

func (r *UserRepository) Count(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	return r.col.CountDocuments(ctx, bson.M{})
}

// Debit is the atomic decrement-if-sufficient update: the filter only matches
// when the balance covers the amount, closing the double-spend race.
func (r *UserRepository) Debit(ctx context.Context, username string, amount float64) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.UpdateOne(ctx,
		bson.M{"username": username, "balance": bson.M{"$gte": amount}},
		bson.M{"$inc": bson.M{"balance": -amount}},
	)
	if err != nil {
		return fmt.Errorf("debit: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrInsufficientBalance
	}
	return nil
}

func (r *UserRepository) Credit(ctx context.Context, username string, amount float64) error {
	return r.update(ctx, username, bson.M{"$inc": bson.M{"balance": amount}})
}

func (r *UserRepository) SetBalance(ctx context.Context, username string, balance float64) error {
	return r.update(ctx, username, bson.M{"$set": bson.M{"balance": balance}})
}

func (r *UserRepository) UpdatePasswordHash(ctx context.Context, username, hash string) error {
	return r.update(ctx, username, bson.M{"$set": bson.M{"password_hash": hash}})
}

func (r *UserRepository) UpdateUsername(ctx context.Context, oldName, newName string) error {
	err := r.update(ctx, oldName, bson.M{"$set": bson.M{"username": newName}})
	if mongo.IsDuplicateKeyError(err) {
		return domain.ErrUserExists
	}
	return err
}

func (r *UserRepository) SetActive(ctx context.Context, username string, active bool) error {
	return r.update(ctx, username, bson.M{
		"$set":   bson.M{"is_active": active},
		"$unset": bson.M{"previous_is_active": ""},
	})
}

func (r *UserRepository) SetServerStatus(ctx context.Context, username string, on bool) error {
	return r.update(ctx, username, bson.M{"$set": bson.M{"server_status": on}})
}

// SuspendForSystemExpiry snapshots is_active into previous_is_active and
// deactivates, in one pipeline update.
func (r *UserRepository) SuspendForSystemExpiry(ctx context.Context, username string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.UpdateOne(ctx, bson.M{"username": username}, mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"previous_is_active": "$is_active",
			"is_active":          false,
		}}},
	})
	if err != nil {
		return fmt.Errorf("suspend: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// RestoreFromSystemExpiry puts is_active back to its snapshot and drops the
// snapshot field.
func (r *UserRepository) RestoreFromSystemExpiry(ctx context.Context, username string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.UpdateOne(ctx, bson.M{"username": username}, mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"is_active": bson.M{"$ifNull": bson.A{"$previous_is_active", "$is_active"}},
		}}},
		{{Key: "$unset", Value: "previous_is_active"}},
	})
	if err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) ListSuspendedBySystemExpiry(ctx context.Context) ([]*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cur, err := r.col.Find(ctx, bson.M{"previous_is_active": bson.M{"$exists": true}})
	if err != nil {
		return nil, fmt.Errorf("list suspended: %w", err)
	}
	defer cur.Close(ctx)

	var out []*domain.User
	for cur.Next(ctx) {
		var mu mongoUser
		if err := cur.Decode(&mu); err != nil {
			return nil, err
		}
		out = append(out, toDomainUser(&mu))
	}
	return out, cur.Err()
}

func (r *UserRepository) update(ctx context.Context, username string, update bson.M) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.UpdateOne(ctx, bson.M{"username": username}, update)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// EnsureIndexes creates the unique username index plus lookup indexes.
func (r *UserRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "created_by", Value: 1}}},
		{Keys: bson.D{{Key: "role", Value: 1}}},
	}
	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}
