package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/keyforge/license-panel/internal/core/domain"
)

const collectionSettings = "settings"

// settingsDocID pins the pricing document to a fixed natural key instead of
// relying on "first document wins".
const settingsDocID = "pricing"

type SettingsRepository struct {
	col *mongo.Collection
}

func NewSettingsRepository(db *mongo.Database) *SettingsRepository {
	return &SettingsRepository{col: db.Collection(collectionSettings)}
}

type mongoTier struct {
	Duration int     `bson:"duration"`
	Price    float64 `bson:"price"`
	Type     string  `bson:"type"`
}

type mongoSettings struct {
	ID              string      `bson:"_id"`
	Version         int         `bson:"version"`
	PricePerDay     float64     `bson:"price_per_day"`
	DurationPricing []mongoTier `bson:"duration_pricing"`
}

func (r *SettingsRepository) Get(ctx context.Context) (*domain.PricingSettings, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var ms mongoSettings
	if err := r.col.FindOne(ctx, bson.M{"_id": settingsDocID}).Decode(&ms); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("find settings: %w", err)
	}

	out := &domain.PricingSettings{
		Version:     ms.Version,
		PricePerDay: ms.PricePerDay,
	}
	for _, t := range ms.DurationPricing {
		out.DurationPricing = append(out.DurationPricing, domain.PriceTier{
			Duration: t.Duration,
			Price:    t.Price,
			Type:     domain.DurationType(t.Type),
		})
	}
	return out, nil
}

func (r *SettingsRepository) Put(ctx context.Context, s *domain.PricingSettings) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := mongoSettings{
		ID:          settingsDocID,
		Version:     s.Version,
		PricePerDay: s.PricePerDay,
	}
	for _, t := range s.DurationPricing {
		doc.DurationPricing = append(doc.DurationPricing, mongoTier{
			Duration: t.Duration,
			Price:    t.Price,
			Type:     string(t.Type),
		})
	}

	_, err := r.col.ReplaceOne(ctx, bson.M{"_id": settingsDocID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("put settings: %w", err)
	}
	return nil
}
