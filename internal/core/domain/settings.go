package domain

// PriceTier prices one duration bucket for key generation.
type PriceTier struct {
	Duration int          `json:"duration"`
	Price    float64      `json:"price"`
	Type     DurationType `json:"type"`
}

// PricingSettings is the versioned pricing document. PricePerDay is the legacy
// flat rate; DurationPricing holds the tiered model. The computed-duration
// issuance path intentionally applies only the flat rate (legacy behaviour,
// pinned by tests — do not fold the tiers into it).
type PricingSettings struct {
	Version         int         `json:"version"`
	PricePerDay     float64     `json:"price_per_day"`
	DurationPricing []PriceTier `json:"duration_pricing"`
}

// TierFor returns the tier matching duration+type, if any.
func (s *PricingSettings) TierFor(duration int, dt DurationType) (PriceTier, bool) {
	for _, t := range s.DurationPricing {
		if t.Duration == duration && t.Type == dt {
			return t, true
		}
	}
	return PriceTier{}, false
}

// DefaultPricing is installed when no settings document exists yet.
func DefaultPricing() *PricingSettings {
	return &PricingSettings{
		Version:     1,
		PricePerDay: 10,
		DurationPricing: []PriceTier{
			{Duration: 1, Price: 10, Type: DurationDays},
			{Duration: 7, Price: 60, Type: DurationDays},
			{Duration: 30, Price: 200, Type: DurationDays},
		},
	}
}
