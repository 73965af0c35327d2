package service

import (
	"fmt"
	"strings"
	"time"

	"escrow-marketplace/config"
	"escrow-marketplace/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Settings are the marketplace money rules, injected into every service.
type Settings struct {
	PlatformUserID             uuid.UUID
	FeeRate                    decimal.Decimal
	MinFee                     int64
	MaxFee                     int64 // 0 = unbounded
	PointsPerUnit              int64
	VerificationThreshold      int64
	DisputeWindow              time.Duration
	LowStockThreshold          int64
	DeliveredRefundPenaltyRate decimal.Decimal
	PenaltyWeights             domain.PenaltyWeights
	IdempotencyTTL             time.Duration
	DefaultMinIncrement        int64
	DefaultAntiSnipeWindow     time.Duration
	DefaultExtension           time.Duration
}

// DefaultSettings mirrors the configuration defaults.
func DefaultSettings(platformUserID uuid.UUID) Settings {
	return Settings{
		PlatformUserID:             platformUserID,
		FeeRate:                    decimal.RequireFromString("0.04"),
		PointsPerUnit:              10,
		VerificationThreshold:      500,
		DisputeWindow:              72 * time.Hour,
		LowStockThreshold:          5,
		DeliveredRefundPenaltyRate: decimal.Zero,
		PenaltyWeights:             domain.DefaultPenaltyWeights(),
		IdempotencyTTL:             24 * time.Hour,
		DefaultMinIncrement:        100,
		DefaultAntiSnipeWindow:     2 * time.Minute,
		DefaultExtension:           2 * time.Minute,
	}
}

// SettingsFromConfig parses the marketplace section. Call cfg.Validate first.
func SettingsFromConfig(cfg config.MarketplaceConfig) (Settings, error) {
	platform, err := uuid.Parse(cfg.PlatformUserID)
	if err != nil {
		return Settings{}, fmt.Errorf("platform user id: %w", err)
	}
	rate, err := decimal.NewFromString(cfg.FeeRate)
	if err != nil {
		return Settings{}, fmt.Errorf("fee rate: %w", err)
	}
	refundPenalty, err := decimal.NewFromString(cfg.DeliveredRefundPenaltyRate)
	if err != nil {
		return Settings{}, fmt.Errorf("delivered refund penalty rate: %w", err)
	}

	weights := domain.PenaltyWeights{}
	for cond, points := range cfg.ConditionPenaltyPoints {
		c := domain.Condition(strings.ToUpper(cond))
		if !c.Valid() {
			return Settings{}, fmt.Errorf("condition penalty points: unknown condition %q", cond)
		}
		weights[c] = points
	}
	if len(weights) == 0 {
		weights = domain.DefaultPenaltyWeights()
	}

	return Settings{
		PlatformUserID:             platform,
		FeeRate:                    rate,
		MinFee:                     cfg.MinFee,
		MaxFee:                     cfg.MaxFee,
		PointsPerUnit:              cfg.PointsPerUnit,
		VerificationThreshold:      cfg.VerificationThreshold,
		DisputeWindow:              cfg.DisputeWindow,
		LowStockThreshold:          cfg.LowStockThreshold,
		DeliveredRefundPenaltyRate: refundPenalty,
		PenaltyWeights:             weights,
		IdempotencyTTL:             cfg.IdempotencyTTL,
		DefaultMinIncrement:        cfg.DefaultAuctionMinIncrement,
		DefaultAntiSnipeWindow:     cfg.DefaultAntiSnipeWindow,
		DefaultExtension:           cfg.DefaultAntiSnipeExtension,
	}, nil
}

// Fee is round(gross × FeeRate) clamped to [MinFee, MaxFee] and never above
// gross. The gross cap wins over MinFee, so a line smaller than MinFee pays its
// whole gross as fee and the seller nets zero rather than going negative.
func (s Settings) Fee(gross int64) int64 {
	if gross <= 0 {
		return 0
	}
	fee := domain.ApplyRate(gross, s.FeeRate)
	if fee < s.MinFee {
		fee = s.MinFee
	}
	if s.MaxFee > 0 && fee > s.MaxFee {
		fee = s.MaxFee
	}
	if fee > gross {
		fee = gross
	}
	return fee
}

// Points is floor(net in currency units / PointsPerUnit).
func (s Settings) Points(net int64) int64 {
	if s.PointsPerUnit <= 0 {
		return 0
	}
	return domain.WholeUnits(net) / s.PointsPerUnit
}
