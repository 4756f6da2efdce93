package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"vcoin/internal/domain"
)

// Tier is one row of the signup bonus table. MaxMember is inclusive; 0 means open-ended.
type Tier struct {
	MaxMember int64 `json:"max_member" validate:"gte=0"`
	NewUser   int64 `json:"new_user" validate:"gte=0"`
	Referral  int64 `json:"referral" validate:"gte=0"`
}

// SystemConfig holds the coin rule tunables
type SystemConfig struct {
	SecurityCoinNewUser        int64  `json:"security_coin_new_user" validate:"gte=0"`
	SecurityCoinReferral       int64  `json:"security_coin_referral" validate:"gte=0"`
	DividendCoinsPerUnit       int64  `json:"dividend_coins_per_unit" validate:"gt=0"`
	DividendReferralPercentage int64  `json:"dividend_referral_percentage" validate:"gte=0,lte=100"`
	SignupTiers                []Tier `json:"signup_tiers" validate:"dive"`
}

// DefaultSystemConfig is used until an admin stores a config
func DefaultSystemConfig() SystemConfig {
	return SystemConfig{
		SecurityCoinNewUser:        500,
		SecurityCoinReferral:       1000,
		DividendCoinsPerUnit:       10000,
		DividendReferralPercentage: 10,
		SignupTiers: []Tier{
			{MaxMember: 10000, NewUser: 500, Referral: 1000},
			{MaxMember: 20000, NewUser: 300, Referral: 600},
			{MaxMember: 100000, NewUser: 200, Referral: 400},
			{MaxMember: 0, NewUser: 100, Referral: 200},
		},
	}
}

// TierFor selects the signup tier for a member number. Without a matching
// tier the scalar new-user and referral amounts apply.
func (c SystemConfig) TierFor(memberNumber int64) Tier {
	for _, t := range c.SignupTiers {
		if t.MaxMember == 0 || memberNumber <= t.MaxMember {
			return t
		}
	}
	return Tier{NewUser: c.SecurityCoinNewUser, Referral: c.SecurityCoinReferral}
}

// ReferralBonus is floor(amount * pct / 100) for positive amounts, 0 otherwise.
// The product is split around 100 so it cannot overflow for pct <= 100.
func (c SystemConfig) ReferralBonus(amount int64) int64 {
	if amount <= 0 {
		return 0
	}
	pct := c.DividendReferralPercentage
	return amount/100*pct + amount%100*pct/100
}

// ConfigStore persists SystemConfig as a JSON document in the metadata table
type ConfigStore struct {
	db       *gorm.DB
	validate *validator.Validate
}

// NewConfigStore creates a config store
func NewConfigStore(db *gorm.DB, validate *validator.Validate) *ConfigStore {
	if validate == nil {
		validate = validator.New()
	}
	return &ConfigStore{db: db, validate: validate}
}

// Get returns the stored config, or the defaults when none was saved
func (s *ConfigStore) Get(ctx context.Context) (SystemConfig, error) {
	var row domain.Metadata
	err := s.db.WithContext(ctx).Where("meta_key = ?", domain.MetaSystemConfig).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return DefaultSystemConfig(), nil
	}
	if err != nil {
		return SystemConfig{}, err
	}
	var cfg SystemConfig
	if err := json.Unmarshal([]byte(row.Value), &cfg); err != nil {
		return SystemConfig{}, fmt.Errorf("decode system config: %w", err)
	}
	return cfg, nil
}

// Put validates and stores the config
func (s *ConfigStore) Put(ctx context.Context, cfg SystemConfig) error {
	if err := s.Validate(cfg); err != nil {
		return err
	}
	b, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	row := domain.Metadata{Key: domain.MetaSystemConfig, Value: string(b), UpdatedAt: time.Now()}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "meta_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"meta_value", "updated_at"}),
	}).Create(&row).Error
}

// Validate checks field ranges and that tiers are strictly ascending with only the last open-ended
func (s *ConfigStore) Validate(cfg SystemConfig) error {
	if err := s.validate.Struct(cfg); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	var prev int64
	for i, t := range cfg.SignupTiers {
		if t.MaxMember == 0 {
			if i != len(cfg.SignupTiers)-1 {
				return fmt.Errorf("%w: open-ended tier must be last", ErrInvalidConfig)
			}
			continue
		}
		if t.MaxMember <= prev {
			return fmt.Errorf("%w: tier bounds must be strictly ascending", ErrInvalidConfig)
		}
		prev = t.MaxMember
	}
	return nil
}
