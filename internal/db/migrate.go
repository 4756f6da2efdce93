package db

import (
	"errors"  // For record-not-found checks
	"fmt"     // For formatted errors
	"strings" // For driver name normalisation
	"time"    // For connection pool lifetimes

	"vcoin/internal/domain" // Importing domain models
	"vcoin/internal/utils"  // Password hashing and referral codes

	"github.com/sirupsen/logrus"

	"gorm.io/driver/mysql"    // MySQL driver for GORM
	"gorm.io/driver/postgres" // PostgreSQL driver for GORM
	"gorm.io/gorm"            // GORM ORM library
	"gorm.io/gorm/clause"     // For upserts
)

// Open connects to the configured database driver
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(driver) {
	case "mysql":
		dialector = mysql.Open(dsn) // MySQL connection
	case "postgres":
		dialector = postgres.Open(dsn) // PostgreSQL connection
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{TranslateError: true}) // Unique violations surface as gorm.ErrDuplicatedKey
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB() // Underlying pool
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

// Migrate creates or updates the schema and seeds the member number counter
func Migrate(db *gorm.DB) error {
	// AutoMigrate will create tables, missing foreign keys, constraints, columns and indexes
	if err := db.AutoMigrate(domain.Models()...); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return SeedCounter(db)
}

// SeedCounter makes sure the next_member_number row exists and is ahead of every member number
func SeedCounter(db *gorm.DB) error {
	var maxNumber int64
	if err := db.Model(&domain.User{}).Select("COALESCE(MAX(member_number), 0)").Scan(&maxNumber).Error; err != nil {
		return err
	}
	row := domain.Metadata{Key: domain.MetaNextMemberNumber, Counter: maxNumber + 1, UpdatedAt: time.Now()}
	// Keep an existing counter unless it lags behind the users table
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
		return err
	}
	res := db.Model(&domain.Metadata{}).
		Where("meta_key = ? AND meta_counter <= ?", domain.MetaNextMemberNumber, maxNumber).
		Update("meta_counter", maxNumber+1)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		logrus.WithField("next_member_number", maxNumber+1).Warn("Member number counter was behind, advanced")
	}
	return nil
}

// SeedAdmin creates the first admin account when no user with the phone exists
func SeedAdmin(db *gorm.DB, name, phone, password string) (domain.User, error) {
	var existing domain.User
	err := db.Where("phone = ?", phone).First(&existing).Error
	if err == nil {
		return existing, nil // Already seeded
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.User{}, err
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		return domain.User{}, err
	}
	code, err := utils.GenerateReferralCode()
	if err != nil {
		return domain.User{}, err
	}
	admin := domain.User{
		Name:         name,
		Phone:        phone,
		Password:     hash,
		ReferralCode: code,
		Role:         domain.RoleAdmin,
		Status:       domain.StatusActive,
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		// Take the next member number from the counter row
		if err := tx.Model(&domain.Metadata{}).Where("meta_key = ?", domain.MetaNextMemberNumber).
			UpdateColumn("meta_counter", gorm.Expr("meta_counter + 1")).Error; err != nil {
			return err
		}
		var row domain.Metadata
		if err := tx.Where("meta_key = ?", domain.MetaNextMemberNumber).First(&row).Error; err != nil {
			return err
		}
		admin.MemberNumber = row.Counter - 1
		return tx.Create(&admin).Error
	})
	if err != nil {
		return domain.User{}, err
	}
	logrus.WithFields(logrus.Fields{"user_id": admin.ID, "phone": phone}).Info("Admin account seeded")
	return admin, nil
}
