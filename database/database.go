package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anjiri1684/guild_social/models"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// ConnectDB opens the Postgres pool. Errors from the driver are translated
// so unique violations surface as gorm.ErrDuplicatedKey.
func ConnectDB(dsn string, logger *zap.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		PrepareStmt:                              false,
		SkipDefaultTransaction:                   true,
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
		Logger:                                   NewGormLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logger.Info("database connected")
	return db, nil
}

func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.Alliance{},
		&models.AllianceMember{},
		&models.Conversation{},
		&models.ConversationParticipant{},
		&models.Message{},
		&models.FriendRequest{},
	)
	if err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	return nil
}

var demoUsers = []struct {
	name  string
	email string
}{
	{"Ari", "ari@demo.guild"},
	{"Bex", "bex@demo.guild"},
	{"Cai", "cai@demo.guild"},
}

const demoAlliance = "Vanguard"

// SeedDemoUsers creates the demo accounts and puts the first two in one
// alliance. Existing accounts are left alone.
func SeedDemoUsers(db *gorm.DB, password string, logger *zap.Logger) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash demo password: %w", err)
	}

	return db.Transaction(func(tx *gorm.DB) error {
		seeded := make([]models.User, 0, len(demoUsers))
		for _, demo := range demoUsers {
			var user models.User
			err := tx.Where("email = ?", demo.email).First(&user).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				user = models.User{
					DisplayName: demo.name,
					Email:       demo.email,
					Password:    string(hashedPassword),
					IsActive:    true,
				}
				if err := tx.Create(&user).Error; err != nil {
					return fmt.Errorf("seed user %s: %w", demo.email, err)
				}
				logger.Info("seeded demo user", zap.String("email", demo.email), zap.String("user_id", user.ID.String()))
			} else if err != nil {
				return err
			}
			seeded = append(seeded, user)
		}

		var alliance models.Alliance
		err := tx.Where("name = ?", demoAlliance).First(&alliance).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		alliance = models.Alliance{Name: demoAlliance}
		if err := tx.Create(&alliance).Error; err != nil {
			return fmt.Errorf("seed alliance: %w", err)
		}
		for _, user := range seeded[:2] {
			member := models.AllianceMember{
				AllianceID: alliance.ID,
				UserID:     user.ID,
				Role:       "member",
				Active:     true,
				JoinedAt:   time.Now().UTC(),
			}
			if err := tx.Create(&member).Error; err != nil {
				return fmt.Errorf("seed alliance member: %w", err)
			}
		}
		logger.Info("seeded demo alliance", zap.String("alliance_id", alliance.ID.String()))
		return nil
	})
}
