package credits

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/taskiq-ai/taskiq-backend/pkg/db/models"
)

// Explicit DDL instead of AutoMigrate: the model tags carry Postgres defaults
// sqlite cannot evaluate.
func setupCreditTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + t.Name() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	ddl := `CREATE TABLE credit_accounts (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL UNIQUE,
  daily_limit INTEGER NOT NULL DEFAULT 10,
  used_today INTEGER NOT NULL DEFAULT 0,
  last_updated DATETIME NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
)`
	if err := conn.Exec(ddl).Error; err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return conn
}

func seedAccount(t *testing.T, conn *gorm.DB, dailyLimit, usedToday int) uuid.UUID {
	t.Helper()
	userID := uuid.New()
	account := models.CreditAccount{
		ID:          uuid.New(),
		UserID:      userID,
		DailyLimit:  dailyLimit,
		UsedToday:   usedToday,
		LastUpdated: time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC),
	}
	if err := conn.Create(&account).Error; err != nil {
		t.Fatalf("seed account: %v", err)
	}
	return userID
}

func loadAccount(t *testing.T, conn *gorm.DB, userID uuid.UUID) models.CreditAccount {
	t.Helper()
	var account models.CreditAccount
	if err := conn.Where("user_id = ?", userID).First(&account).Error; err != nil {
		t.Fatalf("load account: %v", err)
	}
	return account
}

func TestConsumeIfAvailableDebitsWithinLimit(t *testing.T) {
	conn := setupCreditTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	now := time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)

	userID := seedAccount(t, conn, 10, 9)

	consumed, err := repo.ConsumeIfAvailable(ctx, userID, 1, now)
	if err != nil {
		t.Fatalf("consume returned error: %v", err)
	}
	if !consumed {
		t.Fatal("expected consume within limit to succeed")
	}
	if got := loadAccount(t, conn, userID).UsedToday; got != 10 {
		t.Fatalf("expected used_today 10, got %d", got)
	}
}

func TestConsumeIfAvailableRejectsOverLimitWithoutMutation(t *testing.T) {
	conn := setupCreditTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	now := time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)

	userID := seedAccount(t, conn, 10, 8)

	consumed, err := repo.ConsumeIfAvailable(ctx, userID, 5, now)
	if err != nil {
		t.Fatalf("consume returned error: %v", err)
	}
	if consumed {
		t.Fatal("expected consume past limit to be rejected")
	}
	if got := loadAccount(t, conn, userID).UsedToday; got != 8 {
		t.Fatalf("rejected consume mutated used_today: %d", got)
	}
}

func TestConsumeIfAvailableAllowsExactBoundary(t *testing.T) {
	conn := setupCreditTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	now := time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)

	userID := seedAccount(t, conn, 10, 8)

	consumed, err := repo.ConsumeIfAvailable(ctx, userID, 2, now)
	if err != nil {
		t.Fatalf("consume returned error: %v", err)
	}
	if !consumed {
		t.Fatal("expected consume landing exactly on the limit to succeed")
	}
	account := loadAccount(t, conn, userID)
	if account.UsedToday != 10 {
		t.Fatalf("expected used_today 10, got %d", account.UsedToday)
	}

	// The account is now exhausted; one more unit must be rejected.
	consumed, err = repo.ConsumeIfAvailable(ctx, userID, 1, now)
	if err != nil {
		t.Fatalf("consume returned error: %v", err)
	}
	if consumed {
		t.Fatal("expected consume on exhausted account to be rejected")
	}
	if got := loadAccount(t, conn, userID).UsedToday; got != 10 {
		t.Fatalf("expected used_today to stay 10, got %d", got)
	}
}
