package db

import (
	"context"
	"errors"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type txRow struct {
	ID   int
	Name string
}

func openTestClient(t *testing.T) (*Client, *gorm.DB) {
	t.Helper()
	dsn := "file:" + t.Name() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&txRow{}); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return &Client{conn: conn}, conn
}

func TestWithTxCommits(t *testing.T) {
	client, conn := openTestClient(t)

	if err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		return tx.Create(&txRow{Name: "committed"}).Error
	}); err != nil {
		t.Fatalf("WithTx: %v", err)
	}

	var count int64
	if err := conn.Model(&txRow{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 committed row, got %d", count)
	}
}

func TestWithTxRollsBackOnError(t *testing.T) {
	client, conn := openTestClient(t)
	boom := errors.New("boom")

	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		if err := tx.Create(&txRow{Name: "rolled back"}).Error; err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected callback error to propagate, got %v", err)
	}

	var count int64
	if err := conn.Model(&txRow{}).Count(&count).Error; err != nil {
		t.Fatalf("count after rollback: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected rollback to discard the row, got %d rows", count)
	}
}

func TestPing(t *testing.T) {
	client, _ := openTestClient(t)
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}
