package models_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/casahogar/cashbox_backend/config"
	"github.com/casahogar/cashbox_backend/models"
	"github.com/casahogar/cashbox_backend/utils"
	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// setupTestDB points config at a fresh on-disk SQLite file with foreign keys
// enforced. Redis stays disconnected (caches, sessions and locks are no-ops)
// unless the test also calls setupTestRedis.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "cashbox.db") + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := gorm.Open(sqlite.Open(dsn), config.InitConfig())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := models.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	prev := config.GetDB()
	config.SetDB(db)
	t.Cleanup(func() {
		config.SetDB(prev)
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// setupTestRedis connects config to an in-process Redis for the test.
func setupTestRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	config.SetRedisDB(client)
	t.Cleanup(func() {
		config.SetRedisDB(nil)
		_ = client.Close()
	})
	return mr
}

func createTestUser(t *testing.T, username string, name string, role models.UserRole) models.Actor {
	t.Helper()
	user, err := models.CreateUser(context.Background(), &models.NewUser{
		Username: username,
		Name:     name,
		Password: "secret-password",
		Role:     role,
	})
	if err != nil {
		t.Fatalf("CreateUser(%s): %v", username, err)
	}
	return user.Actor("127.0.0.1")
}

func adminActor(t *testing.T) models.Actor {
	return createTestUser(t, "admin", "Rosa", models.UserRoleAdmin)
}

func treasurerActor(t *testing.T) models.Actor {
	return createTestUser(t, "tesorero", "Luis", models.UserRoleTreasurer)
}

func createTestProduct(t *testing.T, actor models.Actor, name string, stock int, price string) *models.Product {
	t.Helper()
	product, err := models.CreateProduct(context.Background(), actor, &models.NewProduct{
		Name:      name,
		Stock:     stock,
		BasePrice: decimal.RequireFromString(price),
	})
	if err != nil {
		t.Fatalf("CreateProduct(%s): %v", name, err)
	}
	return product
}

func mustStock(t *testing.T, productId int) int {
	t.Helper()
	stock, err := models.GetProductStock(context.Background(), productId)
	if err != nil {
		t.Fatalf("GetProductStock(%d): %v", productId, err)
	}
	return stock
}

func assertDecimal(t *testing.T, label string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(decimal.RequireFromString(want)) {
		t.Fatalf("%s: got %s want %s", label, got.StringFixed(2), want)
	}
}

func assertCode(t *testing.T, err error, target error) *utils.AppError {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v, got nil", target)
	}
	if !errors.Is(err, target) {
		t.Fatalf("expected %v, got %v", target, err)
	}
	var appErr *utils.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *utils.AppError, got %T", err)
	}
	return appErr
}
