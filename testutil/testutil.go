// Package testutil builds migrated in-memory databases and seed data for tests.
package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"storefront-backend/database"
	"storefront-backend/models"
)

var seq atomic.Int64

// NewDB returns a migrated SQLite database private to the test.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:storefront_test_%d?mode=memory&cache=shared", seq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.AutoMigrate(db))
	return db
}

// User inserts a customer with the given email and password "password".
func User(t *testing.T, db *gorm.DB, email string, mutate ...func(*models.User)) *models.User {
	t.Helper()
	u := &models.User{FirstName: "Test", LastName: "User", Email: email, Role: "customer"}
	require.NoError(t, u.SetPassword("password"))
	for _, m := range mutate {
		m(u)
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

// Product inserts an active product with the given price.
func Product(t *testing.T, db *gorm.DB, slug string, price int64) *models.Product {
	t.Helper()
	p := &models.Product{
		Slug:         slug,
		DisplayNames: datatypes.NewJSONType(models.LocalizedText{EN: slug, ZhTW: slug}),
		Price:        decimal.NewFromInt(price),
		Active:       true,
		Stock:        100,
	}
	require.NoError(t, db.Create(p).Error)
	return p
}

// DeliverySettings stores the singleton settings row.
func DeliverySettings(t *testing.T, db *gorm.DB, threshold int64, costs ...int64) *models.DeliverySettings {
	t.Helper()
	methods := make([]models.DeliveryMethod, 0, len(costs))
	for i, c := range costs {
		methods = append(methods, models.DeliveryMethod{
			Name: models.LocalizedText{EN: fmt.Sprintf("Method %d", i), ZhTW: fmt.Sprintf("方式 %d", i)},
			Cost: decimal.NewFromInt(c),
		})
	}
	s := &models.DeliverySettings{
		ID:                    models.DeliverySettingsID,
		DeliveryMethods:       datatypes.NewJSONSlice(methods),
		FreeDeliveryThreshold: decimal.NewFromInt(threshold),
	}
	require.NoError(t, db.Save(s).Error)
	return s
}
