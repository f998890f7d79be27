// Package dbtest opens throwaway migrated databases for tests.
package dbtest

import (
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/KAsare1/Kodefx-booking/cmd/models"
	"github.com/KAsare1/Kodefx-booking/db"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var seq atomic.Int64

// Open returns a migrated sqlite database in tb's temp dir. The pool is held to
// one connection so concurrent transactions queue instead of failing with
// SQLITE_BUSY.
func Open(tb testing.TB) *gorm.DB {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "scheduling.db")
	gdb, err := gorm.Open(sqlite.Open(path+"?_foreign_keys=on&_busy_timeout=5000"), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		tb.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		tb.Fatalf("sqlite handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	tb.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.Migrate(gdb, zerolog.Nop()); err != nil {
		tb.Fatalf("migrate: %v", err)
	}
	return gdb
}

func SeedUser(tb testing.TB, gdb *gorm.DB, name string) *models.User {
	tb.Helper()

	n := seq.Add(1)
	user := &models.User{
		FullName: name,
		Email:    fmt.Sprintf("user%d@example.com", n),
		Role:     string(models.RoleUser),
	}
	if err := gdb.Create(user).Error; err != nil {
		tb.Fatalf("seed user: %v", err)
	}
	return user
}

// SeedConsultant creates a consultant together with its backing user row.
func SeedConsultant(tb testing.TB, gdb *gorm.DB, name string) *models.Consultant {
	tb.Helper()

	user := SeedUser(tb, gdb, name)
	if err := gdb.Model(user).Update("role", string(models.RoleConsultant)).Error; err != nil {
		tb.Fatalf("seed consultant role: %v", err)
	}
	consultant := &models.Consultant{
		UserID:    user.ID,
		Expertise: "Forex",
		Bio:       name + " bio",
	}
	if err := gdb.Create(consultant).Error; err != nil {
		tb.Fatalf("seed consultant: %v", err)
	}
	consultant.User = user
	return consultant
}
