package database

import (
	"fmt"
	"net/url"
	"strings"

	"newsletter-backend/config"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Open connects with the dialector selected by s.Driver and applies the pool
// limits. The returned handle is safe for concurrent use.
func Open(s config.DatabaseSettings, logger *zap.Logger) (*gorm.DB, error) {
	dialector, err := dialectorFor(s)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: NewGormLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", s.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("connection pool: %w", err)
	}
	if s.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(s.MaxOpenConns)
	}
	if s.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(s.MaxIdleConns)
	}
	if s.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(s.ConnMaxLifetime)
	}

	return db, nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func dialectorFor(s config.DatabaseSettings) (gorm.Dialector, error) {
	dsn := strings.TrimSpace(s.DSN)

	switch s.Driver {
	case "", "postgres":
		if dsn == "" {
			sslMode := "disable"
			if s.RequireSSL {
				sslMode = "require"
			}
			dsn = fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s",
				s.Host, s.Username, s.Password, s.DatabaseName, s.Port, sslMode)
		}
		return postgres.Open(dsn), nil
	case "mysql":
		if dsn == "" {
			dsn = fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4",
				url.PathEscape(s.Username), url.PathEscape(s.Password), s.Host, s.Port, s.DatabaseName)
			if s.RequireSSL {
				dsn += "&tls=true"
			}
		}
		return mysql.Open(dsn), nil
	case "sqlite":
		if dsn == "" {
			dsn = s.DatabaseName + ".db"
		}
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", s.Driver)
	}
}
