// connection.go
//
// Personal vaccination record tracker with role-aware dashboards
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of vaxtrack.
// vaxtrack is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// vaxtrack is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with vaxtrack.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

package database

import (
	"fmt"

	"github.com/localnerve/vaxtrack/internal/config"
	"github.com/localnerve/vaxtrack/internal/models"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/driver/sqlserver"
	"gorm.io/gorm"
	"go.uber.org/zap"
	"gorm.io/gorm/logger"
)

// credentials selects one of the two configured pools
type credentials struct {
	label    string
	user     string
	password string
	limit    int
}

// Connect establishes the privileged app pool based on the configured DB_TYPE.
// It owns the schema, runs migrations and provisions profiles.
func Connect(cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	return open(cfg, log, credentials{
		label:    "app",
		user:     cfg.DBAppUser,
		password: cfg.DBAppPassword,
		limit:    cfg.DBAppConnectionLimit,
	})
}

// ConnectUser establishes the user pool (with different credentials).
// On postgres this role is subject to the row-level security policies.
func ConnectUser(cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	return open(cfg, log, credentials{
		label:    "user",
		user:     cfg.DBUser,
		password: cfg.DBPassword,
		limit:    cfg.DBConnectionLimit,
	})
}

// Dialector builds the GORM dialector for DB_TYPE and the given credentials
func Dialector(cfg *config.Config, user, password string) (gorm.Dialector, error) {
	switch cfg.DBType {
	case "mysql", "mariadb":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			user, password, cfg.DBHost, cfg.DBPort, cfg.DBDatabase)
		return mysql.Open(dsn), nil

	case "postgres", "postgresql":
		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
			cfg.DBHost, user, password, cfg.DBDatabase, cfg.DBPort)
		return postgres.Open(dsn), nil

	case "sqlite":
		// For SQLite, DBDatabase is the file path and both pools share it
		return sqlite.Open(cfg.DBDatabase), nil

	case "sqlserver", "mssql":
		dsn := fmt.Sprintf("sqlserver://%s:%s@%s:%s?database=%s",
			user, password, cfg.DBHost, cfg.DBPort, cfg.DBDatabase)
		return sqlserver.Open(dsn), nil
	}

	return nil, fmt.Errorf("unsupported database type: %s", cfg.DBType)
}

func open(cfg *config.Config, log *zap.Logger, cred credentials) (*gorm.DB, error) {
	dialector, err := Dialector(cfg, cred.user, cred.password)
	if err != nil {
		return nil, err
	}
	return openDialector(dialector, cfg, log, cred)
}

func openDialector(dialector gorm.Dialector, cfg *config.Config, log *zap.Logger, cred credentials) (*gorm.DB, error) {
	if log == nil {
		log = zap.NewNop()
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s database: %w", cred.label, err)
	}

	// Get underlying SQL DB for connection pool configuration
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying SQL DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cred.limit)
	sqlDB.SetMaxIdleConns(cred.limit / 2)

	log.Info("connected to database",
		zap.String("type", cfg.DBType),
		zap.String("pool", cred.label),
		zap.String("database", cfg.DBDatabase))

	return db, nil
}

// AutoMigrate runs automatic migrations for all models
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Profile{},
		&models.VaccinationRecord{},
		&models.Reminder{},
	)
}

// Close closes the database connection
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// IsPostgres reports whether db talks to postgres
func IsPostgres(db *gorm.DB) bool {
	return db.Dialector.Name() == "postgres"
}
