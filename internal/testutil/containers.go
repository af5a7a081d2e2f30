// containers.go
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

// Package testutil starts the postgres and redis containers used by the
// integration tests and the local development stack.
// Expects environment variables to be loaded from .env files; every
// variable has a development default.
package testutil

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	"github.com/localnerve/vaxtrack/internal/config"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/network"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestContainers holds the running development stack
type TestContainers struct {
	Network        *testcontainers.DockerNetwork
	DBContainer    testcontainers.Container
	RedisContainer testcontainers.Container

	// Config points at the mapped host ports
	Config *config.Config
}

// Terminate stops every container and removes the network
func (tc *TestContainers) Terminate(t *testing.T) {
	ctx := context.Background()
	if tc.RedisContainer != nil {
		if err := tc.RedisContainer.Terminate(ctx); err != nil {
			logMessage(t, "Failed to terminate Redis: %v", err)
		}
	}
	if tc.DBContainer != nil {
		if err := tc.DBContainer.Terminate(ctx); err != nil {
			logMessage(t, "Failed to terminate Postgres: %v", err)
		}
	}
	if tc.Network != nil {
		if err := tc.Network.Remove(ctx); err != nil {
			logMessage(t, "Failed to remove network: %v", err)
		}
	}
}

// Options selects the containers to start
type Options struct {
	Redis bool
}

// CreateTestContainers starts postgres, provisions the user pool role, and
// optionally starts redis. t may be nil when run from a command.
func CreateTestContainers(t *testing.T, opts Options) (*TestContainers, error) {
	ctx := context.Background()
	tc := &TestContainers{}

	nw, err := network.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create network: %w", err)
	}
	tc.Network = nw

	cfg := &config.Config{
		DBType:               "postgres",
		DBDatabase:           getEnv("DB_DATABASE", "vaxtrack"),
		DBAppUser:            getEnv("DB_APP_USER", "vaxtrack_app"),
		DBAppPassword:        getEnv("DB_APP_PASSWORD", "vaxtrack_app"),
		DBAppConnectionLimit: 5,
		DBUser:               getEnv("DB_USER", "vaxtrack_user"),
		DBPassword:           getEnv("DB_PASSWORD", "vaxtrack_user"),
		DBConnectionLimit:    10,
		AuthMode:             config.AuthModeJWT,
		JWTSecret:            getEnv("JWT_SECRET", "development-secret"),
		TimeZone:             "UTC",
	}

	dbImage := getEnv("DB_IMAGE", "postgres:16-alpine")
	if exists, err := ImageExists(ctx, dbImage); err == nil && !exists {
		logMessage(t, "Image %s not found locally, pulling...", dbImage)
	}

	tcpDBPort, err := nat.NewPort("tcp", "5432")
	if err != nil {
		tc.Terminate(t)
		return nil, fmt.Errorf("failed to create DB port: %w", err)
	}
	dbContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        dbImage,
			ExposedPorts: []string{string(tcpDBPort)},
			Env: map[string]string{
				"POSTGRES_USER":     cfg.DBAppUser,
				"POSTGRES_PASSWORD": cfg.DBAppPassword,
				"POSTGRES_DB":       cfg.DBDatabase,
			},
			WaitingFor: wait.ForAll(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second),
				wait.ForListeningPort(tcpDBPort).WithStartupTimeout(60*time.Second),
			),
			Networks: []string{nw.Name},
			NetworkAliases: map[string][]string{
				nw.Name: {"postgres"},
			},
		},
		Started: true,
	})
	if err != nil {
		tc.Terminate(t)
		return nil, fmt.Errorf("failed to start postgres: %w", err)
	}
	tc.DBContainer = dbContainer

	dbHost, err := dbContainer.Host(ctx)
	if err != nil {
		tc.Terminate(t)
		return nil, err
	}
	dbPort, err := dbContainer.MappedPort(ctx, tcpDBPort)
	if err != nil {
		tc.Terminate(t)
		return nil, err
	}
	cfg.DBHost = dbHost
	cfg.DBPort = dbPort.Port()
	logMessage(t, "DB_HOST=%s DB_PORT=%s", cfg.DBHost, cfg.DBPort)

	if err := createUserRole(cfg); err != nil {
		tc.Terminate(t)
		return nil, fmt.Errorf("failed to provision %s: %w", cfg.DBUser, err)
	}

	if opts.Redis {
		tcpRedisPort, err := nat.NewPort("tcp", "6379")
		if err != nil {
			tc.Terminate(t)
			return nil, fmt.Errorf("failed to create Redis port: %w", err)
		}
		redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: testcontainers.ContainerRequest{
				Image:        getEnv("REDIS_IMAGE", "redis:7-alpine"),
				ExposedPorts: []string{string(tcpRedisPort)},
				WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
				Networks:     []string{nw.Name},
				NetworkAliases: map[string][]string{
					nw.Name: {"redis"},
				},
			},
			Started: true,
		})
		if err != nil {
			tc.Terminate(t)
			return nil, fmt.Errorf("failed to start redis: %w", err)
		}
		tc.RedisContainer = redisContainer

		redisHost, _ := redisContainer.Host(ctx)
		redisPort, _ := redisContainer.MappedPort(ctx, tcpRedisPort)
		cfg.RedisURL = fmt.Sprintf("redis://%s:%s/0", redisHost, redisPort.Port())
		logMessage(t, "REDIS_URL=%s", cfg.RedisURL)
	}

	tc.Config = cfg
	logMessage(t, "vaxtrack testcontainers started successfully")
	return tc, nil
}

// createUserRole creates the non-owner login role the user pool connects as
func createUserRole(cfg *config.Config) error {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.DBHost, cfg.DBPort, cfg.DBAppUser, cfg.DBAppPassword, cfg.DBDatabase)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	// Wait for connection to be really ready
	for i := 0; i < 30; i++ {
		if err = sqlDB.Ping(); err == nil {
			break
		}
		time.Sleep(time.Second)
	}
	if err != nil {
		return fmt.Errorf("postgres not ready after 30 seconds: %w", err)
	}

	var exists bool
	if err := db.Raw("SELECT EXISTS (SELECT 1 FROM pg_roles WHERE rolname = ?)", cfg.DBUser).Scan(&exists).Error; err != nil {
		return err
	}
	if exists {
		return nil
	}
	// Identifiers and passwords cannot be bound as parameters here.
	return db.Exec(fmt.Sprintf(`CREATE ROLE "%s" LOGIN PASSWORD '%s'`, cfg.DBUser, cfg.DBPassword)).Error
}

// ImageExists reports whether imageName is present in the local docker cache
func ImageExists(ctx context.Context, imageName string) (bool, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return false, err
	}
	defer cli.Close()

	images, err := cli.ImageList(ctx, image.ListOptions{})
	if err != nil {
		return false, err
	}

	for _, img := range images {
		for _, tag := range img.RepoTags {
			if tag == imageName {
				return true, nil
			}
		}
	}
	return false, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func logMessage(t *testing.T, format string, args ...any) {
	if t != nil {
		t.Logf(format, args...)
	} else {
		fmt.Printf(format+"\n", args...)
	}
}
