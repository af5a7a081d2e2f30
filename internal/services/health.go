package services

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/localnerve/vaxtrack/internal/config"
	"github.com/localnerve/vaxtrack/internal/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Component states reported by HealthCheck
const (
	StateOK          = "ok"
	StateError       = "error"
	StateUnreachable = "unreachable"
	StateDisabled    = "disabled"
)

// HealthCheckResult represents the result of a health check
type HealthCheckResult struct {
	Status       string            `json:"status"`
	Database     string            `json:"database"`
	Authorizer   string            `json:"authorizer"`
	Redis        string            `json:"redis"`
	Details      map[string]string `json:"details,omitempty"`
	ErrorMessage string            `json:"error,omitempty"`
}

func (r *HealthCheckResult) fail(component, state string, err error, log *zap.Logger) {
	r.Status = "unhealthy"
	r.Details[component+"_error"] = err.Error()
	msg := fmt.Sprintf("%s %s: %v", component, state, err)
	if r.ErrorMessage == "" {
		r.ErrorMessage = msg
	} else {
		r.ErrorMessage += "; " + msg
	}
	log.Warn("health check failed", zap.String("component", component), zap.Error(err))
}

// HealthCheck checks the database, the Authorizer service (authorizer mode
// only) and Redis when configured. rdb may be nil.
func HealthCheck(ctx context.Context, cfg *config.Config, db *gorm.DB, rdb *redis.Client, log *zap.Logger) HealthCheckResult {
	if log == nil {
		log = zap.NewNop()
	}
	result := HealthCheckResult{
		Status:  "healthy",
		Details: make(map[string]string),
	}

	sqlDB, err := db.DB()
	if err != nil {
		result.Database = StateError
		result.fail("database", StateError, err, log)
	} else if err := sqlDB.PingContext(ctx); err != nil {
		result.Database = StateUnreachable
		result.fail("database", StateUnreachable, err, log)
	} else {
		result.Database = StateOK
		result.Details["database_type"] = cfg.DBType
		result.Details["database_name"] = cfg.DBDatabase
	}

	if cfg.AuthMode == config.AuthModeAuthorizer {
		if err := utils.PingAuthorizer(cfg.AuthzURL); err != nil {
			result.Authorizer = StateUnreachable
			result.fail("authorizer", StateUnreachable, err, log)
		} else {
			result.Authorizer = StateOK
			result.Details["authorizer_url"] = cfg.AuthzURL
		}
	} else {
		result.Authorizer = StateDisabled
	}

	if rdb == nil {
		result.Redis = StateDisabled
	} else if err := rdb.Ping(ctx).Err(); err != nil {
		result.Redis = StateUnreachable
		result.fail("redis", StateUnreachable, err, log)
	} else {
		result.Redis = StateOK
	}

	if result.Status == "healthy" {
		log.Debug("health check passed")
	}
	return result
}
