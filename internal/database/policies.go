package database

import (
	"fmt"

	"github.com/localnerve/vaxtrack/data"
	"github.com/pressly/goose/v3"
	"gorm.io/gorm"
)

// ApplyPolicies installs the row-level security policies on postgres and
// grants the user pool role access to the protected tables.
// Other dialects rely on the store's own ownership checks.
func ApplyPolicies(db *gorm.DB, userRole string) error {
	if !IsPostgres(db) {
		return nil
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying SQL DB: %w", err)
	}

	goose.SetBaseFS(data.Migrations)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.Up(sqlDB, data.PostgresMigrationsDir); err != nil {
		return fmt.Errorf("failed to apply row-level security migrations: %w", err)
	}

	if userRole == "" {
		return nil
	}

	role := quoteIdent(userRole)
	grants := []string{
		fmt.Sprintf("GRANT SELECT, INSERT, UPDATE, DELETE ON vaccination_records, reminders TO %s", role),
		fmt.Sprintf("GRANT SELECT ON profiles TO %s", role),
		fmt.Sprintf("GRANT EXECUTE ON FUNCTION vaxtrack_is_admin() TO %s", role),
	}
	for _, stmt := range grants {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to grant user pool access: %w", err)
		}
	}

	return nil
}

// quoteIdent quotes a postgres identifier
func quoteIdent(name string) string {
	out := make([]byte, 0, len(name)+2)
	out = append(out, '"')
	for i := 0; i < len(name); i++ {
		if name[i] == '"' {
			out = append(out, '"')
		}
		out = append(out, name[i])
	}
	return string(append(out, '"'))
}
