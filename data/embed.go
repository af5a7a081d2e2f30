package data

import (
	"embed"
)

// PostgresMigrationsDir is the goose directory inside Migrations
const PostgresMigrationsDir = "migrations/postgres"

// Migrations holds the row-level security migrations applied with goose
//
//go:embed migrations/postgres/*.sql
var Migrations embed.FS
