package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/vaxtrack/internal/middleware"
	"github.com/localnerve/vaxtrack/internal/session"
)

// Routes bundles the handlers mounted by Register
type Routes struct {
	Bridge    *session.Bridge
	Dashboard *DashboardHandler
	Records   *RecordHandler
	Auth      *AuthHandler
	Health    *HealthHandler
}

// Register mounts every application route on app
func Register(app fiber.Router, r Routes) {
	optional := middleware.OptionalSession(r.Bridge)
	required := middleware.RequireSession(r.Bridge)

	if r.Health != nil {
		app.Get("/health", r.Health.Check)
	}

	// Dashboard pages and fragments
	app.Get("/dashboard", optional, r.Dashboard.Page)
	app.Post("/dashboard/retry", optional, r.Dashboard.Retry)
	app.Post("/dashboard/logout", optional, r.Auth.SignOutPage)

	// Browser form posts; each redirects back to the page
	app.Post("/dashboard/records", required, r.Dashboard.CreateRecord)
	app.Post("/dashboard/records/:id", required, r.Dashboard.UpdateRecord)
	app.Post("/dashboard/records/:id/delete", required, r.Dashboard.DeleteRecord)

	fragments := app.Group("/dashboard/fragments", required)
	fragments.Get("/records", r.Dashboard.RecordsFragment)
	fragments.Get("/reminders", r.Dashboard.RemindersFragment)
	fragments.Get("/stats", r.Dashboard.StatsFragment)

	// API routes under /api
	api := app.Group("/api", required)
	api.Get("/dashboard", r.Dashboard.Snapshot)
	api.Post("/auth/logout", r.Auth.Logout)
	api.Get("/owners", r.Records.Owners)

	api.Post("/records", r.Records.Create)
	api.Get("/records/export", r.Records.Export)
	api.Get("/records/:id", r.Records.Get)
	api.Put("/records/:id", r.Records.Update)
	api.Delete("/records/:id", r.Records.Delete)
}
