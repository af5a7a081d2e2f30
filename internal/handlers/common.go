// common.go
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

package handlers

import (
	"html/template"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/vaxtrack/internal/dashboard"
	"github.com/localnerve/vaxtrack/internal/middleware"
	"github.com/localnerve/vaxtrack/internal/types"
	"github.com/localnerve/vaxtrack/internal/validation"
)

// dashboardFor returns the dashboard of the request's session, initializing it on first use
func dashboardFor(c *fiber.Ctx, m *dashboard.Manager) (*dashboard.Dashboard, error) {
	sess, ok := middleware.CurrentSession(c)
	if !ok {
		return nil, types.ErrUnauthenticated
	}
	return m.Get(c.UserContext(), sess)
}

// parseFields reads a record form from a JSON or form-encoded body
func parseFields(c *fiber.Ctx) (validation.Fields, error) {
	var fields validation.Fields
	if err := c.BodyParser(&fields); err != nil {
		return fields, types.Validation("body", "Malformed request body")
	}
	return fields, nil
}

// sendHTML writes a rendered fragment or page
func sendHTML(c *fiber.Ctx, status int, html template.HTML) error {
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.Status(status).SendString(string(html))
}
