package handlers

import (
	"errors"
	"html/template"
	"net/url"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/vaxtrack/internal/dashboard"
	"github.com/localnerve/vaxtrack/internal/middleware"
	"github.com/localnerve/vaxtrack/internal/types"
	"github.com/localnerve/vaxtrack/internal/utils"
	"github.com/localnerve/vaxtrack/internal/validation"
)

const dashboardPath = "/dashboard"

// DashboardHandler serves the dashboard page, its fragments and its JSON snapshot
type DashboardHandler struct {
	Manager *dashboard.Manager
	// New builds a detached dashboard used to render the signed-out error page
	New func() *dashboard.Dashboard
}

// Page handles GET /dashboard
// Query: q applies a search immediately, edit=<id> or add=true opens the form.
func (h *DashboardHandler) Page(c *fiber.Ctx) error {
	ctx := c.UserContext()

	sess, ok := middleware.CurrentSession(c)
	if !ok {
		d := h.New()
		err := d.Init(ctx)
		page, rerr := d.Page("")
		if rerr != nil {
			return rerr
		}
		return sendHTML(c, utils.StatusFor(err), page)
	}

	status := fiber.StatusOK
	d, err := h.Manager.Get(ctx, sess)
	if err != nil {
		status = utils.StatusFor(err)
	}

	if c.Context().QueryArgs().Has("q") {
		if _, err := d.Search(c.Query("q")); err != nil {
			return err
		}
	}

	// A refused form or confirmation leaves its reason in the notice.
	var form template.HTML
	if edit := c.Query("edit"); edit != "" || c.QueryBool("add") {
		form, _ = d.Form(ctx, edit)
	} else if id := c.Query("delete"); id != "" {
		form, _ = d.ConfirmDelete(ctx, id)
	}

	page, err := d.Page(form)
	if err != nil {
		return err
	}
	return sendHTML(c, status, page)
}

// CreateRecord handles POST /dashboard/records from the add form.
// Rejected input re-renders the page with the form and its error; every other
// outcome redirects to the dashboard, which shows the notice.
func (h *DashboardHandler) CreateRecord(c *fiber.Ctx) error {
	return h.submit(c, "", func(d *dashboard.Dashboard, fields validation.Fields) error {
		_, err := d.AddRecord(c.UserContext(), fields)
		return err
	})
}

// UpdateRecord handles POST /dashboard/records/:id from the edit form
func (h *DashboardHandler) UpdateRecord(c *fiber.Ctx) error {
	id := c.Params("id")
	return h.submit(c, id, func(d *dashboard.Dashboard, fields validation.Fields) error {
		return d.UpdateRecord(c.UserContext(), id, fields)
	})
}

func (h *DashboardHandler) submit(c *fiber.Ctx, id string, write func(*dashboard.Dashboard, validation.Fields) error) error {
	d, err := dashboardFor(c, h.Manager)
	if err != nil {
		return utils.StoreErrorResponse(c, err)
	}
	fields, err := parseFields(c)
	if err == nil {
		err = write(d, fields)
	}
	if !errors.Is(err, types.ErrValidation) {
		return c.Redirect(dashboardPath, fiber.StatusSeeOther)
	}

	form, ferr := d.FormWithError(c.UserContext(), id, fields, err)
	if ferr != nil {
		return c.Redirect(dashboardPath, fiber.StatusSeeOther)
	}
	page, perr := d.Page(form)
	if perr != nil {
		return perr
	}
	return sendHTML(c, fiber.StatusBadRequest, page)
}

// DeleteRecord handles POST /dashboard/records/:id/delete. Without
// confirm=true it redirects to the confirmation step instead of deleting.
func (h *DashboardHandler) DeleteRecord(c *fiber.Ctx) error {
	d, err := dashboardFor(c, h.Manager)
	if err != nil {
		return utils.StoreErrorResponse(c, err)
	}

	id := c.Params("id")
	deleted, err := d.DeleteRecord(c.UserContext(), id, c.FormValue("confirm") == "true")
	if err == nil && !deleted {
		return c.Redirect(dashboardPath+"?delete="+url.QueryEscape(id), fiber.StatusSeeOther)
	}
	return c.Redirect(dashboardPath, fiber.StatusSeeOther)
}

// Retry handles POST /dashboard/retry
func (h *DashboardHandler) Retry(c *fiber.Ctx) error {
	if sess, ok := middleware.CurrentSession(c); ok {
		d, _ := h.Manager.Get(c.UserContext(), sess)
		// Failures stay visible on the page as the error state or a notice.
		_ = d.Retry(c.UserContext())
	}
	return c.Redirect(dashboardPath, fiber.StatusSeeOther)
}

// RecordsFragment handles GET /dashboard/fragments/records?q=
// Superseded search requests answer 204.
func (h *DashboardHandler) RecordsFragment(c *fiber.Ctx) error {
	d, err := dashboardFor(c, h.Manager)
	if err != nil {
		return utils.StoreErrorResponse(c, err)
	}

	html, ok, err := d.SearchDebounced(c.UserContext(), c.Query("q"))
	if err != nil {
		return err
	}
	if !ok {
		return c.SendStatus(fiber.StatusNoContent)
	}
	return sendHTML(c, fiber.StatusOK, html)
}

// RemindersFragment handles GET /dashboard/fragments/reminders
func (h *DashboardHandler) RemindersFragment(c *fiber.Ctx) error {
	d, err := dashboardFor(c, h.Manager)
	if err != nil {
		return utils.StoreErrorResponse(c, err)
	}
	return sendHTML(c, fiber.StatusOK, d.Snapshot().Surfaces.Reminders)
}

// StatsFragment handles GET /dashboard/fragments/stats
func (h *DashboardHandler) StatsFragment(c *fiber.Ctx) error {
	d, err := dashboardFor(c, h.Manager)
	if err != nil {
		return utils.StoreErrorResponse(c, err)
	}
	return sendHTML(c, fiber.StatusOK, d.Snapshot().Surfaces.Stats)
}

// Snapshot handles GET /api/dashboard
// @Summary Get dashboard state
// @Description Current state, role, permissions, stats, notice and the search-filtered rows
// @Tags Dashboard
// @Produce json
// @Param refresh query bool false "Reload from the store first"
// @Success 200 {object} dashboard.Snapshot
// @Failure 401 {object} utils.ErrorResponseStruct
// @Failure 503 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /dashboard [get]
func (h *DashboardHandler) Snapshot(c *fiber.Ctx) error {
	d, err := dashboardFor(c, h.Manager)
	if err != nil {
		return utils.StoreErrorResponse(c, err)
	}
	if c.QueryBool("refresh") {
		if err := d.Refresh(c.UserContext()); err != nil {
			return utils.StoreErrorResponse(c, err)
		}
	}
	return utils.SuccessResponse(c, d.Snapshot(), fiber.StatusOK)
}
