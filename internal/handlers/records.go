package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/vaxtrack/internal/dashboard"
	"github.com/localnerve/vaxtrack/internal/export"
	"github.com/localnerve/vaxtrack/internal/middleware"
	"github.com/localnerve/vaxtrack/internal/store"
	"github.com/localnerve/vaxtrack/internal/types"
	"github.com/localnerve/vaxtrack/internal/utils"
)

// exportTimeout bounds the export query
const exportTimeout = 30 * time.Second

// RecordHandler handles record mutations, the owner directory and exports
type RecordHandler struct {
	Manager *dashboard.Manager
	Store   *store.Store
}

// OwnerResponse is one entry of the owner directory
type OwnerResponse struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name,omitempty"`
	Role     string `json:"role"`
}

// Create handles POST /api/records
// @Summary Add a vaccination record
// @Description Admin only. Creates the record and, when next_due is set, its reminder.
// @Tags Records
// @Accept json
// @Produce json
// @Param record body validation.Fields true "Record fields"
// @Success 201 {object} utils.SuccessResponseStruct
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 401 {object} utils.ErrorResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 503 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /records [post]
func (h *RecordHandler) Create(c *fiber.Ctx) error {
	d, err := dashboardFor(c, h.Manager)
	if err != nil {
		return utils.StoreErrorResponse(c, err)
	}
	fields, err := parseFields(c)
	if err != nil {
		return utils.StoreErrorResponse(c, err)
	}

	rec, err := d.AddRecord(c.UserContext(), fields)
	if err != nil {
		return utils.StoreErrorResponse(c, err)
	}
	return utils.MutationSuccessResponse(c, fiber.StatusCreated, rec.ID, "Vaccination record added")
}

// Get handles GET /api/records/:id
// @Summary Get a record as form fields
// @Description Admin only. Returns the edit form population; uncommon vaccine names come back as Other.
// @Tags Records
// @Produce json
// @Param id path string true "Record ID"
// @Success 200 {object} validation.Fields
// @Failure 401 {object} utils.ErrorResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /records/{id} [get]
func (h *RecordHandler) Get(c *fiber.Ctx) error {
	d, err := dashboardFor(c, h.Manager)
	if err != nil {
		return utils.StoreErrorResponse(c, err)
	}
	fields, err := d.EditRecord(c.UserContext(), c.Params("id"))
	if err != nil {
		return utils.StoreErrorResponse(c, err)
	}
	return utils.SuccessResponse(c, fields, fiber.StatusOK)
}

// Update handles PUT /api/records/:id
// @Summary Update a vaccination record
// @Description Admin only. Replaces every field and syncs the reminder with next_due.
// @Tags Records
// @Accept json
// @Produce json
// @Param id path string true "Record ID"
// @Param record body validation.Fields true "Record fields"
// @Success 200 {object} utils.SuccessResponseStruct
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 503 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /records/{id} [put]
func (h *RecordHandler) Update(c *fiber.Ctx) error {
	d, err := dashboardFor(c, h.Manager)
	if err != nil {
		return utils.StoreErrorResponse(c, err)
	}
	fields, err := parseFields(c)
	if err != nil {
		return utils.StoreErrorResponse(c, err)
	}

	id := c.Params("id")
	if err := d.UpdateRecord(c.UserContext(), id, fields); err != nil {
		return utils.StoreErrorResponse(c, err)
	}
	return utils.MutationSuccessResponse(c, fiber.StatusOK, id, "Vaccination record updated")
}

// Delete handles DELETE /api/records/:id?confirm=true
// @Summary Delete a vaccination record
// @Description Admin only. Nothing is deleted unless confirm=true.
// @Tags Records
// @Produce json
// @Param id path string true "Record ID"
// @Param confirm query bool true "Confirm the deletion"
// @Success 200 {object} utils.SuccessResponseStruct
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 503 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /records/{id} [delete]
func (h *RecordHandler) Delete(c *fiber.Ctx) error {
	d, err := dashboardFor(c, h.Manager)
	if err != nil {
		return utils.StoreErrorResponse(c, err)
	}

	id := c.Params("id")
	deleted, err := d.DeleteRecord(c.UserContext(), id, c.QueryBool("confirm"))
	if err != nil {
		return utils.StoreErrorResponse(c, err)
	}
	if !deleted {
		return utils.StoreErrorResponse(c, types.Validation("confirm", "Deletion must be confirmed with confirm=true"))
	}
	return utils.MutationSuccessResponse(c, fiber.StatusOK, id, "Vaccination record deleted")
}

// Export handles GET /api/records/export
// @Summary Export visible records
// @Description Spreadsheet of every record the caller can see
// @Tags Records
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Success 200 {file} binary
// @Failure 401 {object} utils.ErrorResponseStruct
// @Failure 503 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /records/export [get]
func (h *RecordHandler) Export(c *fiber.Ctx) error {
	d, err := dashboardFor(c, h.Manager)
	if err != nil {
		return utils.StoreErrorResponse(c, err)
	}
	sess, _ := middleware.CurrentSession(c)

	ctx, cancel := context.WithTimeout(c.UserContext(), exportTimeout)
	defer cancel()

	caller := store.Caller{ID: sess.Identity.ID, Admin: d.Role().IsAdmin()}
	records, err := h.Store.ListRecords(ctx, caller, "")
	if err != nil {
		return utils.StoreErrorResponse(c, err)
	}

	today := h.Store.Today()
	c.Set(fiber.HeaderContentType, export.ContentType)
	c.Attachment("vaccinations-" + today.Format("20060102") + ".xlsx")
	if err := export.WriteRecordsXLSX(c.Response().BodyWriter(), records, today); err != nil {
		return err
	}
	return nil
}

// Owners handles GET /api/owners
// @Summary List owners
// @Description Admin only. Every profile, for the owner picker.
// @Tags Records
// @Produce json
// @Success 200 {array} OwnerResponse
// @Failure 401 {object} utils.ErrorResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /owners [get]
func (h *RecordHandler) Owners(c *fiber.Ctx) error {
	d, err := dashboardFor(c, h.Manager)
	if err != nil {
		return utils.StoreErrorResponse(c, err)
	}
	profiles, err := d.Owners(c.UserContext())
	if err != nil {
		return utils.StoreErrorResponse(c, err)
	}

	owners := make([]OwnerResponse, 0, len(profiles))
	for _, p := range profiles {
		owners = append(owners, OwnerResponse{
			ID:       p.ID,
			Email:    p.Email,
			FullName: p.FullName,
			Role:     string(p.Role),
		})
	}
	return utils.SuccessResponse(c, owners, fiber.StatusOK)
}
