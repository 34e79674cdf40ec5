package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/pondwatch/pondwatch-go/internal/datastore"
)

// FieldDTO is the JSON shape of one monitored field.
type FieldDTO struct {
	ID          uint     `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
}

// ListFields returns all registered fields.
func (c *Controller) ListFields(ctx echo.Context) error {
	fields, err := c.DS.GetFields()
	if err != nil {
		return c.HandleError(ctx, err, "listing fields failed", http.StatusInternalServerError)
	}
	dtos := make([]FieldDTO, 0, len(fields))
	for i := range fields {
		f := &fields[i]
		dtos = append(dtos, FieldDTO{
			ID:          f.ID,
			Name:        f.Name,
			Description: f.Description,
			Latitude:    f.Latitude,
			Longitude:   f.Longitude,
		})
	}
	return ctx.JSON(http.StatusOK, map[string]any{"fields": dtos})
}

// CreateField registers a new field recordings can be tagged with.
func (c *Controller) CreateField(ctx echo.Context) error {
	var dto FieldDTO
	if err := ctx.Bind(&dto); err != nil {
		return c.HandleError(ctx, err, "invalid request body", http.StatusBadRequest)
	}
	dto.Name = strings.TrimSpace(dto.Name)
	if dto.Name == "" {
		return c.HandleError(ctx, nil, "field name must not be empty", http.StatusBadRequest)
	}
	if (dto.Latitude == nil) != (dto.Longitude == nil) {
		return c.HandleError(ctx, nil, "latitude and longitude must be set together",
			http.StatusBadRequest)
	}

	field := datastore.Field{
		Name:        dto.Name,
		Description: dto.Description,
		Latitude:    dto.Latitude,
		Longitude:   dto.Longitude,
	}
	if err := c.DS.SaveField(&field); err != nil {
		return c.HandleError(ctx, err, "saving field failed", http.StatusInternalServerError)
	}
	dto.ID = field.ID
	return ctx.JSON(http.StatusCreated, dto)
}

// DeleteField removes a field. Stored assessments keep their field name.
func (c *Controller) DeleteField(ctx echo.Context) error {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		return c.HandleError(ctx, err, "invalid field id", http.StatusBadRequest)
	}
	if err := c.DS.DeleteField(uint(id)); err != nil {
		return c.HandleError(ctx, err, "field not found", http.StatusNotFound)
	}
	return ctx.NoContent(http.StatusNoContent)
}
