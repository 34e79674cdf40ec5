package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/pondwatch/pondwatch-go/internal/datastore"
)

// AlertDTO is the JSON shape of one alert.
type AlertDTO struct {
	ID              string    `json:"id"`
	AssessmentID    string    `json:"assessment_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	Type            string    `json:"type"`
	Severity        string    `json:"severity"`
	Title           string    `json:"title"`
	Message         string    `json:"message"`
	Recommendations []string  `json:"recommendations,omitempty"`
	Read            bool      `json:"read"`
	Dismissed       bool      `json:"dismissed"`
}

func toAlertDTO(a *datastore.Alert) AlertDTO {
	return AlertDTO{
		ID:              a.PublicID,
		AssessmentID:    a.AssessmentID,
		CreatedAt:       a.CreatedAt,
		Type:            a.Type,
		Severity:        a.Severity,
		Title:           a.Title,
		Message:         a.Message,
		Recommendations: a.Recommendations,
		Read:            a.Read,
		Dismissed:       a.Dismissed,
	}
}

// ListAlerts returns active alerts, optionally only unread ones.
func (c *Controller) ListAlerts(ctx echo.Context) error {
	var (
		alerts []datastore.Alert
		err    error
	)
	if ctx.QueryParam("unread") == "true" {
		alerts, err = c.DS.GetUnreadAlerts()
	} else {
		alerts, err = c.DS.GetActiveAlerts()
	}
	if err != nil {
		return c.HandleError(ctx, err, "listing alerts failed", http.StatusInternalServerError)
	}

	dtos := make([]AlertDTO, 0, len(alerts))
	for i := range alerts {
		dtos = append(dtos, toAlertDTO(&alerts[i]))
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"alerts": dtos,
		"count":  len(dtos),
	})
}

// MarkAlertRead flags one alert as read.
func (c *Controller) MarkAlertRead(ctx echo.Context) error {
	if err := c.DS.MarkAlertRead(ctx.Param("id")); err != nil {
		return c.HandleError(ctx, err, "alert not found", http.StatusNotFound)
	}
	return ctx.JSON(http.StatusOK, map[string]string{"status": "read"})
}

// DismissAlert removes one alert from the active set. Dismissed alerts no
// longer suppress duplicates of the same condition.
func (c *Controller) DismissAlert(ctx echo.Context) error {
	if err := c.DS.DismissAlert(ctx.Param("id")); err != nil {
		return c.HandleError(ctx, err, "alert not found", http.StatusNotFound)
	}
	return ctx.JSON(http.StatusOK, map[string]string{"status": "dismissed"})
}
