package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/pondwatch/pondwatch-go/internal/datastore"
	"github.com/pondwatch/pondwatch-go/internal/notification"
)

// defaultUserID serves single-user deployments that never send user_id.
const defaultUserID = "default"

func userID(ctx echo.Context) string {
	if id := ctx.QueryParam("user_id"); id != "" {
		return id
	}
	return defaultUserID
}

// ListNotifications returns the user's in-app notification log, newest first.
func (c *Controller) ListNotifications(ctx echo.Context) error {
	limit := queryInt(ctx, "limit", 20, 50)
	entries, err := c.DS.GetInAppNotifications(userID(ctx), limit)
	if err != nil {
		return c.HandleError(ctx, err, "listing notifications failed", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"notifications": entries,
		"count":         len(entries),
	})
}

// PreferenceDTO is the JSON shape of notification preferences.
type PreferenceDTO struct {
	UserID string `json:"user_id"`

	InAppEnabled   bool `json:"in_app_enabled"`
	PushEnabled    bool `json:"push_enabled"`
	WebhookEnabled bool `json:"webhook_enabled"`
	MQTTEnabled    bool `json:"mqtt_enabled"`

	QuietHoursEnabled bool   `json:"quiet_hours_enabled"`
	QuietHoursStart   string `json:"quiet_hours_start"`
	QuietHoursEnd     string `json:"quiet_hours_end"`

	MinSeverity string `json:"min_severity"`

	CriticalWaterQualityEnabled bool `json:"critical_water_quality_enabled"`
	LowBiodiversityEnabled      bool `json:"low_biodiversity_enabled"`
}

func toPreferenceDTO(p *datastore.NotificationPreference) PreferenceDTO {
	return PreferenceDTO{
		UserID:            p.UserID,
		InAppEnabled:      p.InAppEnabled,
		PushEnabled:       p.PushEnabled,
		WebhookEnabled:    p.WebhookEnabled,
		MQTTEnabled:       p.MQTTEnabled,
		QuietHoursEnabled: p.QuietHoursEnabled,
		QuietHoursStart:   p.QuietHoursStart,
		QuietHoursEnd:     p.QuietHoursEnd,
		MinSeverity:       p.MinSeverity,

		CriticalWaterQualityEnabled: p.CriticalWaterQualityEnabled,
		LowBiodiversityEnabled:      p.LowBiodiversityEnabled,
	}
}

// GetPreferences returns the user's delivery preferences, defaults when
// none are stored yet.
func (c *Controller) GetPreferences(ctx echo.Context) error {
	pref, err := c.DS.GetPreference(userID(ctx))
	if err != nil {
		return c.HandleError(ctx, err, "loading preferences failed", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, toPreferenceDTO(&pref))
}

// UpdatePreferences upserts the user's delivery preferences.
func (c *Controller) UpdatePreferences(ctx echo.Context) error {
	var dto PreferenceDTO
	if err := ctx.Bind(&dto); err != nil {
		return c.HandleError(ctx, err, "invalid request body", http.StatusBadRequest)
	}
	if dto.UserID == "" {
		dto.UserID = userID(ctx)
	}
	if err := validatePreference(&dto); err != nil {
		return c.HandleError(ctx, err, "invalid preferences", http.StatusBadRequest)
	}

	pref := datastore.NotificationPreference{
		UserID:            dto.UserID,
		InAppEnabled:      dto.InAppEnabled,
		PushEnabled:       dto.PushEnabled,
		WebhookEnabled:    dto.WebhookEnabled,
		MQTTEnabled:       dto.MQTTEnabled,
		QuietHoursEnabled: dto.QuietHoursEnabled,
		QuietHoursStart:   dto.QuietHoursStart,
		QuietHoursEnd:     dto.QuietHoursEnd,
		MinSeverity:       dto.MinSeverity,

		CriticalWaterQualityEnabled: dto.CriticalWaterQualityEnabled,
		LowBiodiversityEnabled:      dto.LowBiodiversityEnabled,
	}
	if err := c.DS.SavePreference(&pref); err != nil {
		return c.HandleError(ctx, err, "saving preferences failed", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, toPreferenceDTO(&pref))
}

func validatePreference(dto *PreferenceDTO) error {
	if dto.MinSeverity == "" {
		dto.MinSeverity = notification.SeverityInfo
	}
	if !notification.ValidSeverity(dto.MinSeverity) {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown severity "+dto.MinSeverity)
	}
	if dto.QuietHoursEnabled {
		if !notification.ValidClock(dto.QuietHoursStart) || !notification.ValidClock(dto.QuietHoursEnd) {
			return echo.NewHTTPError(http.StatusBadRequest, "quiet hours must be HH:MM")
		}
	}
	return nil
}

// TestNotification sends a test payload through every configured channel so
// the user can verify delivery end to end.
func (c *Controller) TestNotification(ctx echo.Context) error {
	uid := userID(ctx)
	payload := &notification.Payload{
		Type:      "test",
		Title:     "PondWatch test notification",
		Message:   "If you can read this, notifications are working.",
		Severity:  notification.SeverityInfo,
		CreatedAt: time.Now(),
	}
	return ctx.JSON(http.StatusOK, c.dispatcher.Dispatch(ctx.Request().Context(), uid, payload))
}
