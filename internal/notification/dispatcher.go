package notification

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pondwatch/pondwatch-go/internal/alert"
	"github.com/pondwatch/pondwatch-go/internal/conf"
	"github.com/pondwatch/pondwatch-go/internal/datastore"
	"github.com/pondwatch/pondwatch-go/internal/logging"
)

// Dispatcher routes payloads to the channels a user has enabled. One
// dispatch attempts each channel at most once; channel failures are
// recorded per delivery and never abort the rest.
type Dispatcher struct {
	store     datastore.Interface
	providers []Provider
	log       *slog.Logger
	now       func() time.Time
}

// DispatcherOption customizes a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithClock injects the time source, used by quiet-hours tests.
func WithClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) { d.now = now }
}

// WithProviders replaces the provider set.
func WithProviders(providers ...Provider) DispatcherOption {
	return func(d *Dispatcher) { d.providers = providers }
}

// NewDispatcher builds a dispatcher with the providers the settings enable.
func NewDispatcher(store datastore.Interface, settings *conf.Settings, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		store: store,
		log:   logging.ForService("notification"),
		now:   time.Now,
	}
	for _, p := range []Provider{
		NewShoutrrrProvider(&settings.Notification.Push),
		NewWebhookProvider(&settings.Notification.Webhook),
		NewMQTTProvider(&settings.Notification.MQTT),
	} {
		if p.Enabled() {
			d.providers = append(d.providers, p)
		}
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// ValidateProviders checks every enabled provider's configuration.
func (d *Dispatcher) ValidateProviders() error {
	for _, p := range d.providers {
		if err := p.ValidateConfig(); err != nil {
			return err
		}
	}
	return nil
}

// Providers returns the names of the active providers.
func (d *Dispatcher) Providers() []string {
	names := make([]string, 0, len(d.providers))
	for _, p := range d.providers {
		names = append(names, p.Name())
	}
	return names
}

// DispatchResult summarizes one dispatch call.
type DispatchResult struct {
	Deliveries   []Delivery `json:"deliveries"`
	InQuietHours bool       `json:"in_quiet_hours"`
}

// Dispatch delivers the payload to every channel the user's preferences
// allow. During quiet hours a non-critical payload is suppressed entirely,
// no channel attempted and nothing written to the in-app log; critical
// payloads bypass the window. A payload whose alert type is disabled in
// the preferences is likewise dropped without touching any channel.
func (d *Dispatcher) Dispatch(ctx context.Context, userID string, p *Payload) *DispatchResult {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = d.now()
	}
	if severityRank(p.Severity) < 0 {
		p.Severity = SeverityInfo
	}

	pref, err := d.store.GetPreference(userID)
	if err != nil {
		d.log.Error("loading preferences failed, using defaults",
			"user_id", userID, "error", err)
		pref = datastore.DefaultPreference(userID)
	}

	if suppressedByQuietHours(&pref, p, d.now()) {
		d.log.Debug("quiet hours, payload suppressed",
			"payload_id", p.ID, "severity", p.Severity, "user_id", userID)
		return &DispatchResult{InQuietHours: true}
	}

	if !alertTypeEnabled(&pref, p.Type) {
		d.log.Debug("alert type disabled in preferences, payload suppressed",
			"payload_id", p.ID, "type", p.Type, "user_id", userID)
		return &DispatchResult{}
	}

	res := &DispatchResult{}

	// In-app channel first, it doubles as the delivery record.
	res.Deliveries = append(res.Deliveries, d.deliverInApp(userID, &pref, p))

	if severityRank(p.Severity) < severityRank(pref.MinSeverity) {
		for _, provider := range d.providers {
			res.Deliveries = append(res.Deliveries, Delivery{
				Channel:  provider.Channel(),
				Provider: provider.Name(),
				Skipped:  "below severity threshold",
			})
		}
		return res
	}

	for _, provider := range d.providers {
		delivery := Delivery{Channel: provider.Channel(), Provider: provider.Name()}
		if !channelEnabled(&pref, provider.Channel()) {
			delivery.Skipped = "channel disabled"
		} else {
			delivery.Err = provider.Send(ctx, p)
		}

		if delivery.Err != nil {
			d.log.Error("notification delivery failed",
				"channel", delivery.Channel,
				"provider", delivery.Provider,
				"payload_id", p.ID,
				"error", delivery.Err)
		} else if delivery.Skipped == "" {
			d.log.Debug("notification delivered",
				"channel", delivery.Channel, "payload_id", p.ID)
		}
		res.Deliveries = append(res.Deliveries, delivery)
	}
	return res
}

func (d *Dispatcher) deliverInApp(userID string, pref *datastore.NotificationPreference, p *Payload) Delivery {
	delivery := Delivery{Channel: ChannelInApp}
	if !pref.InAppEnabled {
		delivery.Skipped = "channel disabled"
		return delivery
	}
	delivery.Err = d.store.SaveInAppNotification(&datastore.InAppNotification{
		UserID:    userID,
		Title:     p.Title,
		Message:   p.Message,
		Severity:  p.Severity,
		CreatedAt: p.CreatedAt,
	})
	return delivery
}

func alertTypeEnabled(pref *datastore.NotificationPreference, payloadType string) bool {
	switch payloadType {
	case alert.TypeCriticalWaterQuality:
		return pref.CriticalWaterQualityEnabled
	case alert.TypeLowBiodiversity:
		return pref.LowBiodiversityEnabled
	default:
		return true
	}
}

func channelEnabled(pref *datastore.NotificationPreference, channel string) bool {
	switch channel {
	case ChannelPush:
		return pref.PushEnabled
	case ChannelWebhook:
		return pref.WebhookEnabled
	case ChannelMQTT:
		return pref.MQTTEnabled
	default:
		return false
	}
}

// FromAlert converts a stored alert into a deliverable payload.
func FromAlert(a *datastore.Alert) *Payload {
	return &Payload{
		ID:              a.PublicID,
		Type:            a.Type,
		Title:           a.Title,
		Message:         a.Message,
		Severity:        a.Severity,
		Recommendations: a.Recommendations,
		CreatedAt:       a.CreatedAt,
	}
}
