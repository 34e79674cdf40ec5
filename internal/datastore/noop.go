package datastore

// noopStore discards writes and returns empty results. Used by the one-off
// analyze command when persistence is disabled.
type noopStore struct{}

// NewNoop returns a store that persists nothing.
func NewNoop() Interface {
	return noopStore{}
}

func (noopStore) Open() error  { return nil }
func (noopStore) Close() error { return nil }
func (noopStore) Ping() error  { return nil }

func (noopStore) SaveAssessment(a *Assessment) error { return nil }
func (noopStore) GetAssessment(publicID string) (Assessment, error) {
	return Assessment{}, notFound("assessment", publicID)
}
func (noopStore) GetRecentAssessments(limit int) ([]Assessment, error) { return nil, nil }
func (noopStore) LatestAssessment() (*Assessment, error)               { return nil, nil }

func (noopStore) IncrementDailyCount(date string) error          { return nil }
func (noopStore) GetDailyCount(date string) (int, error)         { return 0, nil }
func (noopStore) GetDailyCounts(limit int) ([]DailyCount, error) { return nil, nil }

func (noopStore) SaveAlert(alert *Alert) error      { return nil }
func (noopStore) GetActiveAlerts() ([]Alert, error) { return nil, nil }
func (noopStore) GetUnreadAlerts() ([]Alert, error) { return nil, nil }
func (noopStore) MarkAlertRead(publicID string) error {
	return notFound("alert", publicID)
}
func (noopStore) DismissAlert(publicID string) error {
	return notFound("alert", publicID)
}

func (noopStore) SaveInAppNotification(n *InAppNotification) error { return nil }
func (noopStore) GetInAppNotifications(userID string, limit int) ([]InAppNotification, error) {
	return nil, nil
}

func (noopStore) GetPreference(userID string) (NotificationPreference, error) {
	return DefaultPreference(userID), nil
}
func (noopStore) SavePreference(p *NotificationPreference) error { return nil }

func (noopStore) GetFields() ([]Field, error) { return nil, nil }
func (noopStore) SaveField(f *Field) error    { return nil }
func (noopStore) DeleteField(id uint) error   { return notFound("field", "") }
