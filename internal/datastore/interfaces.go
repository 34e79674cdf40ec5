// interfaces.go defines the interface for the database operations.
package datastore

import (
	"time"

	"gorm.io/gorm"

	"github.com/pondwatch/pondwatch-go/internal/conf"
	"github.com/pondwatch/pondwatch-go/internal/errors"
)

// Interface abstracts the underlying database implementation.
type Interface interface {
	Open() error
	Close() error
	Ping() error

	// Assessments. Saves are capped appends: the newest rows up to the
	// history limit survive, older rows are pruned in the same
	// transaction.
	SaveAssessment(a *Assessment) error
	GetAssessment(publicID string) (Assessment, error)
	GetRecentAssessments(limit int) ([]Assessment, error)
	LatestAssessment() (*Assessment, error)

	// Daily counters.
	IncrementDailyCount(date string) error
	GetDailyCount(date string) (int, error)
	GetDailyCounts(limit int) ([]DailyCount, error)

	// Alerts. Bounded the same way, cap applies to non-dismissed rows.
	SaveAlert(alert *Alert) error
	GetActiveAlerts() ([]Alert, error)
	GetUnreadAlerts() ([]Alert, error)
	MarkAlertRead(publicID string) error
	DismissAlert(publicID string) error

	// In-app notification log, bounded per user.
	SaveInAppNotification(n *InAppNotification) error
	GetInAppNotifications(userID string, limit int) ([]InAppNotification, error)

	// Per-user delivery preferences.
	GetPreference(userID string) (NotificationPreference, error)
	SavePreference(p *NotificationPreference) error

	// Field tags.
	GetFields() ([]Field, error)
	SaveField(f *Field) error
	DeleteField(id uint) error
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB *gorm.DB

	historyLimit int
	alertLimit   int
	inAppLimit   int
}

// New creates a store for whichever backend the settings enable.
func New(settings *conf.Settings) (Interface, error) {
	switch {
	case settings.Datastore.SQLite.Enabled:
		return &SQLiteStore{
			DataStore: newDataStore(settings),
			Settings:  settings,
		}, nil
	case settings.Datastore.MySQL.Enabled:
		return &MySQLStore{
			DataStore: newDataStore(settings),
			Settings:  settings,
		}, nil
	default:
		return nil, errors.Newf("no datastore backend enabled").
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}
}

func newDataStore(settings *conf.Settings) DataStore {
	return DataStore{
		historyLimit: settings.Fusion.HistoryLimit,
		alertLimit:   settings.Alerts.MaxActive,
		inAppLimit:   settings.Notification.MaxInApp,
	}
}

func (ds *DataStore) checkOpen() error {
	if ds.DB == nil {
		return errors.Newf("database connection is not initialized").
			Component("datastore").
			Category(errors.CategoryState).
			Build()
	}
	return nil
}

// Ping verifies the underlying connection is alive.
func (ds *DataStore) Ping() error {
	if err := ds.checkOpen(); err != nil {
		return err
	}
	sqlDB, err := ds.DB.DB()
	if err != nil {
		return dbError(err, "ping")
	}
	if err := sqlDB.Ping(); err != nil {
		return dbError(err, "ping")
	}
	return nil
}

// SaveAssessment stores an assessment and its species rows, then prunes
// history beyond the limit, all in one transaction.
func (ds *DataStore) SaveAssessment(a *Assessment) error {
	if err := ds.checkOpen(); err != nil {
		return err
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}

	err := ds.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(a).Error; err != nil {
			return err
		}
		return prune(tx, &Assessment{}, ds.historyLimit, "", func(tx *gorm.DB, ids []uint) error {
			return tx.Where("assessment_id IN ?", ids).Delete(&SpeciesDetection{}).Error
		})
	})
	if err != nil {
		return dbError(err, "save assessment")
	}
	return nil
}

// GetAssessment retrieves one assessment by its public ID.
func (ds *DataStore) GetAssessment(publicID string) (Assessment, error) {
	if err := ds.checkOpen(); err != nil {
		return Assessment{}, err
	}
	var a Assessment
	err := ds.DB.Preload("Species").Where("public_id = ?", publicID).First(&a).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Assessment{}, notFound("assessment", publicID)
		}
		return Assessment{}, dbError(err, "get assessment")
	}
	return a, nil
}

// GetRecentAssessments returns the newest assessments, newest first.
func (ds *DataStore) GetRecentAssessments(limit int) ([]Assessment, error) {
	if err := ds.checkOpen(); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > ds.historyLimit {
		limit = ds.historyLimit
	}
	var out []Assessment
	err := ds.DB.Preload("Species").Order("id DESC").Limit(limit).Find(&out).Error
	if err != nil {
		return nil, dbError(err, "list assessments")
	}
	return out, nil
}

// LatestAssessment returns the newest assessment, or nil when none exist.
func (ds *DataStore) LatestAssessment() (*Assessment, error) {
	if err := ds.checkOpen(); err != nil {
		return nil, err
	}
	var a Assessment
	err := ds.DB.Preload("Species").Order("id DESC").First(&a).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, dbError(err, "latest assessment")
	}
	return &a, nil
}

// IncrementDailyCount bumps the counter row for date, creating it on first
// use.
func (ds *DataStore) IncrementDailyCount(date string) error {
	if err := ds.checkOpen(); err != nil {
		return err
	}
	err := ds.DB.Transaction(func(tx *gorm.DB) error {
		var dc DailyCount
		err := tx.Where("date = ?", date).First(&dc).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return tx.Create(&DailyCount{Date: date, Count: 1}).Error
		case err != nil:
			return err
		default:
			return tx.Model(&dc).Update("count", dc.Count+1).Error
		}
	})
	if err != nil {
		return dbError(err, "increment daily count")
	}
	return nil
}

// GetDailyCount returns the counter for date, zero when absent.
func (ds *DataStore) GetDailyCount(date string) (int, error) {
	if err := ds.checkOpen(); err != nil {
		return 0, err
	}
	var dc DailyCount
	err := ds.DB.Where("date = ?", date).First(&dc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, dbError(err, "get daily count")
	}
	return dc.Count, nil
}

// GetDailyCounts returns the most recent daily counters, newest first.
func (ds *DataStore) GetDailyCounts(limit int) ([]DailyCount, error) {
	if err := ds.checkOpen(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 30
	}
	var out []DailyCount
	if err := ds.DB.Order("date DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, dbError(err, "list daily counts")
	}
	return out, nil
}

// SaveAlert stores an alert and prunes non-dismissed alerts beyond the cap
// in the same transaction.
func (ds *DataStore) SaveAlert(alert *Alert) error {
	if err := ds.checkOpen(); err != nil {
		return err
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now()
	}

	err := ds.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(alert).Error; err != nil {
			return err
		}
		return prune(tx, &Alert{}, ds.alertLimit, "dismissed = false", nil)
	})
	if err != nil {
		return dbError(err, "save alert")
	}
	return nil
}

// GetActiveAlerts returns non-dismissed alerts, newest first.
func (ds *DataStore) GetActiveAlerts() ([]Alert, error) {
	if err := ds.checkOpen(); err != nil {
		return nil, err
	}
	var out []Alert
	err := ds.DB.Where("dismissed = ?", false).Order("id DESC").Limit(ds.alertLimit).Find(&out).Error
	if err != nil {
		return nil, dbError(err, "list alerts")
	}
	return out, nil
}

// GetUnreadAlerts returns non-dismissed, unread alerts, newest first.
func (ds *DataStore) GetUnreadAlerts() ([]Alert, error) {
	if err := ds.checkOpen(); err != nil {
		return nil, err
	}
	var out []Alert
	// Backticks keep `read` valid on MySQL, SQLite accepts them too.
	err := ds.DB.Where("dismissed = ? AND `read` = ?", false, false).
		Order("id DESC").Limit(ds.alertLimit).Find(&out).Error
	if err != nil {
		return nil, dbError(err, "list unread alerts")
	}
	return out, nil
}

// MarkAlertRead flags one alert as read.
func (ds *DataStore) MarkAlertRead(publicID string) error {
	return ds.setAlertFlag(publicID, "read")
}

// DismissAlert flags one alert as dismissed.
func (ds *DataStore) DismissAlert(publicID string) error {
	return ds.setAlertFlag(publicID, "dismissed")
}

func (ds *DataStore) setAlertFlag(publicID, column string) error {
	if err := ds.checkOpen(); err != nil {
		return err
	}
	res := ds.DB.Model(&Alert{}).Where("public_id = ?", publicID).Update(column, true)
	if res.Error != nil {
		return dbError(res.Error, "update alert")
	}
	if res.RowsAffected == 0 {
		return notFound("alert", publicID)
	}
	return nil
}

// SaveInAppNotification appends to the user's log and prunes it beyond the
// per-user cap.
func (ds *DataStore) SaveInAppNotification(n *InAppNotification) error {
	if err := ds.checkOpen(); err != nil {
		return err
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}

	err := ds.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(n).Error; err != nil {
			return err
		}

		var ids []uint
		err := tx.Model(&InAppNotification{}).
			Where("user_id = ?", n.UserID).
			Order("id DESC").
			Offset(ds.inAppLimit).Limit(pruneBatchLimit).
			Pluck("id", &ids).Error
		if err != nil || len(ids) == 0 {
			return err
		}
		return tx.Where("id IN ?", ids).Delete(&InAppNotification{}).Error
	})
	if err != nil {
		return dbError(err, "save notification")
	}
	return nil
}

// GetInAppNotifications returns the user's log, newest first.
func (ds *DataStore) GetInAppNotifications(userID string, limit int) ([]InAppNotification, error) {
	if err := ds.checkOpen(); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > ds.inAppLimit {
		limit = ds.inAppLimit
	}
	var out []InAppNotification
	err := ds.DB.Where("user_id = ?", userID).Order("id DESC").Limit(limit).Find(&out).Error
	if err != nil {
		return nil, dbError(err, "list notifications")
	}
	return out, nil
}

// GetPreference returns the user's preferences, or defaults when the user
// has never saved any.
func (ds *DataStore) GetPreference(userID string) (NotificationPreference, error) {
	if err := ds.checkOpen(); err != nil {
		return NotificationPreference{}, err
	}
	var p NotificationPreference
	err := ds.DB.Where("user_id = ?", userID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return DefaultPreference(userID), nil
	}
	if err != nil {
		return NotificationPreference{}, dbError(err, "get preference")
	}
	return p, nil
}

// SavePreference upserts the user's preferences.
func (ds *DataStore) SavePreference(p *NotificationPreference) error {
	if err := ds.checkOpen(); err != nil {
		return err
	}
	p.UpdatedAt = time.Now()

	err := ds.DB.Transaction(func(tx *gorm.DB) error {
		var existing NotificationPreference
		err := tx.Where("user_id = ?", p.UserID).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return tx.Create(p).Error
		case err != nil:
			return err
		default:
			p.ID = existing.ID
			return tx.Save(p).Error
		}
	})
	if err != nil {
		return dbError(err, "save preference")
	}
	return nil
}

// DefaultPreference is what a user gets before saving anything: in-app on,
// external channels off, every alert type on, no quiet hours.
func DefaultPreference(userID string) NotificationPreference {
	return NotificationPreference{
		UserID:                      userID,
		InAppEnabled:                true,
		QuietHoursStart:             "22:00",
		QuietHoursEnd:               "07:00",
		MinSeverity:                 "info",
		CriticalWaterQualityEnabled: true,
		LowBiodiversityEnabled:      true,
	}
}

// GetFields lists all field tags.
func (ds *DataStore) GetFields() ([]Field, error) {
	if err := ds.checkOpen(); err != nil {
		return nil, err
	}
	var out []Field
	if err := ds.DB.Order("name ASC").Find(&out).Error; err != nil {
		return nil, dbError(err, "list fields")
	}
	return out, nil
}

// SaveField creates or updates a field tag.
func (ds *DataStore) SaveField(f *Field) error {
	if err := ds.checkOpen(); err != nil {
		return err
	}
	if err := ds.DB.Save(f).Error; err != nil {
		return dbError(err, "save field")
	}
	return nil
}

// DeleteField removes a field tag.
func (ds *DataStore) DeleteField(id uint) error {
	if err := ds.checkOpen(); err != nil {
		return err
	}
	res := ds.DB.Delete(&Field{}, id)
	if res.Error != nil {
		return dbError(res.Error, "delete field")
	}
	if res.RowsAffected == 0 {
		return notFound("field", "")
	}
	return nil
}

// pruneBatchLimit bounds how many rows one prune pass deletes. SQLite
// requires LIMIT alongside OFFSET, and caps are small enough that a single
// batch always clears the overflow.
const pruneBatchLimit = 1000

// prune deletes rows beyond limit, newest kept, optionally filtered and
// with a pre-delete hook for dependent rows.
func prune(tx *gorm.DB, model any, limit int, filter string, dependents func(*gorm.DB, []uint) error) error {
	if limit <= 0 {
		return nil
	}
	q := tx.Model(model)
	if filter != "" {
		q = q.Where(filter)
	}

	var ids []uint
	err := q.Order("id DESC").Offset(limit).Limit(pruneBatchLimit).Pluck("id", &ids).Error
	if err != nil || len(ids) == 0 {
		return err
	}
	if dependents != nil {
		if err := dependents(tx, ids); err != nil {
			return err
		}
	}
	return tx.Where("id IN ?", ids).Delete(model).Error
}

func dbError(err error, op string) error {
	return errors.New(err).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Context("operation", op).
		Build()
}

func notFound(kind, id string) error {
	return errors.Newf("%s not found: %s", kind, id).
		Component("datastore").
		Category(errors.CategoryNotFound).
		Build()
}
