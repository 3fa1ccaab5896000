package inventory

import (
	"sort"
	"time"

	"github.com/roach88/labsync/internal/doc"
)

// Equipment field names.
const (
	FieldLastMaintained          = "lastMaintained"
	FieldMaintenanceIntervalDays = "maintenanceIntervalDays"
)

// WarningDays is how far ahead a maintenance date counts as due.
const WarningDays = 7

// MaintenanceState classifies an equipment maintenance window.
type MaintenanceState string

const (
	MaintenanceOK      MaintenanceState = "ok"
	MaintenanceDue     MaintenanceState = "due"
	MaintenanceOverdue MaintenanceState = "overdue"
	MaintenanceUnknown MaintenanceState = "unknown"
)

// Maintenance is the maintenance window of one equipment entity.
// Due is zero and DaysLeft meaningless when State is unknown.
type Maintenance struct {
	ID       string           `json:"id"`
	Name     string           `json:"name"`
	State    MaintenanceState `json:"state"`
	Due      time.Time        `json:"due"`
	DaysLeft int              `json:"daysLeft"`
}

// MaintenanceStatus computes when e is next due for maintenance:
// lastMaintained plus maintenanceIntervalDays, compared by calendar day
// with now. Entities without a parseable date or a positive interval are
// unknown.
func MaintenanceStatus(e doc.Entity, now time.Time) Maintenance {
	m := Maintenance{ID: e.ID, Name: e.StringField(doc.FieldName), State: MaintenanceUnknown}

	interval, ok := e.IntField(FieldMaintenanceIntervalDays)
	if !ok || interval <= 0 {
		return m
	}
	last, err := time.Parse(time.DateOnly, e.StringField(FieldLastMaintained))
	if err != nil {
		return m
	}

	m.Due = last.AddDate(0, 0, int(interval))
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	m.DaysLeft = int(m.Due.Sub(today).Hours() / 24)
	switch {
	case m.DaysLeft < 0:
		m.State = MaintenanceOverdue
	case m.DaysLeft <= WarningDays:
		m.State = MaintenanceDue
	default:
		m.State = MaintenanceOK
	}
	return m
}

// MaintenanceReport returns the window of every equipment entity that is
// not retired: overdue first, then by due date, unknown last.
func MaintenanceReport(entities []doc.Entity, now time.Time) []Maintenance {
	out := []Maintenance{}
	for _, e := range entities {
		if e.StringField(doc.FieldStatus) == "retired" {
			continue
		}
		out = append(out, MaintenanceStatus(e, now))
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if (a.State == MaintenanceUnknown) != (b.State == MaintenanceUnknown) {
			return b.State == MaintenanceUnknown
		}
		if !a.Due.Equal(b.Due) {
			return a.Due.Before(b.Due)
		}
		return a.ID < b.ID
	})
	return out
}
