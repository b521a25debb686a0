package domain

import (
	"time"

	"github.com/pkg/errors"
)

// Appointment statuses
const (
	ApptScheduled  = "SCHEDULED"
	ApptWaiting    = "WAITING"
	ApptInProgress = "IN_PROGRESS"
	ApptCompleted  = "COMPLETED"
	ApptCancelled  = "CANCELLED"
	ApptNoShow     = "NO_SHOW"
)

// Appointment types
const (
	ApptTypeConsultation = "CONSULTATION"
	ApptTypeFollowUp     = "FOLLOW_UP"
	ApptTypeEmergency    = "EMERGENCY"
	ApptTypeProcedure    = "PROCEDURE"
)

var AppointmentTypes = []string{ApptTypeConsultation, ApptTypeFollowUp, ApptTypeEmergency, ApptTypeProcedure}

var appointmentTransitions = transitionTable{
	ApptScheduled:  {ApptWaiting, ApptCancelled, ApptNoShow},
	ApptWaiting:    {ApptInProgress, ApptCancelled, ApptNoShow},
	ApptInProgress: {ApptCompleted, ApptCancelled},
	ApptCompleted:  {},
	ApptCancelled:  {},
	ApptNoShow:     {},
}

type Appointment struct {
	ID           int64      `json:"id,string" form:"id"`
	PatientId    int64      `gorm:"index" json:"patient_id,string" form:"patient_id"`
	DoctorId     int64      `gorm:"index" json:"doctor_id,string" form:"doctor_id"`
	Date         string     `gorm:"index;size:10" json:"date" form:"date"`      // YYYY-MM-DD
	StartTime    string     `gorm:"size:5" json:"start_time" form:"start_time"` // HH:MM
	Duration     int        `json:"duration" form:"duration"`                   // minutes
	Type         string     `json:"type" form:"type"`
	Reason       string     `json:"reason" form:"reason"`
	Notes        string     `json:"notes" form:"notes"`
	Status       string     `gorm:"index" json:"status" form:"status"`
	TokenNo      int        `json:"token_no"`
	CheckedInAt  *time.Time `json:"checked_in_at"`
	StartedAt    *time.Time `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at"`
	CancelReason string     `json:"cancel_reason"`
	ReminderSent bool       `json:"reminder_sent"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// TableName Specify table name
func (Appointment) TableName() string {
	return "appointment"
}

// IsActive reports whether the appointment still holds its slot
func (a Appointment) IsActive() bool {
	return a.Status != ApptCancelled && a.Status != ApptNoShow
}

// Window returns the booked interval as minutes after midnight
func (a Appointment) Window() (int, int, error) {
	t, err := time.Parse("15:04", a.StartTime)
	if err != nil {
		return 0, 0, errors.Wrapf(ErrInvalidSchedule, "start time %q", a.StartTime)
	}
	start := t.Hour()*60 + t.Minute()
	d := a.Duration
	if d <= 0 {
		d = 30
	}
	return start, start + d, nil
}

// StartsAt is the local start instant
func (a Appointment) StartsAt() (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02 15:04", a.Date+" "+a.StartTime, time.Local)
	if err != nil {
		return time.Time{}, errors.Wrapf(ErrInvalidSchedule, "%s %s", a.Date, a.StartTime)
	}
	return t, nil
}

func IsAppointmentStatus(s string) bool {
	return appointmentTransitions.known(s)
}

// CanTransition reports whether the status table allows from -> to
func CanTransition(from, to string) bool {
	return appointmentTransitions.allows(from, to)
}

// NextStatuses lists the statuses reachable from the given one
func NextStatuses(from string) []string {
	return appointmentTransitions.next(from)
}

// Transition moves the appointment to status `to`, stamping the lifecycle
// times. Token assignment on check-in is left to the caller.
func (a *Appointment) Transition(to string, now time.Time) error {
	if !IsAppointmentStatus(to) {
		return errors.Wrap(ErrInvalidStatus, to)
	}
	if !CanTransition(a.Status, to) {
		return errors.Wrapf(ErrInvalidTransition, "%s -> %s", a.Status, to)
	}
	switch to {
	case ApptWaiting:
		a.CheckedInAt = &now
	case ApptInProgress:
		a.StartedAt = &now
	case ApptCompleted:
		a.CompletedAt = &now
	}
	a.Status = to
	return nil
}

// WaitMinutes is the time between check-in and consultation start
func (a Appointment) WaitMinutes() (float64, bool) {
	if a.CheckedInAt == nil || a.StartedAt == nil {
		return 0, false
	}
	return a.StartedAt.Sub(*a.CheckedInAt).Minutes(), true
}

// Overlaps reports whether two [start, end) minute windows intersect
func Overlaps(s1, e1, s2, e2 int) bool {
	return s1 < e2 && s2 < e1
}

// FindConflict returns the first active booking in others overlapping a.
// Rows with the same id as a are ignored.
func FindConflict(a Appointment, others []Appointment) (*Appointment, error) {
	s, e, err := a.Window()
	if err != nil {
		return nil, err
	}
	for i := range others {
		o := others[i]
		if o.ID == a.ID || !o.IsActive() || o.Date != a.Date {
			continue
		}
		bs, be, err := o.Window()
		if err != nil {
			continue
		}
		if Overlaps(s, e, bs, be) {
			return &o, nil
		}
	}
	return nil, nil
}

type Slot struct {
	Start     string `json:"start"`
	End       string `json:"end"`
	Available bool   `json:"available"`
}

// BuildSlots splits [workStart, workEnd) into slotMinutes slots and marks
// the ones overlapping an active booking as unavailable.
func BuildSlots(workStart, workEnd, slotMinutes int, booked []Appointment) []Slot {
	if slotMinutes <= 0 {
		slotMinutes = 30
	}
	slots := make([]Slot, 0)
	for s := workStart; s+slotMinutes <= workEnd; s += slotMinutes {
		free := true
		for _, b := range booked {
			if !b.IsActive() {
				continue
			}
			bs, be, err := b.Window()
			if err != nil {
				continue
			}
			if Overlaps(s, s+slotMinutes, bs, be) {
				free = false
				break
			}
		}
		slots = append(slots, Slot{
			Start:     clock(s),
			End:       clock(s + slotMinutes),
			Available: free,
		})
	}
	return slots
}

func clock(m int) string {
	return time.Date(0, 1, 1, m/60, m%60, 0, 0, time.UTC).Format("15:04")
}
