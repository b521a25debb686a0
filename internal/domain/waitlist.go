package domain

import (
	"time"

	"github.com/pkg/errors"
)

// Waitlist priorities, lowest first
const (
	PriorityLow    = "LOW"
	PriorityNormal = "NORMAL"
	PriorityHigh   = "HIGH"
	PriorityUrgent = "URGENT"
)

const (
	WaitlistWaiting   = "WAITING"
	WaitlistScheduled = "SCHEDULED"
	WaitlistCancelled = "CANCELLED"
)

const (
	DirectionUp   = "up"
	DirectionDown = "down"
)

var Priorities = []string{PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent}

type WaitlistEntry struct {
	ID            int64     `json:"id,string" form:"id"`
	PatientId     int64     `gorm:"index" json:"patient_id,string" form:"patient_id"`
	DoctorId      int64     `gorm:"index" json:"doctor_id,string" form:"doctor_id"`
	PreferredDate string    `gorm:"size:10" json:"preferred_date" form:"preferred_date"`
	Reason        string    `json:"reason" form:"reason"`
	Priority      string    `gorm:"index" json:"priority" form:"priority"`
	Position      int       `json:"position" form:"position"`
	Status        string    `gorm:"index" json:"status" form:"status"`
	AppointmentId int64     `json:"appointment_id,string"`
	Notes         string    `json:"notes" form:"notes"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName Specify table name
func (WaitlistEntry) TableName() string {
	return "waitlist_entry"
}

// PriorityRank returns the index of p in Priorities, or -1
func PriorityRank(p string) int {
	for i, v := range Priorities {
		if v == p {
			return i
		}
	}
	return -1
}

// ShiftPriority moves p one level up or down. It never leaves the enum:
// moving past either end returns ErrPriorityBounds.
func ShiftPriority(p, direction string) (string, error) {
	rank := PriorityRank(p)
	if rank < 0 {
		return p, errors.Wrap(ErrInvalidPriority, p)
	}
	switch direction {
	case DirectionUp:
		rank++
	case DirectionDown:
		rank--
	default:
		return p, errors.Errorf("unknown direction %q", direction)
	}
	if rank < 0 || rank >= len(Priorities) {
		return p, ErrPriorityBounds
	}
	return Priorities[rank], nil
}

// SwapNeighbour finds the entry adjacent to entries[idx] in the given
// direction of the list order. Up means toward the head of the list.
func SwapNeighbour(entries []WaitlistEntry, idx int, direction string) (int, error) {
	var target int
	switch direction {
	case DirectionUp:
		target = idx - 1
	case DirectionDown:
		target = idx + 1
	default:
		return -1, errors.Errorf("unknown direction %q", direction)
	}
	if target < 0 || target >= len(entries) {
		return -1, errors.New("entry already at the end of the list")
	}
	return target, nil
}
