package domain

import (
	"time"

	"github.com/pkg/errors"
)

const (
	FeedbackNew      = "NEW"
	FeedbackReviewed = "REVIEWED"
	FeedbackResolved = "RESOLVED"
)

type Feedback struct {
	ID        int64     `json:"id,string" form:"id"`
	PatientId int64     `gorm:"index" json:"patient_id,string" form:"patient_id"`
	DoctorId  int64     `gorm:"index" json:"doctor_id,string" form:"doctor_id"`
	Rating    int       `json:"rating" form:"rating"` // 1..5
	Category  string    `gorm:"index" json:"category" form:"category"`
	Comment   string    `json:"comment" form:"comment"`
	Status    string    `gorm:"index" json:"status" form:"status"`
	Response  string    `json:"response" form:"response"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName Specify table name
func (Feedback) TableName() string {
	return "feedback"
}

const (
	ReferralPending   = "PENDING"
	ReferralAccepted  = "ACCEPTED"
	ReferralRejected  = "REJECTED"
	ReferralCompleted = "COMPLETED"
)

var ReferralUrgencies = []string{"ROUTINE", "URGENT", "EMERGENCY"}

var referralTransitions = transitionTable{
	ReferralPending:   {ReferralAccepted, ReferralRejected},
	ReferralAccepted:  {ReferralCompleted},
	ReferralRejected:  {},
	ReferralCompleted: {},
}

type Referral struct {
	ID               int64     `json:"id,string" form:"id"`
	PatientId        int64     `gorm:"index" json:"patient_id,string" form:"patient_id"`
	FromDoctorId     int64     `gorm:"index" json:"from_doctor_id,string" form:"from_doctor_id"`
	ToDoctorId       int64     `gorm:"index" json:"to_doctor_id,string" form:"to_doctor_id"`
	ExternalFacility string    `json:"external_facility" form:"external_facility"`
	Reason           string    `json:"reason" form:"reason"`
	Urgency          string    `json:"urgency" form:"urgency"`
	Status           string    `gorm:"index" json:"status" form:"status"`
	Notes            string    `json:"notes" form:"notes"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// TableName Specify table name
func (Referral) TableName() string {
	return "referral"
}

func (r *Referral) Transition(to string) error {
	if !referralTransitions.known(to) {
		return errors.Wrap(ErrInvalidStatus, to)
	}
	if !referralTransitions.allows(r.Status, to) {
		return errors.Wrapf(ErrInvalidTransition, "%s -> %s", r.Status, to)
	}
	r.Status = to
	return nil
}

const (
	SurgeryScheduled  = "SCHEDULED"
	SurgeryInProgress = "IN_PROGRESS"
	SurgeryCompleted  = "COMPLETED"
	SurgeryPostponed  = "POSTPONED"
	SurgeryCancelled  = "CANCELLED"
)

var surgeryTransitions = transitionTable{
	SurgeryScheduled:  {SurgeryInProgress, SurgeryPostponed, SurgeryCancelled},
	SurgeryInProgress: {SurgeryCompleted},
	SurgeryPostponed:  {SurgeryScheduled, SurgeryCancelled},
	SurgeryCompleted:  {},
	SurgeryCancelled:  {},
}

type Surgery struct {
	ID             int64     `json:"id,string" form:"id"`
	PatientId      int64     `gorm:"index" json:"patient_id,string" form:"patient_id"`
	SurgeonId      int64     `gorm:"index" json:"surgeon_id,string" form:"surgeon_id"`
	Procedure      string    `json:"procedure" form:"procedure"`
	OperatingRoom  string    `gorm:"index" json:"operating_room" form:"operating_room"`
	Date           string    `gorm:"index;size:10" json:"date" form:"date"`
	StartTime      string    `gorm:"size:5" json:"start_time" form:"start_time"`
	Duration       int       `json:"duration" form:"duration"` // minutes
	AnesthesiaType string    `json:"anesthesia_type" form:"anesthesia_type"`
	Status         string    `gorm:"index" json:"status" form:"status"`
	Notes          string    `json:"notes" form:"notes"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName Specify table name
func (Surgery) TableName() string {
	return "surgery"
}

func (s *Surgery) Transition(to string) error {
	if !surgeryTransitions.known(to) {
		return errors.Wrap(ErrInvalidStatus, to)
	}
	if !surgeryTransitions.allows(s.Status, to) {
		return errors.Wrapf(ErrInvalidTransition, "%s -> %s", s.Status, to)
	}
	s.Status = to
	return nil
}

func (s Surgery) blocking() bool {
	return s.Status == SurgeryScheduled || s.Status == SurgeryInProgress
}

func (s Surgery) window() (int, int, error) {
	return Appointment{StartTime: s.StartTime, Duration: s.Duration}.Window()
}

// SurgeryConflict returns the first booked surgery on the same day sharing
// the room or the surgeon with s and overlapping it in time.
func SurgeryConflict(s Surgery, others []Surgery) (*Surgery, error) {
	start, end, err := s.window()
	if err != nil {
		return nil, err
	}
	for i := range others {
		o := others[i]
		if o.ID == s.ID || !o.blocking() || o.Date != s.Date {
			continue
		}
		if o.OperatingRoom != s.OperatingRoom && o.SurgeonId != s.SurgeonId {
			continue
		}
		bs, be, err := o.window()
		if err != nil {
			continue
		}
		if Overlaps(start, end, bs, be) {
			return &o, nil
		}
	}
	return nil, nil
}

const (
	FollowUpPending   = "PENDING"
	FollowUpCompleted = "COMPLETED"
	FollowUpMissed    = "MISSED"
	FollowUpCancelled = "CANCELLED"
)

var FollowUpStatuses = []string{FollowUpPending, FollowUpCompleted, FollowUpMissed, FollowUpCancelled}

type FollowUp struct {
	ID            int64     `json:"id,string" form:"id"`
	PatientId     int64     `gorm:"index" json:"patient_id,string" form:"patient_id"`
	DoctorId      int64     `gorm:"index" json:"doctor_id,string" form:"doctor_id"`
	AppointmentId int64     `gorm:"index" json:"appointment_id,string" form:"appointment_id"`
	DueDate       string    `gorm:"index;size:10" json:"due_date" form:"due_date"`
	Reason        string    `json:"reason" form:"reason"`
	Status        string    `gorm:"index" json:"status" form:"status"`
	Notes         string    `json:"notes" form:"notes"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName Specify table name
func (FollowUp) TableName() string {
	return "follow_up"
}
