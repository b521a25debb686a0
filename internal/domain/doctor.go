package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	DoctorActive   = "ACTIVE"
	DoctorOnLeave  = "ON_LEAVE"
	DoctorInactive = "INACTIVE"
)

type Doctor struct {
	ID              int64           `json:"id,string" form:"id"`
	Name            string          `gorm:"index" json:"name" form:"name"`
	Specialization  string          `gorm:"index" json:"specialization" form:"specialization"`
	Department      string          `json:"department" form:"department"`
	Qualification   string          `json:"qualification" form:"qualification"`
	Phone           string          `json:"phone" form:"phone"`
	Email           string          `json:"email" form:"email"`
	ConsultationFee decimal.Decimal `gorm:"type:decimal(12,2)" json:"consultation_fee"`
	WorkingDays     string          `json:"working_days" form:"working_days"` // MON,TUE,...
	Status          string          `gorm:"index" json:"status" form:"status"`
	Remark          string          `json:"remark" form:"remark"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	DeletedAt       gorm.DeletedAt  `gorm:"index" json:"-"`
}

// TableName Specify table name
func (Doctor) TableName() string {
	return "doctor"
}

// WorksOn reports whether the doctor is on duty on the weekday of t.
// An empty working days list means every day.
func (d Doctor) WorksOn(t time.Time) bool {
	if strings.TrimSpace(d.WorkingDays) == "" {
		return true
	}
	day := strings.ToUpper(t.Weekday().String()[:3])
	for _, s := range strings.Split(d.WorkingDays, ",") {
		if strings.EqualFold(strings.TrimSpace(s), day) {
			return true
		}
	}
	return false
}

// Service is a billable item of the hospital price list
type Service struct {
	ID        int64           `json:"id,string" form:"id"`
	Code      string          `gorm:"uniqueIndex;size:32" json:"code" form:"code"`
	Name      string          `gorm:"index" json:"name" form:"name"`
	Category  string          `gorm:"index" json:"category" form:"category"`
	Price     decimal.Decimal `gorm:"type:decimal(12,2)" json:"price"`
	Status    string          `json:"status" form:"status"` // enabled/disabled
	Remark    string          `json:"remark" form:"remark"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// TableName Specify table name
func (Service) TableName() string {
	return "service"
}
