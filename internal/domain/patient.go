package domain

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

const (
	PatientActive   = "ACTIVE"
	PatientInactive = "INACTIVE"

	GenderMale   = "MALE"
	GenderFemale = "FEMALE"
	GenderOther  = "OTHER"
)

// Patient is a registered patient, identified to staff by the MRN
type Patient struct {
	ID               int64          `json:"id,string" form:"id"`
	Mrn              string         `gorm:"uniqueIndex;size:32" json:"mrn" form:"mrn"`
	FirstName        string         `gorm:"index" json:"first_name" form:"first_name"`
	LastName         string         `gorm:"index" json:"last_name" form:"last_name"`
	DateOfBirth      string         `gorm:"size:10" json:"date_of_birth" form:"date_of_birth"`
	Gender           string         `json:"gender" form:"gender"`
	Phone            string         `gorm:"index" json:"phone" form:"phone"`
	Email            string         `json:"email" form:"email"`
	Address          string         `json:"address" form:"address"`
	BloodGroup       string         `json:"blood_group" form:"blood_group"`
	Allergies        string         `json:"allergies" form:"allergies"`
	EmergencyContact string         `json:"emergency_contact" form:"emergency_contact"`
	EmergencyPhone   string         `json:"emergency_phone" form:"emergency_phone"`
	Status           string         `gorm:"index" json:"status" form:"status"`
	Remark           string         `json:"remark" form:"remark"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName Specify table name
func (Patient) TableName() string {
	return "patient"
}

func (p Patient) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// Age in whole years on the given day, -1 when the birth date is unknown
func (p Patient) Age(on time.Time) int {
	dob, err := time.ParseInLocation("2006-01-02", p.DateOfBirth, on.Location())
	if err != nil {
		return -1
	}
	age := on.Year() - dob.Year()
	if on.Month() < dob.Month() || (on.Month() == dob.Month() && on.Day() < dob.Day()) {
		age--
	}
	return age
}
