package domain

import (
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const (
	EquipmentOperational  = "OPERATIONAL"
	EquipmentMaintenance  = "MAINTENANCE"
	EquipmentOutOfService = "OUT_OF_SERVICE"
	EquipmentRetired      = "RETIRED"
)

var EquipmentStatuses = []string{EquipmentOperational, EquipmentMaintenance, EquipmentOutOfService, EquipmentRetired}

var MaintenanceTypes = []string{"PREVENTIVE", "CORRECTIVE", "CALIBRATION"}

type Equipment struct {
	ID                  int64     `json:"id,string" form:"id"`
	Name                string    `gorm:"index" json:"name" form:"name"`
	SerialNumber        string    `gorm:"uniqueIndex;size:64" json:"serial_number" form:"serial_number"`
	Category            string    `gorm:"index" json:"category" form:"category"`
	Location            string    `json:"location" form:"location"`
	Manufacturer        string    `json:"manufacturer" form:"manufacturer"`
	Status              string    `gorm:"index" json:"status" form:"status"`
	PurchaseDate        string    `gorm:"size:10" json:"purchase_date" form:"purchase_date"`
	MaintenanceInterval int       `json:"maintenance_interval" form:"maintenance_interval"` // days
	LastMaintenance     string    `gorm:"size:10" json:"last_maintenance"`
	NextMaintenance     string    `gorm:"index;size:10" json:"next_maintenance"`
	Remark              string    `json:"remark" form:"remark"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// TableName Specify table name
func (Equipment) TableName() string {
	return "equipment"
}

type MaintenanceRecord struct {
	ID          int64           `json:"id,string"`
	EquipmentId int64           `gorm:"index" json:"equipment_id,string"`
	Date        string          `gorm:"size:10" json:"date"`
	Type        string          `json:"type"`
	PerformedBy string          `json:"performed_by"`
	Cost        decimal.Decimal `gorm:"type:decimal(12,2)" json:"cost"`
	Notes       string          `json:"notes"`
	CreatedAt   time.Time       `json:"created_at"`
}

// TableName Specify table name
func (MaintenanceRecord) TableName() string {
	return "maintenance_record"
}

// ScheduleNext sets the next maintenance date from a reference date
func (e *Equipment) ScheduleNext(from string) error {
	if e.MaintenanceInterval <= 0 {
		e.NextMaintenance = ""
		return nil
	}
	t, err := time.ParseInLocation("2006-01-02", from, time.Local)
	if err != nil {
		return errors.Wrap(ErrInvalidSchedule, from)
	}
	e.NextMaintenance = t.AddDate(0, 0, e.MaintenanceInterval).Format("2006-01-02")
	return nil
}

// RecordMaintenance applies a completed maintenance to the equipment
func (e *Equipment) RecordMaintenance(rec MaintenanceRecord) error {
	if e.Status == EquipmentRetired {
		return errors.Wrap(ErrInvalidTransition, "equipment is retired")
	}
	e.LastMaintenance = rec.Date
	if err := e.ScheduleNext(rec.Date); err != nil {
		return err
	}
	e.Status = EquipmentOperational
	return nil
}
