package domain

import (
	"time"
)

// Operator levels
const (
	LevelSuper      = "super"
	LevelAdmin      = "admin"
	LevelDoctor     = "doctor"
	LevelReception  = "reception"
	LevelAccountant = "accountant"
)

var OperatorLevels = []string{LevelSuper, LevelAdmin, LevelDoctor, LevelReception, LevelAccountant}

type SysConfig struct {
	ID        int64     `json:"id,string"   form:"id"`
	Sort      int       `json:"sort"  form:"sort"`
	Type      string    `gorm:"index" json:"type" form:"type"`
	Name      string    `gorm:"index" json:"name" form:"name"`
	Value     string    `json:"value" form:"value"`
	Remark    string    `json:"remark" form:"remark"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName Specify table name
func (SysConfig) TableName() string {
	return "sys_config"
}

// SysOpr is a staff account allowed to sign in to the admin api
type SysOpr struct {
	ID        int64     `json:"id,string" form:"id"`
	DoctorId  int64     `gorm:"index" json:"doctor_id,string" form:"doctor_id"` // set when the operator is a doctor
	Realname  string    `json:"realname" form:"realname"`
	Mobile    string    `json:"mobile" form:"mobile"`
	Email     string    `json:"email" form:"email"`
	Username  string    `gorm:"uniqueIndex;size:64" json:"username" form:"username"`
	Password  string    `json:"-" form:"password"`
	Level     string    `json:"level" form:"level"`
	Status    string    `json:"status" form:"status"`
	Remark    string    `json:"remark" form:"remark"`
	LastLogin time.Time `json:"last_login" form:"last_login"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName Specify table name
func (SysOpr) TableName() string {
	return "sys_opr"
}

// SysOprLog is the audit trail of mutating operations
type SysOprLog struct {
	ID        int64     `json:"id,string"`
	OprName   string    `gorm:"index" json:"opr_name"`
	OprIp     string    `json:"opr_ip"`
	OptAction string    `gorm:"index" json:"opt_action"`
	Entity    string    `gorm:"index" json:"entity"`
	EntityId  int64     `json:"entity_id,string"`
	OptDesc   string    `json:"opt_desc"`
	OptTime   time.Time `gorm:"index" json:"opt_time"`
}

// TableName Specify table name
func (SysOprLog) TableName() string {
	return "sys_opr_log"
}

// SysScheduler is a database managed periodic task
type SysScheduler struct {
	ID          int64     `json:"id,string" form:"id"`
	Name        string    `json:"name" form:"name"`
	TaskType    string    `gorm:"index" json:"task_type" form:"task_type"` // appointment_reminder, no_show_sweep ...
	Interval    int       `json:"interval" form:"interval"`                // seconds
	Status      string    `json:"status" form:"status"`                    // enabled/disabled
	LastRunAt   time.Time `json:"last_run_at"`
	NextRunAt   time.Time `json:"next_run_at"`
	LastResult  string    `json:"last_result" form:"last_result"` // success/failed
	LastMessage string    `json:"last_message" form:"last_message"`
	Remark      string    `json:"remark" form:"remark"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName Specify table name
func (SysScheduler) TableName() string {
	return "sys_scheduler"
}

// SysCounter holds a named monotonic sequence used for human readable codes
type SysCounter struct {
	ID        int64     `json:"id,string"`
	Name      string    `gorm:"uniqueIndex;size:64" json:"name"`
	Prefix    string    `json:"prefix"`
	Width     int       `json:"width"`
	Value     int64     `json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName Specify table name
func (SysCounter) TableName() string {
	return "sys_counter"
}
