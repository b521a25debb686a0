package app

import (
	"errors"
	"strings"
	"time"

	"github.com/medicore/hms/internal/domain"
	"github.com/medicore/hms/pkg/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	SuperUsername   = "admin"
	DefaultPassword = "hospital"
)

func (a *Application) checkSuper() {
	var operator domain.SysOpr
	err := a.gormDB.Where("username = ?", SuperUsername).First(&operator).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		hashedPassword, err := common.HashPassword(DefaultPassword)
		if err != nil {
			zap.L().Error("failed to hash default password", zap.Error(err))
			return
		}
		if err := a.gormDB.Create(&domain.SysOpr{
			ID:        common.UUIDint64(),
			Realname:  "administrator",
			Mobile:    "0000",
			Email:     common.NA,
			Username:  SuperUsername,
			Password:  hashedPassword,
			Level:     domain.LevelSuper,
			Status:    common.ENABLED,
			Remark:    "super",
			LastLogin: time.Now(),
		}).Error; err != nil {
			zap.L().Error("failed to create default super admin", zap.Error(err))
		} else {
			zap.L().Info("initialized default super admin account", zap.String("username", SuperUsername))
		}
		return
	case err != nil:
		zap.L().Error("failed to query super admin", zap.Error(err))
		return
	}

	resetPassword := strings.TrimSpace(operator.Password) == ""
	resetLevel := !strings.EqualFold(operator.Level, domain.LevelSuper)
	resetStatus := !strings.EqualFold(operator.Status, common.ENABLED)

	if !resetPassword && !resetLevel && !resetStatus {
		return
	}

	updates := map[string]interface{}{
		"updated_at": time.Now(),
	}
	if resetPassword {
		hashedPassword, err := common.HashPassword(DefaultPassword)
		if err != nil {
			zap.L().Error("failed to hash default password", zap.Error(err))
			return
		}
		updates["password"] = hashedPassword
	}
	if resetLevel {
		updates["level"] = domain.LevelSuper
	}
	if resetStatus {
		updates["status"] = common.ENABLED
	}

	if err := a.gormDB.Model(&domain.SysOpr{}).Where("id = ?", operator.ID).Updates(updates).Error; err != nil {
		zap.L().Error("failed to repair super admin account", zap.Error(err))
		return
	}

	zap.L().Warn("repaired default super admin account",
		zap.String("username", SuperUsername),
		zap.Bool("passwordReset", resetPassword),
		zap.Bool("levelReset", resetLevel),
		zap.Bool("statusEnabled", resetStatus))
}

func (a *Application) checkSettings() {
	var schemasData ConfigSchemasJSON
	if err := json.Unmarshal(configSchemasData, &schemasData); err != nil {
		zap.L().Error("failed to load config schemas from JSON", zap.Error(err))
		return
	}

	for sortid, schema := range schemasData.Schemas {
		// "category.name" -> category, name
		parts := strings.SplitN(schema.Key, ".", 2)
		if len(parts) != 2 {
			zap.L().Warn("invalid config key format", zap.String("key", schema.Key))
			continue
		}

		category := parts[0]
		name := parts[1]

		var count int64
		a.gormDB.Model(&domain.SysConfig{}).
			Where("type = ? and name = ?", category, name).
			Count(&count)

		if count == 0 {
			a.gormDB.Create(&domain.SysConfig{
				ID:     0,
				Sort:   sortid,
				Type:   category,
				Name:   name,
				Value:  schema.Default,
				Remark: schema.Description,
			})
			zap.L().Info("initialized config",
				zap.String("key", schema.Key),
				zap.String("default", schema.Default))
		}
	}
}

func (a *Application) checkCounters() {
	for _, c := range defaultCounters {
		var count int64
		a.gormDB.Model(&domain.SysCounter{}).Where("name = ?", c.Name).Count(&count)
		if count > 0 {
			continue
		}
		c.CreatedAt = time.Now()
		c.UpdatedAt = time.Now()
		if err := a.gormDB.Create(&c).Error; err != nil {
			zap.L().Error("failed to create counter", zap.String("name", c.Name), zap.Error(err))
		} else {
			zap.L().Info("initialized counter", zap.String("name", c.Name), zap.String("prefix", c.Prefix))
		}
	}
}

// checkServices seeds a starter price list when the catalogue is empty
func (a *Application) checkServices() {
	var count int64
	a.gormDB.Model(&domain.Service{}).Count(&count)
	if count > 0 {
		return
	}
	defaultServices := []domain.Service{
		{Code: "CONS-GEN", Name: "General Consultation", Category: "Consultation", Price: decimal.NewFromInt(500)},
		{Code: "CONS-SPL", Name: "Specialist Consultation", Category: "Consultation", Price: decimal.NewFromInt(900)},
		{Code: "LAB-CBC", Name: "Complete Blood Count", Category: "Laboratory", Price: decimal.NewFromInt(350)},
		{Code: "RAD-XRAY", Name: "X-Ray (single view)", Category: "Radiology", Price: decimal.NewFromInt(600)},
		{Code: "PROC-DRS", Name: "Wound Dressing", Category: "Procedure", Price: decimal.NewFromInt(250)},
	}
	for _, s := range defaultServices {
		s.ID = common.UUIDint64()
		s.Status = common.ENABLED
		s.CreatedAt = time.Now()
		s.UpdatedAt = time.Now()
		if err := a.gormDB.Create(&s).Error; err != nil {
			zap.L().Error("failed to create default service", zap.String("code", s.Code), zap.Error(err))
		} else {
			zap.L().Info("initialized default service", zap.String("code", s.Code), zap.String("name", s.Name))
		}
	}
}

// checkSchedulers initializes default scheduled tasks
func (a *Application) checkSchedulers() {
	defaultSchedulers := []domain.SysScheduler{
		{
			Name:     "Appointment Reminders",
			TaskType: TaskAppointmentReminder,
			Interval: 900,
			Status:   common.ENABLED,
			Remark:   "Notifies patients of upcoming appointments within the reminder lead time",
		},
		{
			Name:     "No-show Sweep",
			TaskType: TaskNoShowSweep,
			Interval: 3600,
			Status:   common.ENABLED,
			Remark:   "Marks past scheduled appointments as no-show",
		},
		{
			Name:     "Equipment Maintenance Due",
			TaskType: TaskMaintenanceDue,
			Interval: 86400,
			Status:   common.ENABLED,
			Remark:   "Raises notifications for equipment due for maintenance",
		},
		{
			Name:     "Follow-up Due",
			TaskType: TaskFollowUpDue,
			Interval: 3600,
			Status:   common.ENABLED,
			Remark:   "Reminds due follow-ups and marks overdue ones as missed",
		},
		{
			Name:     "Invoice Overdue",
			TaskType: TaskInvoiceOverdue,
			Interval: 86400,
			Status:   common.ENABLED,
			Remark:   "Raises notifications for unpaid invoices past their due date",
		},
	}

	for _, sched := range defaultSchedulers {
		var count int64
		a.gormDB.Model(&domain.SysScheduler{}).
			Where("task_type = ?", sched.TaskType).
			Count(&count)

		if count == 0 {
			sched.ID = common.UUIDint64()
			sched.NextRunAt = time.Now().Add(time.Duration(sched.Interval) * time.Second)
			if err := a.gormDB.Create(&sched).Error; err != nil {
				zap.L().Error("failed to create default scheduler",
					zap.String("name", sched.Name),
					zap.Error(err))
			} else {
				zap.L().Info("initialized default scheduler",
					zap.String("name", sched.Name),
					zap.String("task_type", sched.TaskType))
			}
		}
	}
}
