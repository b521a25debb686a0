package app

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/medicore/hms/internal/domain"
	"github.com/medicore/hms/pkg/common"
	"github.com/panjf2000/ants/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Scheduler task types
const (
	TaskAppointmentReminder = "appointment_reminder"
	TaskNoShowSweep         = "no_show_sweep"
	TaskMaintenanceDue      = "maintenance_due"
	TaskFollowUpDue         = "followup_due"
	TaskInvoiceOverdue      = "invoice_overdue"
)

var TaskTypes = []string{TaskAppointmentReminder, TaskNoShowSweep, TaskMaintenanceDue, TaskFollowUpDue, TaskInvoiceOverdue}

var ErrUnknownTask = errors.New("unsupported task type")

// StartBackgroundJobs starts the database scheduler runner
func (a *Application) StartBackgroundJobs(ctx context.Context) {
	a.StartSchedulerService(ctx)
}

// StartSchedulerService runs enabled schedulers periodically
func (a *Application) StartSchedulerService(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				a.runSchedulers()
			}
		}
	}()
}

// runSchedulers executes enabled schedulers that are due
func (a *Application) runSchedulers() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()
	var schedulers []domain.SysScheduler
	a.gormDB.Where("status = ?", common.ENABLED).Find(&schedulers)
	now := time.Now()
	for i := range schedulers {
		sched := schedulers[i]
		if sched.NextRunAt.IsZero() || !now.Before(sched.NextRunAt) {
			_ = a.runScheduler(&sched, now)
		}
	}
}

// RunSchedulerNow triggers a scheduler execution immediately by ID
func (a *Application) RunSchedulerNow(id int64) error {
	var sched domain.SysScheduler
	if err := a.gormDB.First(&sched, id).Error; err != nil {
		return err
	}
	return a.runScheduler(&sched, time.Now())
}

func (a *Application) runScheduler(sched *domain.SysScheduler, now time.Time) error {
	var (
		msg string
		err error
	)
	switch sched.TaskType {
	case TaskAppointmentReminder:
		msg, err = a.taskAppointmentReminder(now)
	case TaskNoShowSweep:
		msg, err = a.taskNoShowSweep(now)
	case TaskMaintenanceDue:
		msg, err = a.taskMaintenanceDue(now)
	case TaskFollowUpDue:
		msg, err = a.taskFollowUpDue(now)
	case TaskInvoiceOverdue:
		msg, err = a.taskInvoiceOverdue(now)
	default:
		err = errors.Wrap(ErrUnknownTask, sched.TaskType)
	}

	result := "success"
	if err != nil {
		result = "failed"
		msg = err.Error()
		zap.L().Error("scheduler run failed",
			zap.Int64("scheduler_id", sched.ID),
			zap.String("task_type", sched.TaskType),
			zap.Error(err))
	} else {
		zap.L().Info("scheduler run finished",
			zap.Int64("scheduler_id", sched.ID),
			zap.String("task_type", sched.TaskType),
			zap.String("message", msg))
	}

	interval := sched.Interval
	if interval <= 0 {
		interval = 3600
	}
	a.gormDB.Model(&domain.SysScheduler{}).Where("id = ?", sched.ID).Updates(map[string]interface{}{
		"last_run_at":  now,
		"last_result":  result,
		"last_message": msg,
		"next_run_at":  now.Add(time.Duration(interval) * time.Second),
	})
	return err
}

// fanOut calls fn for 0..n-1 on a bounded worker pool and waits
func (a *Application) fanOut(n int, fn func(i int)) {
	workers := int(a.GetSettingsInt64Value("scheduler", "max_workers"))
	if workers <= 0 {
		workers = 16
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		idx := i
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			fn(idx)
		}); err != nil {
			wg.Done()
			zap.L().Warn("scheduler task dropped", zap.Error(err))
		}
	}
	wg.Wait()
}

func (a *Application) taskAppointmentReminder(now time.Time) (string, error) {
	hours := a.ConfigMgr().Appointment().ReminderHours
	if hours <= 0 {
		hours = 24
	}
	until := now.Add(time.Duration(hours) * time.Hour)

	var rows []domain.Appointment
	err := a.gormDB.
		Where("status = ? and reminder_sent = ? and date >= ? and date <= ?",
			domain.ApptScheduled, false, now.Format(common.DateLayout), until.Format(common.DateLayout)).
		Find(&rows).Error
	if err != nil {
		return "", errors.Wrap(err, "query appointments")
	}

	due := make([]domain.Appointment, 0, len(rows))
	for _, r := range rows {
		at, err := r.StartsAt()
		if err != nil {
			continue
		}
		if at.After(now) && !at.After(until) {
			due = append(due, r)
		}
	}

	var sent int64
	a.fanOut(len(due), func(i int) {
		appt := due[i]
		var patient domain.Patient
		var doctor domain.Doctor
		a.gormDB.First(&patient, appt.PatientId)
		a.gormDB.Unscoped().First(&doctor, appt.DoctorId)
		err := a.notifier.Send(domain.Notification{
			Type:      "appointment_reminder",
			Title:     "Appointment reminder",
			Message:   fmt.Sprintf("%s, your appointment with %s is on %s at %s", patient.FullName(), doctor.Name, appt.Date, appt.StartTime),
			Entity:    "appointment",
			EntityId:  appt.ID,
			Recipient: patient.Email,
		})
		if err != nil {
			zap.L().Error("appointment reminder failed", zap.Int64("appointment_id", appt.ID), zap.Error(err))
			return
		}
		a.gormDB.Model(&domain.Appointment{}).Where("id = ?", appt.ID).Update("reminder_sent", true)
		atomic.AddInt64(&sent, 1)
	})
	return fmt.Sprintf("%d reminders sent", sent), nil
}

func (a *Application) taskNoShowSweep(now time.Time) (string, error) {
	var rows []domain.Appointment
	err := a.gormDB.
		Where("status = ? and date < ?", domain.ApptScheduled, now.Format(common.DateLayout)).
		Find(&rows).Error
	if err != nil {
		return "", errors.Wrap(err, "query appointments")
	}
	var marked int
	for i := range rows {
		appt := rows[i]
		from := appt.Status
		if err := appt.Transition(domain.ApptNoShow, now); err != nil {
			continue
		}
		res := a.gormDB.Model(&domain.Appointment{}).
			Where("id = ? and status = ?", appt.ID, from).
			Updates(map[string]interface{}{"status": appt.Status, "updated_at": now})
		if res.Error != nil || res.RowsAffected == 0 {
			continue
		}
		marked++
		a.Publish(TopicAudit, AuditEvent{
			Operator: "scheduler",
			Action:   "status",
			Entity:   "appointment",
			EntityId: appt.ID,
			Detail:   map[string]string{"from": from, "to": appt.Status},
		})
		a.Publish(TopicAppointmentStatus, AppointmentStatusEvent{Appointment: appt, From: from, Operator: "scheduler"})
	}
	return fmt.Sprintf("%d appointments marked no-show", marked), nil
}

func (a *Application) taskMaintenanceDue(now time.Time) (string, error) {
	horizon := now.AddDate(0, 0, 7).Format(common.DateLayout)
	var rows []domain.Equipment
	err := a.gormDB.
		Where("status <> ? and next_maintenance <> '' and next_maintenance <= ?", domain.EquipmentRetired, horizon).
		Find(&rows).Error
	if err != nil {
		return "", errors.Wrap(err, "query equipment")
	}
	var raised int
	for _, e := range rows {
		created, err := a.notifier.SendOnce(domain.Notification{
			Type:     "maintenance_due",
			Title:    "Equipment maintenance due",
			Message:  fmt.Sprintf("%s (%s) at %s is due for maintenance on %s", e.Name, e.SerialNumber, e.Location, e.NextMaintenance),
			Entity:   "equipment",
			EntityId: e.ID,
		})
		if err != nil {
			return "", err
		}
		if created {
			raised++
		}
	}
	return fmt.Sprintf("%d equipment due, %d notified", len(rows), raised), nil
}

func (a *Application) taskFollowUpDue(now time.Time) (string, error) {
	today := now.Format(common.DateLayout)
	var rows []domain.FollowUp
	err := a.gormDB.
		Where("status = ? and due_date <> '' and due_date <= ?", domain.FollowUpPending, today).
		Find(&rows).Error
	if err != nil {
		return "", errors.Wrap(err, "query follow-ups")
	}
	var missed, reminded, failed int
	for _, f := range rows {
		var patient domain.Patient
		a.gormDB.Unscoped().First(&patient, f.PatientId)
		if f.DueDate < today {
			// stays PENDING until the notice is stored, so the next run retries it
			err := a.notifier.Send(domain.Notification{
				Type:     "followup_missed",
				Title:    "Follow-up missed",
				Message:  fmt.Sprintf("%s (%s) missed the follow-up due %s", patient.FullName(), patient.Mrn, f.DueDate),
				Entity:   "follow_up",
				EntityId: f.ID,
			})
			if err != nil {
				failed++
				zap.L().Error("follow-up missed notice failed", zap.Int64("follow_up_id", f.ID), zap.Error(err))
				continue
			}
			a.gormDB.Model(&domain.FollowUp{}).Where("id = ? and status = ?", f.ID, domain.FollowUpPending).
				Updates(map[string]interface{}{"status": domain.FollowUpMissed, "updated_at": now})
			missed++
			continue
		}
		created, err := a.notifier.SendOnce(domain.Notification{
			Type:      "followup_due",
			Title:     "Follow-up due today",
			Message:   fmt.Sprintf("%s (%s): %s", patient.FullName(), patient.Mrn, f.Reason),
			Entity:    "follow_up",
			EntityId:  f.ID,
			Recipient: patient.Email,
		})
		if err != nil {
			failed++
			zap.L().Error("follow-up reminder failed", zap.Int64("follow_up_id", f.ID), zap.Error(err))
			continue
		}
		if created {
			reminded++
		}
	}
	return fmt.Sprintf("%d missed, %d reminded, %d failed", missed, reminded, failed), nil
}

func (a *Application) taskInvoiceOverdue(now time.Time) (string, error) {
	var rows []domain.Invoice
	err := a.gormDB.
		Where("status in ? and overdue_notice = ? and due_date <> '' and due_date < ?",
			[]string{domain.InvoicePending, domain.InvoicePartial}, false, now.Format(common.DateLayout)).
		Find(&rows).Error
	if err != nil {
		return "", errors.Wrap(err, "query invoices")
	}
	var failed int
	for _, inv := range rows {
		err := a.notifier.Send(domain.Notification{
			Type:     "invoice_overdue",
			Title:    "Invoice overdue",
			Message:  fmt.Sprintf("Invoice %s is overdue since %s, balance %s", inv.Number, inv.DueDate, inv.Balance().StringFixed(2)),
			Entity:   "invoice",
			EntityId: inv.ID,
		})
		if err != nil {
			failed++
			zap.L().Error("invoice overdue notice failed", zap.Int64("invoice_id", inv.ID), zap.Error(err))
			continue
		}
		a.gormDB.Model(&domain.Invoice{}).Where("id = ?", inv.ID).Update("overdue_notice", true)
	}
	return fmt.Sprintf("%d invoices overdue, %d failed", len(rows), failed), nil
}
