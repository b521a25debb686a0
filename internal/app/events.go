package app

import (
	"fmt"
	"time"

	"github.com/asaskevich/EventBus"
	jsoniter "github.com/json-iterator/go"
	"github.com/medicore/hms/internal/domain"
	"github.com/medicore/hms/pkg/common"
	"github.com/medicore/hms/pkg/metrics"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	TopicAudit             = "audit:record"
	TopicAppointmentStatus = "appointment:status"
)

// AuditEvent is published for every mutating admin operation
type AuditEvent struct {
	Operator string
	Ip       string
	Action   string
	Entity   string
	EntityId int64
	Detail   interface{}
}

// AppointmentStatusEvent is published after a status change is committed
type AppointmentStatusEvent struct {
	Appointment domain.Appointment
	From        string
	Operator    string
}

func (a *Application) initEvents() {
	a.bus = EventBus.New()
	if err := a.bus.Subscribe(TopicAudit, a.recordAudit); err != nil {
		zap.L().Error("subscribe audit", zap.Error(err))
	}
	if err := a.bus.Subscribe(TopicAppointmentStatus, a.onAppointmentStatus); err != nil {
		zap.L().Error("subscribe appointment status", zap.Error(err))
	}
}

// Publish delivers an event to the subscribers of topic synchronously
func (a *Application) Publish(topic string, args ...interface{}) {
	if a.bus == nil {
		return
	}
	metrics.DomainEvents.WithLabelValues(topic).Inc()
	a.bus.Publish(topic, args...)
}

func (a *Application) recordAudit(ev AuditEvent) {
	desc := ""
	switch d := ev.Detail.(type) {
	case nil:
	case string:
		desc = d
	default:
		desc = common.ToJson(d)
	}
	desc = common.Truncate(desc, 2000)
	entry := domain.SysOprLog{
		ID:        common.UUIDint64(),
		OprName:   ev.Operator,
		OprIp:     ev.Ip,
		OptAction: ev.Action,
		Entity:    ev.Entity,
		EntityId:  ev.EntityId,
		OptDesc:   desc,
		OptTime:   time.Now(),
	}
	if err := a.gormDB.Create(&entry).Error; err != nil {
		zap.L().Error("write audit log failed",
			zap.String("action", ev.Action),
			zap.String("entity", ev.Entity),
			zap.Error(err))
	}
}

func (a *Application) onAppointmentStatus(ev AppointmentStatusEvent) {
	appt := ev.Appointment
	var ntype, title string
	switch appt.Status {
	case domain.ApptWaiting:
		ntype, title = "patient_checked_in", "Patient checked in"
	case domain.ApptCancelled:
		ntype, title = "appointment_cancelled", "Appointment cancelled"
	case domain.ApptNoShow:
		ntype, title = "appointment_no_show", "Patient did not show up"
	default:
		return
	}

	var patient domain.Patient
	a.gormDB.Unscoped().Select("id", "first_name", "last_name", "mrn").First(&patient, appt.PatientId)
	msg := fmt.Sprintf("%s (%s) %s %s", patient.FullName(), patient.Mrn, appt.Date, appt.StartTime)
	if appt.Status == domain.ApptWaiting {
		msg = fmt.Sprintf("%s, token %d", msg, appt.TokenNo)
	}
	if appt.CancelReason != "" {
		msg = msg + ": " + appt.CancelReason
	}

	if a.notifier == nil {
		return
	}
	if err := a.notifier.Send(domain.Notification{
		Type:     ntype,
		Title:    title,
		Message:  msg,
		Entity:   "appointment",
		EntityId: appt.ID,
	}); err != nil {
		zap.L().Error("appointment notification failed", zap.Int64("appointment_id", appt.ID), zap.Error(err))
	}
}
