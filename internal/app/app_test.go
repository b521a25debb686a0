package app

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/medicore/hms/config"
	"github.com/medicore/hms/internal/domain"
	"github.com/medicore/hms/pkg/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T) *Application {
	t.Helper()
	cfg := *config.DefaultAppConfig
	cfg.System.Workdir = t.TempDir()
	cfg.Logger.FileEnable = false
	cfg.Database.Type = "sqlite"
	cfg.Database.Name = fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	a := NewApplication(&cfg)
	a.Init(&cfg)
	t.Cleanup(a.Release)
	return a
}

func TestSeedDefaultsIdempotent(t *testing.T) {
	a := newTestApp(t)
	a.SeedDefaults()

	var oprs int64
	a.DB().Model(&domain.SysOpr{}).Where("username = ?", SuperUsername).Count(&oprs)
	assert.Equal(t, int64(1), oprs)

	var opr domain.SysOpr
	require.NoError(t, a.DB().Where("username = ?", SuperUsername).First(&opr).Error)
	assert.True(t, common.CheckPassword(opr.Password, DefaultPassword))

	var scheds int64
	a.DB().Model(&domain.SysScheduler{}).Count(&scheds)
	assert.Equal(t, int64(len(TaskTypes)), scheds)

	var services int64
	a.DB().Model(&domain.Service{}).Count(&services)
	assert.Equal(t, int64(5), services)

	assert.Equal(t, "City General Hospital", a.GetSettingsStringValue("system", "hospital_name"))
}

func TestCheckSuperRepairsAccount(t *testing.T) {
	a := newTestApp(t)
	require.NoError(t, a.DB().Model(&domain.SysOpr{}).Where("username = ?", SuperUsername).
		Updates(map[string]interface{}{"level": domain.LevelReception, "status": common.DISABLED}).Error)

	a.checkSuper()

	var opr domain.SysOpr
	require.NoError(t, a.DB().Where("username = ?", SuperUsername).First(&opr).Error)
	assert.Equal(t, domain.LevelSuper, opr.Level)
	assert.Equal(t, common.ENABLED, opr.Status)
}

func TestCounters(t *testing.T) {
	a := newTestApp(t)

	code, err := NextCode(a.DB(), CounterMRN)
	require.NoError(t, err)
	assert.Equal(t, "MRN-000001", code)
	code, err = NextCode(a.DB(), CounterMRN)
	require.NoError(t, err)
	assert.Equal(t, "MRN-000002", code)

	v, err := NextSequence(a.DB(), QueueCounter("2024-05-02"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
	v, err = NextSequence(a.DB(), QueueCounter("2024-05-02"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)

	assert.Equal(t, "INV-000123", FormatCode("INV-", 6, 123))
	assert.Equal(t, "Q7", FormatCode("Q", 0, 7))
}

func TestSettingsSave(t *testing.T) {
	a := newTestApp(t)
	cm := a.ConfigMgr()

	assert.Equal(t, 30, cm.Appointment().SlotMinutes)
	assert.Equal(t, "09:00", cm.Appointment().WorkStart)

	require.NoError(t, a.SaveSettings(map[string]string{
		"appointment.slot_minutes": "15",
		"billing.tax_rate":         "12.5",
	}))
	assert.Equal(t, 15, cm.Appointment().SlotMinutes)
	assert.Equal(t, "12.5", cm.GetDecimal("billing", "tax_rate").String())
	assert.Equal(t, "12.5", cm.Billing().TaxRate)
	assert.Equal(t, 15, cm.Billing().InvoiceDueDays)

	assert.Error(t, a.SaveSettings(map[string]string{"appointment.slot_minutes": "ten"}))
	assert.Error(t, a.SaveSettings(map[string]string{"appointment.work_end": "5pm"}))
	assert.ErrorIs(t, a.SaveSettings(map[string]string{"system.color": "blue"}), ErrUnknownSetting)
	assert.Equal(t, 15, cm.Appointment().SlotMinutes)
}

func TestDocStore(t *testing.T) {
	a := newTestApp(t)
	store := a.DocStore()

	require.NoError(t, store.Put("k1", []byte("scan")))
	data, err := store.Get("k1")
	require.NoError(t, err)
	assert.Equal(t, []byte("scan"), data)

	require.NoError(t, store.Delete("k1"))
	_, err = store.Get("k1")
	assert.ErrorIs(t, err, ErrBlobNotFound)
}

func seedPatientDoctor(t *testing.T, a *Application) (domain.Patient, domain.Doctor) {
	t.Helper()
	p := domain.Patient{ID: common.UUIDint64(), Mrn: "MRN-T01", FirstName: "Anita", LastName: "Rao", Email: "anita@example.org", Status: domain.PatientActive}
	d := domain.Doctor{ID: common.UUIDint64(), Name: "Dr. Mehta", Status: domain.DoctorActive, ConsultationFee: decimal.NewFromInt(500)}
	require.NoError(t, a.DB().Create(&p).Error)
	require.NoError(t, a.DB().Create(&d).Error)
	return p, d
}

func schedulerID(t *testing.T, a *Application, task string) int64 {
	var s domain.SysScheduler
	require.NoError(t, a.DB().Where("task_type = ?", task).First(&s).Error)
	return s.ID
}

func TestNoShowSweep(t *testing.T) {
	a := newTestApp(t)
	p, d := seedPatientDoctor(t, a)
	yesterday := time.Now().AddDate(0, 0, -1).Format(common.DateLayout)
	past := domain.Appointment{ID: common.UUIDint64(), PatientId: p.ID, DoctorId: d.ID, Date: yesterday, StartTime: "10:00", Duration: 30, Status: domain.ApptScheduled}
	today := domain.Appointment{ID: common.UUIDint64(), PatientId: p.ID, DoctorId: d.ID, Date: common.Today(), StartTime: "23:30", Duration: 30, Status: domain.ApptScheduled}
	require.NoError(t, a.DB().Create(&past).Error)
	require.NoError(t, a.DB().Create(&today).Error)

	id := schedulerID(t, a, TaskNoShowSweep)
	require.NoError(t, a.RunSchedulerNow(id))

	var got domain.Appointment
	require.NoError(t, a.DB().First(&got, past.ID).Error)
	assert.Equal(t, domain.ApptNoShow, got.Status)
	require.NoError(t, a.DB().First(&got, today.ID).Error)
	assert.Equal(t, domain.ApptScheduled, got.Status)

	var notes int64
	a.DB().Model(&domain.Notification{}).Where("type = ? and entity_id = ?", "appointment_no_show", past.ID).Count(&notes)
	assert.Equal(t, int64(1), notes)

	var logs int64
	a.DB().Model(&domain.SysOprLog{}).Where("entity = ? and entity_id = ?", "appointment", past.ID).Count(&logs)
	assert.Equal(t, int64(1), logs)

	var s domain.SysScheduler
	require.NoError(t, a.DB().First(&s, id).Error)
	assert.Equal(t, "success", s.LastResult)
	assert.Contains(t, s.LastMessage, "1 appointments")
	assert.True(t, s.NextRunAt.After(time.Now()))
}

func TestAppointmentReminder(t *testing.T) {
	a := newTestApp(t)
	p, d := seedPatientDoctor(t, a)
	soon := time.Now().Add(2 * time.Hour).Truncate(time.Minute)
	appt := domain.Appointment{
		ID: common.UUIDint64(), PatientId: p.ID, DoctorId: d.ID,
		Date: soon.Format(common.DateLayout), StartTime: soon.Format(common.ClockLayout),
		Duration: 30, Status: domain.ApptScheduled,
	}
	require.NoError(t, a.DB().Create(&appt).Error)

	id := schedulerID(t, a, TaskAppointmentReminder)
	require.NoError(t, a.RunSchedulerNow(id))
	require.NoError(t, a.RunSchedulerNow(id))

	var notes []domain.Notification
	require.NoError(t, a.DB().Where("type = ?", "appointment_reminder").Find(&notes).Error)
	require.Len(t, notes, 1)
	assert.Equal(t, p.Email, notes[0].Recipient)
	assert.Contains(t, notes[0].Message, "Dr. Mehta")

	var got domain.Appointment
	require.NoError(t, a.DB().First(&got, appt.ID).Error)
	assert.True(t, got.ReminderSent)
}

func TestFollowUpAndInvoiceOverdue(t *testing.T) {
	a := newTestApp(t)
	p, d := seedPatientDoctor(t, a)
	lastWeek := time.Now().AddDate(0, 0, -7).Format(common.DateLayout)

	overdue := domain.FollowUp{ID: common.UUIDint64(), PatientId: p.ID, DoctorId: d.ID, DueDate: lastWeek, Status: domain.FollowUpPending}
	dueToday := domain.FollowUp{ID: common.UUIDint64(), PatientId: p.ID, DoctorId: d.ID, DueDate: common.Today(), Status: domain.FollowUpPending, Reason: "BP check"}
	require.NoError(t, a.DB().Create(&overdue).Error)
	require.NoError(t, a.DB().Create(&dueToday).Error)

	require.NoError(t, a.RunSchedulerNow(schedulerID(t, a, TaskFollowUpDue)))
	require.NoError(t, a.RunSchedulerNow(schedulerID(t, a, TaskFollowUpDue)))

	var f domain.FollowUp
	require.NoError(t, a.DB().First(&f, overdue.ID).Error)
	assert.Equal(t, domain.FollowUpMissed, f.Status)
	require.NoError(t, a.DB().First(&f, dueToday.ID).Error)
	assert.Equal(t, domain.FollowUpPending, f.Status)

	var dueNotes int64
	a.DB().Model(&domain.Notification{}).Where("type = ?", "followup_due").Count(&dueNotes)
	assert.Equal(t, int64(1), dueNotes, "due reminders are raised once a day")

	inv := domain.Invoice{ID: common.UUIDint64(), Number: "INV-T1", PatientId: p.ID, DueDate: lastWeek,
		Status: domain.InvoicePending, TotalAmount: decimal.NewFromInt(100)}
	require.NoError(t, a.DB().Create(&inv).Error)
	require.NoError(t, a.RunSchedulerNow(schedulerID(t, a, TaskInvoiceOverdue)))
	require.NoError(t, a.RunSchedulerNow(schedulerID(t, a, TaskInvoiceOverdue)))

	var invNotes int64
	a.DB().Model(&domain.Notification{}).Where("type = ?", "invoice_overdue").Count(&invNotes)
	assert.Equal(t, int64(1), invNotes)
}

func TestMaintenanceDue(t *testing.T) {
	a := newTestApp(t)
	soon := time.Now().AddDate(0, 0, 3).Format(common.DateLayout)
	later := time.Now().AddDate(0, 0, 30).Format(common.DateLayout)
	require.NoError(t, a.DB().Create(&domain.Equipment{ID: common.UUIDint64(), Name: "Ventilator", SerialNumber: "V-1", Status: domain.EquipmentOperational, NextMaintenance: soon}).Error)
	require.NoError(t, a.DB().Create(&domain.Equipment{ID: common.UUIDint64(), Name: "ECG", SerialNumber: "E-1", Status: domain.EquipmentOperational, NextMaintenance: later}).Error)
	require.NoError(t, a.DB().Create(&domain.Equipment{ID: common.UUIDint64(), Name: "Old X-Ray", SerialNumber: "X-0", Status: domain.EquipmentRetired, NextMaintenance: soon}).Error)

	require.NoError(t, a.RunSchedulerNow(schedulerID(t, a, TaskMaintenanceDue)))

	var notes []domain.Notification
	require.NoError(t, a.DB().Where("type = ?", "maintenance_due").Find(&notes).Error)
	require.Len(t, notes, 1)
	assert.Contains(t, notes[0].Message, "Ventilator")
}

func TestUnknownTaskRecordsFailure(t *testing.T) {
	a := newTestApp(t)
	s := domain.SysScheduler{Name: "bogus", TaskType: "backup", Interval: 60, Status: common.ENABLED}
	require.NoError(t, a.DB().Create(&s).Error)
	assert.ErrorIs(t, a.RunSchedulerNow(s.ID), ErrUnknownTask)

	require.NoError(t, a.DB().First(&s, s.ID).Error)
	assert.Equal(t, "failed", s.LastResult)
}

func TestClearExpireData(t *testing.T) {
	a := newTestApp(t)
	old := time.Now().AddDate(-2, 0, 0)
	require.NoError(t, a.DB().Create(&domain.SysOprLog{ID: common.UUIDint64(), OprName: "admin", OptAction: "x", OptTime: old}).Error)
	require.NoError(t, a.DB().Create(&domain.SysOprLog{ID: common.UUIDint64(), OprName: "admin", OptAction: "y", OptTime: time.Now()}).Error)
	require.NoError(t, a.DB().Create(&domain.Notification{ID: common.UUIDint64(), Type: "t", IsRead: true, CreatedAt: old}).Error)
	require.NoError(t, a.DB().Create(&domain.Notification{ID: common.UUIDint64(), Type: "t", IsRead: false, CreatedAt: old}).Error)

	a.SchedClearExpireData()

	var logs, notes int64
	a.DB().Model(&domain.SysOprLog{}).Count(&logs)
	a.DB().Model(&domain.Notification{}).Count(&notes)
	assert.Equal(t, int64(1), logs)
	assert.Equal(t, int64(1), notes, "unread notifications are kept")
}

func TestAuditDetailKeepsUtf8(t *testing.T) {
	a := newTestApp(t)
	a.Publish(TopicAudit, AuditEvent{
		Operator: "admin",
		Action:   "update",
		Entity:   "invoice",
		EntityId: 7,
		Detail:   "Radiografía de tórax " + strings.Repeat("ñ", 2500),
	})
	var entry domain.SysOprLog
	require.NoError(t, a.DB().Where("entity = ? AND entity_id = ?", "invoice", 7).First(&entry).Error)
	assert.True(t, utf8.ValidString(entry.OptDesc))
	assert.Equal(t, 2000, utf8.RuneCountInString(entry.OptDesc))
	assert.True(t, strings.HasPrefix(entry.OptDesc, "Radiografía de tórax ñ"))
}

func TestOverdueNoticesRetryAfterFailedSend(t *testing.T) {
	a := newTestApp(t)
	p, d := seedPatientDoctor(t, a)
	lastWeek := time.Now().AddDate(0, 0, -7).Format(common.DateLayout)

	f := domain.FollowUp{ID: common.UUIDint64(), PatientId: p.ID, DoctorId: d.ID, DueDate: lastWeek, Status: domain.FollowUpPending}
	inv := domain.Invoice{ID: common.UUIDint64(), Number: "INV-T2", PatientId: p.ID, DueDate: lastWeek,
		Status: domain.InvoicePending, TotalAmount: decimal.NewFromInt(100)}
	require.NoError(t, a.DB().Create(&f).Error)
	require.NoError(t, a.DB().Create(&inv).Error)

	// notices cannot be stored while the table is missing
	require.NoError(t, a.DB().Migrator().DropTable(&domain.Notification{}))
	require.NoError(t, a.RunSchedulerNow(schedulerID(t, a, TaskFollowUpDue)))
	require.NoError(t, a.RunSchedulerNow(schedulerID(t, a, TaskInvoiceOverdue)))

	var gotF domain.FollowUp
	require.NoError(t, a.DB().First(&gotF, f.ID).Error)
	assert.Equal(t, domain.FollowUpPending, gotF.Status)
	var gotInv domain.Invoice
	require.NoError(t, a.DB().First(&gotInv, inv.ID).Error)
	assert.False(t, gotInv.OverdueNotice)

	require.NoError(t, a.DB().AutoMigrate(&domain.Notification{}))
	require.NoError(t, a.RunSchedulerNow(schedulerID(t, a, TaskFollowUpDue)))
	require.NoError(t, a.RunSchedulerNow(schedulerID(t, a, TaskInvoiceOverdue)))

	require.NoError(t, a.DB().First(&gotF, f.ID).Error)
	assert.Equal(t, domain.FollowUpMissed, gotF.Status)
	require.NoError(t, a.DB().First(&gotInv, inv.ID).Error)
	assert.True(t, gotInv.OverdueNotice)
	var notes int64
	a.DB().Model(&domain.Notification{}).Where("entity_id IN ?", []int64{f.ID, inv.ID}).Count(&notes)
	assert.Equal(t, int64(2), notes)
}

func TestNotificationRecordsDeliveredChannels(t *testing.T) {
	a := newTestApp(t)

	var hits int32
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ok.Close()
	var failed int32
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&failed, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer broken.Close()

	// webhook disabled in settings: in-app only
	plain, err := NewNotifier(a.DB(), config.NotifyConfig{WebhookURL: ok.URL, Workers: 1}, a.ConfigMgr())
	require.NoError(t, err)
	defer plain.Release()
	require.NoError(t, plain.Send(domain.Notification{ID: 9001, Type: "test", Title: "a"}))
	var note domain.Notification
	require.NoError(t, a.DB().First(&note, 9001).Error)
	assert.Equal(t, domain.ChannelInApp, note.Channel)
	assert.Empty(t, note.DeliveredVia)

	require.NoError(t, a.SaveSettings(map[string]string{"notification.webhook_enabled": "true"}))

	hooked, err := NewNotifier(a.DB(), config.NotifyConfig{WebhookURL: ok.URL, Workers: 1}, a.ConfigMgr())
	require.NoError(t, err)
	defer hooked.Release()
	require.NoError(t, hooked.Send(domain.Notification{ID: 9002, Type: "test", Title: "b"}))
	assert.Eventually(t, func() bool {
		var n domain.Notification
		return a.DB().First(&n, 9002).Error == nil && n.DeliveredVia == domain.ChannelWebhook
	}, 5*time.Second, 20*time.Millisecond)
	require.NoError(t, a.DB().First(&note, 9002).Error)
	assert.Equal(t, domain.ChannelInApp+","+domain.ChannelWebhook, note.Channel)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))

	failing, err := NewNotifier(a.DB(), config.NotifyConfig{WebhookURL: broken.URL, Workers: 1}, a.ConfigMgr())
	require.NoError(t, err)
	defer failing.Release()
	require.NoError(t, failing.Send(domain.Notification{ID: 9003, Type: "test", Title: "c"}))
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&failed) == 1 }, 5*time.Second, 20*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, a.DB().First(&note, 9003).Error)
	assert.Equal(t, domain.ChannelInApp+","+domain.ChannelWebhook, note.Channel)
	assert.Empty(t, note.DeliveredVia)
}
