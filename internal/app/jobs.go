package app

import (
	"os"
	"time"

	"github.com/medicore/hms/internal/domain"
	"github.com/medicore/hms/pkg/metrics"
	"github.com/robfig/cron/v3"
	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/mem"
	"github.com/shirou/gopsutil/process"
	"go.uber.org/zap"
)

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

func (a *Application) initJob() {
	loc, _ := time.LoadLocation(a.appConfig.System.Location)
	if loc == nil {
		loc = time.Local
	}
	a.sched = cron.New(cron.WithLocation(loc), cron.WithParser(cronParser))

	var err error
	_, err = a.sched.AddFunc("@every 30s", func() {
		go a.SchedSystemMonitorTask()
		go a.SchedProcessMonitorTask()
	})
	if err != nil {
		zap.S().Errorf("init job error %s", err.Error())
	}

	_, err = a.sched.AddFunc("@daily", a.SchedClearExpireData)
	if err != nil {
		zap.S().Errorf("init job error %s", err.Error())
	}

	a.sched.Start()
}

// SchedSystemMonitorTask system monitor
func (a *Application) SchedSystemMonitorTask() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()

	_cpuuse, err := cpu.Percent(0, false)
	if err == nil && len(_cpuuse) > 0 {
		metrics.SetGauge("system_cpuuse", int64(_cpuuse[0]*100)) // percentage * 100
	}

	_meminfo, err := mem.VirtualMemory()
	if err == nil {
		metrics.SetGauge("system_memuse", int64(_meminfo.Used/1024/1024))
	}
}

// SchedProcessMonitorTask app process monitor
func (a *Application) SchedProcessMonitorTask() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return
	}

	cpuuse, err := p.CPUPercent()
	if err == nil {
		metrics.SetGauge("hms_cpuuse", int64(cpuuse*100))
	}

	meminfo, err := p.MemoryInfo()
	if err == nil {
		metrics.SetGauge("hms_memuse", int64(meminfo.RSS/1024/1024))
	}
}

// SchedClearExpireData purges audit entries and read notifications past
// their retention.
func (a *Application) SchedClearExpireData() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()

	auditDays := a.ConfigMgr().GetInt("audit", "retention_days")
	if auditDays <= 0 {
		auditDays = 365
	}
	res := a.gormDB.
		Where("opt_time < ?", time.Now().Add(-time.Hour*24*time.Duration(auditDays))).
		Delete(&domain.SysOprLog{})
	if res.Error != nil {
		zap.L().Error("purge audit log failed", zap.Error(res.Error))
	}

	noteDays := a.ConfigMgr().GetInt("notification", "retention_days")
	if noteDays <= 0 {
		noteDays = 90
	}
	res2 := a.gormDB.
		Where("is_read = ? and created_at < ?", true, time.Now().Add(-time.Hour*24*time.Duration(noteDays))).
		Delete(&domain.Notification{})
	if res2.Error != nil {
		zap.L().Error("purge notifications failed", zap.Error(res2.Error))
	}

	zap.L().Info("expired data purged",
		zap.Int64("audit_rows", res.RowsAffected),
		zap.Int64("notification_rows", res2.RowsAffected))
}
