package app

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jeffmoIA/netdesk/internal/domain"
)

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
				a.runSchedulers(ctx)
			}
		}
	}()
}

// runSchedulers executes enabled schedulers whose next run is due
func (a *Application) runSchedulers(ctx context.Context) {
	var schedulers []domain.NetScheduler
	a.gormDB.Where("status = ?", "enabled").Find(&schedulers)
	now := time.Now()
	for _, sched := range schedulers {
		if sched.NextRunAt.IsZero() || now.After(sched.NextRunAt) || now.Equal(sched.NextRunAt) {
			a.dispatchScheduler(ctx, &sched)
			a.gormDB.Model(&domain.NetScheduler{}).Where("id = ?", sched.ID).
				Update("next_run_at", now.Add(time.Duration(sched.Interval)*time.Second))
		}
	}
}

func (a *Application) dispatchScheduler(ctx context.Context, sched *domain.NetScheduler) {
	switch sched.TaskType {
	case "latency_check":
		a.runLatencyCheckScheduler(ctx, sched)
	case "snmp_model":
		a.runSnmpModelScheduler(ctx, sched)
	case "api_probe":
		a.runApiProbeScheduler(ctx, sched)
	case "config_backup":
		a.runConfigBackupScheduler(ctx, sched)
	default:
		a.recordSchedulerRun(sched, "skipped", "unsupported task type "+sched.TaskType)
	}
}

// RunSchedulerNow triggers a scheduler execution immediately by ID
func (a *Application) RunSchedulerNow(id int64) error {
	var sched domain.NetScheduler
	if err := a.gormDB.First(&sched, id).Error; err != nil {
		return err
	}

	a.dispatchScheduler(context.Background(), &sched)

	now := time.Now()
	a.gormDB.Model(&domain.NetScheduler{}).Where("id = ?", sched.ID).Updates(map[string]interface{}{
		"last_run_at": now,
		"next_run_at": now.Add(time.Duration(sched.Interval) * time.Second),
	})
	return nil
}

func (a *Application) recordSchedulerRun(sched *domain.NetScheduler, result, message string) {
	a.gormDB.Model(&domain.NetScheduler{}).Where("id = ?", sched.ID).Updates(map[string]interface{}{
		"last_run_at":  time.Now(),
		"last_result":  result,
		"last_message": message,
	})
}

// runLatencyCheckScheduler sweeps all active devices for reachability
func (a *Application) runLatencyCheckScheduler(ctx context.Context, sched *domain.NetScheduler) {
	report, err := a.mikrotikSvc.BulkProbe(ctx)
	if err != nil {
		zap.L().Error("latency check sweep failed", zap.Error(err))
		a.recordSchedulerRun(sched, "failed", err.Error())
		return
	}

	zap.L().Info("latency check completed",
		zap.Int("total", report.TotalChecked),
		zap.Int("reachable", report.Reachable))
	a.recordSchedulerRun(sched, "success", "device reachability updated")
}

// runSnmpModelScheduler probes devices via SNMP to refresh the model field
func (a *Application) runSnmpModelScheduler(ctx context.Context, sched *domain.NetScheduler) {
	zap.L().Info("runSnmpModelScheduler invoked", zap.Int64("scheduler_id", sched.ID), zap.String("name", sched.Name))
	devs, err := a.deviceSvc.FindByStatus(ctx, domain.DeviceStatusActive)
	if err != nil {
		a.recordSchedulerRun(sched, "failed", err.Error())
		return
	}

	maxWorkers := a.schedulerWorkers()
	sem := make(chan struct{}, maxWorkers)
	var wg sync.WaitGroup

	for _, dev := range devs {
		// only probe devices with an SNMP community configured
		if dev.SnmpCommunity == "" {
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(id int64, ip string) {
			defer wg.Done()
			defer func() { <-sem }()

			res := a.mikrotikSvc.SnmpProbeModel(ctx, id)
			if !res.OK {
				zap.L().Debug("snmp probe failed", zap.String("ip", ip), zap.String("msg", res.Message))
				return
			}
			zap.L().Info("device model updated", zap.String("ip", ip), zap.String("msg", res.Message))
		}(dev.ID, dev.Ipaddr)
	}
	wg.Wait()

	a.recordSchedulerRun(sched, "success", "SNMP model probe completed")
}

// runApiProbeScheduler verifies RouterOS API access on devices with credentials
func (a *Application) runApiProbeScheduler(ctx context.Context, sched *domain.NetScheduler) {
	zap.L().Info("runApiProbeScheduler invoked", zap.Int64("scheduler_id", sched.ID), zap.String("name", sched.Name))
	devs, err := a.deviceSvc.FindByStatus(ctx, domain.DeviceStatusActive)
	if err != nil {
		a.recordSchedulerRun(sched, "failed", err.Error())
		return
	}

	maxWorkers := a.schedulerWorkers()
	sem := make(chan struct{}, maxWorkers)
	var wg sync.WaitGroup

	for _, dev := range devs {
		if !dev.HasCredentials() {
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(id int64, ip string) {
			defer wg.Done()
			defer func() { <-sem }()

			res := a.mikrotikSvc.ProbeAPI(ctx, id)
			if !res.OK {
				zap.L().Warn("api probe failed", zap.String("ip", ip), zap.String("msg", res.Message))
				return
			}
			zap.L().Info("api probe ok", zap.String("ip", ip), zap.String("msg", res.Message))
		}(dev.ID, dev.Ipaddr)
	}
	wg.Wait()

	a.recordSchedulerRun(sched, "success", "API probe completed")
}

// runConfigBackupScheduler fetches full exports from reachable devices
func (a *Application) runConfigBackupScheduler(ctx context.Context, sched *domain.NetScheduler) {
	if !a.GetSettingsBoolValue("scheduler", "backup_enabled") {
		a.recordSchedulerRun(sched, "skipped", "backups disabled in settings")
		return
	}

	devs, err := a.deviceSvc.ListReachable(ctx)
	if err != nil {
		a.recordSchedulerRun(sched, "failed", err.Error())
		return
	}

	maxWorkers := a.schedulerWorkers()
	sem := make(chan struct{}, maxWorkers)
	var wg sync.WaitGroup

	for _, dev := range devs {
		if !dev.HasCredentials() {
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(id int64, ip string) {
			defer wg.Done()
			defer func() { <-sem }()

			res, _ := a.mikrotikSvc.FetchFullExport(ctx, id)
			if !res.OK {
				zap.L().Warn("config backup failed", zap.String("ip", ip), zap.String("msg", res.Message))
				return
			}
			zap.L().Info("config backup stored", zap.String("ip", ip))
		}(dev.ID, dev.Ipaddr)
	}
	wg.Wait()

	a.recordSchedulerRun(sched, "success", "configuration backup completed")
}

func (a *Application) schedulerWorkers() int {
	const defaultMaxWorkers = 25
	maxWorkers := int(a.GetSettingsInt64Value("scheduler", "max_workers"))
	if maxWorkers <= 0 {
		maxWorkers = defaultMaxWorkers
	}
	return maxWorkers
}
