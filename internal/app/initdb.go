package app

import (
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/jeffmoIA/netdesk/internal/domain"
	"github.com/jeffmoIA/netdesk/pkg/common"
)

func (a *Application) checkSuper() {
	const superUsername = "admin"
	const defaultPassword = "netdesk"

	hashed, err := bcrypt.GenerateFromPassword([]byte(defaultPassword), bcrypt.DefaultCost)
	if err != nil {
		zap.L().Error("failed to hash default password", zap.Error(err))
		return
	}

	var operator domain.SysOpr
	err = a.gormDB.Where("username = ?", superUsername).First(&operator).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := a.gormDB.Create(&domain.SysOpr{
			ID:        common.UUIDint64(),
			Realname:  "administrator",
			Email:     "N/A",
			Username:  superUsername,
			Password:  string(hashed),
			Level:     "super",
			Status:    common.ENABLED,
			Remark:    "super",
			LastLogin: time.Now(),
		}).Error; err != nil {
			zap.L().Error("failed to create default super admin", zap.Error(err))
		} else {
			zap.L().Info("initialized default super admin account", zap.String("username", superUsername))
		}
		return
	case err != nil:
		zap.L().Error("failed to query super admin", zap.Error(err))
		return
	}

	resetPassword := strings.TrimSpace(operator.Password) == ""
	resetLevel := !strings.EqualFold(operator.Level, "super")
	resetStatus := !strings.EqualFold(operator.Status, common.ENABLED)

	if !resetPassword && !resetLevel && !resetStatus {
		return
	}

	updates := map[string]interface{}{
		"updated_at": time.Now(),
	}
	if resetPassword {
		updates["password"] = string(hashed)
	}
	if resetLevel {
		updates["level"] = "super"
	}
	if resetStatus {
		updates["status"] = common.ENABLED
	}

	if err := a.gormDB.Model(&domain.SysOpr{}).Where("id = ?", operator.ID).Updates(updates).Error; err != nil {
		zap.L().Error("failed to repair super admin account", zap.Error(err))
		return
	}

	zap.L().Warn("repaired default super admin account",
		zap.String("username", superUsername),
		zap.Bool("passwordReset", resetPassword),
		zap.Bool("levelReset", resetLevel),
		zap.Bool("statusEnabled", resetStatus))
}

// defaultSettings are the tunables exposed through sys_config.
var defaultSettings = []domain.SysConfig{
	{Sort: 1, Type: "scheduler", Name: "max_workers", Value: "25", Remark: "Concurrent workers per scheduler sweep"},
	{Sort: 2, Type: "scheduler", Name: "backup_enabled", Value: "true", Remark: "Allow config_backup schedulers to run"},
	{Sort: 3, Type: "notify", Name: "default_recipients", Value: "", Remark: "Comma separated notification recipients"},
	{Sort: 4, Type: "system", Name: "oprlog_retention_days", Value: "365", Remark: "Days to keep operator logs"},
}

func (a *Application) checkSettings() {
	for _, setting := range defaultSettings {
		var count int64
		a.gormDB.Model(&domain.SysConfig{}).
			Where("type = ? and name = ?", setting.Type, setting.Name).
			Count(&count)

		if count == 0 {
			a.gormDB.Create(&domain.SysConfig{
				Sort:   setting.Sort,
				Type:   setting.Type,
				Name:   setting.Name,
				Value:  setting.Value,
				Remark: setting.Remark,
			})
			zap.L().Info("initialized config",
				zap.String("key", setting.Type+"."+setting.Name),
				zap.String("default", setting.Value))
		}
	}
}

// checkSchedulers initializes default scheduled tasks
func (a *Application) checkSchedulers() {
	defaultSchedulers := []domain.NetScheduler{
		{
			Name:     "Device Latency Check",
			TaskType: "latency_check",
			Interval: 300, // 5 minutes
			Status:   "enabled",
			Remark:   "Periodically checks reachability of all active devices",
		},
		{
			Name:     "SNMP Model Probe",
			TaskType: "snmp_model",
			Interval: 3600, // 1 hour
			Status:   "enabled",
			Remark:   "Periodically probes devices via SNMP to update device model",
		},
		{
			Name:     "API Probe (Mikrotik)",
			TaskType: "api_probe",
			Interval: 3600, // 1 hour
			Status:   "enabled",
			Remark:   "Periodically verifies RouterOS API access and refreshes identity",
		},
		{
			Name:     "Configuration Backup",
			TaskType: "config_backup",
			Interval: 86400, // daily
			Status:   "enabled",
			Remark:   "Periodically fetches full configuration exports",
		},
	}

	for _, sched := range defaultSchedulers {
		var count int64
		a.gormDB.Model(&domain.NetScheduler{}).
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
