package app

import (
	"context"
	"os"
	"runtime/debug"
	"time"
	_ "time/tzdata"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/gorm"

	"github.com/jeffmoIA/netdesk/config"
	"github.com/jeffmoIA/netdesk/internal/bridge"
	"github.com/jeffmoIA/netdesk/internal/device"
	"github.com/jeffmoIA/netdesk/internal/domain"
	"github.com/jeffmoIA/netdesk/internal/mailer"
	"github.com/jeffmoIA/netdesk/internal/mikrotik"
	"github.com/jeffmoIA/netdesk/internal/nodes"
	"github.com/jeffmoIA/netdesk/internal/reports"
	"github.com/jeffmoIA/netdesk/internal/secrets"
	"github.com/jeffmoIA/netdesk/pkg/metrics"
)

type Application struct {
	appConfig     *config.AppConfig
	gormDB        *gorm.DB
	sched         *cron.Cron
	configManager *ConfigManager

	msgBridge   *bridge.Bridge
	deviceSvc   *device.Service
	mikrotikSvc *mikrotik.Service
	nodeSvc     *nodes.Service
	mailerSvc   *mailer.Service
	reportSvc   *reports.Service
}

// Ensure Application implements all interfaces
var (
	_ DBProvider        = (*Application)(nil)
	_ ConfigProvider    = (*Application)(nil)
	_ SettingsProvider  = (*Application)(nil)
	_ SchedulerProvider = (*Application)(nil)
	_ AppContext        = (*Application)(nil)
)

func NewApplication(appConfig *config.AppConfig) *Application {
	return &Application{appConfig: appConfig}
}

func (a *Application) Config() *config.AppConfig {
	return a.appConfig
}

func (a *Application) DB() *gorm.DB {
	return a.gormDB
}

// OverrideDB replaces the application's database handle (used in tests).
func (a *Application) OverrideDB(db *gorm.DB) {
	a.gormDB = db
}

func (a *Application) Init(cfg *config.AppConfig) {
	loc, err := time.LoadLocation(cfg.System.Location)
	if err != nil {
		zap.S().Error("timezone config error")
	} else {
		time.Local = loc
	}

	// Initialize zap logger
	var zapConfig zap.Config
	if cfg.Logger.Mode == "production" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}

	var logger *zap.Logger
	if cfg.Logger.FileEnable {
		lumberJackLogger := &lumberjack.Logger{
			Filename:   cfg.Logger.Filename,
			MaxSize:    64,
			MaxBackups: 7,
			MaxAge:     7,
			Compress:   false,
		}

		core := zapcore.NewTee(
			zapcore.NewCore(
				zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
				zapcore.AddSync(lumberJackLogger),
				zapConfig.Level,
			),
			zapcore.NewCore(
				zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
				zapcore.AddSync(os.Stdout),
				zapConfig.Level,
			),
		)
		logger = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	} else {
		logger, err = zapConfig.Build(zap.AddCaller(), zap.AddCallerSkip(1))
		if err != nil {
			panic(err)
		}
	}

	zap.ReplaceGlobals(logger)

	// Initialize metrics with workdir convention
	if err := metrics.InitMetrics(cfg.System.Workdir); err != nil {
		zap.S().Warn("Failed to initialize metrics:", err)
	}

	// Initialize database connection
	if cfg.Database.Type == "" {
		cfg.Database.Type = "sqlite"
	}
	a.gormDB = getDatabase(cfg.Database, cfg.System.Workdir)
	zap.S().Infof("Database connection successful, type: %s", cfg.Database.Type)

	if err := a.MigrateDB(false); err != nil {
		zap.S().Errorf("database migration failed: %v", err)
	}

	// Seed records the application expects to exist
	a.checkSuper()
	a.checkSettings()
	a.checkSchedulers()

	a.configManager = NewConfigManager(a)

	// Wire domain services around the shared database handle
	box := secrets.NewBox(cfg.SecretKey)
	a.deviceSvc = device.NewService(a.gormDB, box)
	a.nodeSvc = nodes.NewService(a.gormDB)
	a.mailerSvc = mailer.NewService(a.gormDB, cfg.Smtp)
	a.reportSvc = reports.NewService(a.deviceSvc, a.nodeSvc)

	connector := mikrotik.NewAPIConnector(time.Duration(cfg.Mikrotik.ConnectTimeout) * time.Second)
	a.mikrotikSvc = mikrotik.NewService(a.deviceSvc, connector, mikrotik.NewPingProber(), a.buildMikrotikConfig(cfg))

	a.msgBridge, err = bridge.New(cfg.Bridge.Workers, cfg.Bridge.QueueDepth)
	if err != nil {
		zap.S().Errorf("bridge init failed: %v", err)
	}

	a.initJob()
}

// buildMikrotikConfig combines the static network tunables with the
// operator-adjustable sweep concurrency from sys_config.
func (a *Application) buildMikrotikConfig(cfg *config.AppConfig) mikrotik.Config {
	return mikrotik.Config{
		ApiPort:         cfg.Mikrotik.ApiPort,
		ConnectTimeout:  time.Duration(cfg.Mikrotik.ConnectTimeout) * time.Second,
		ProbeTimeout:    time.Duration(cfg.Mikrotik.ProbeTimeout) * time.Second,
		MaxProbeWorkers: int(a.GetSettingsInt64Value("scheduler", "max_workers")),
	}
}

func (a *Application) MigrateDB(track bool) (err error) {
	defer func() {
		if err1 := recover(); err1 != nil {
			if os.Getenv("GO_DEBUG_TRACE") != "" {
				debug.PrintStack()
			}
			err2, okAssert := err1.(error)
			if okAssert {
				err = err2
				zap.S().Error(err2.Error())
			}
		}
	}()
	if track {
		if err := a.gormDB.Debug().Migrator().AutoMigrate(domain.Tables...); err != nil {
			zap.S().Error(err)
		}
	} else {
		if err := a.gormDB.Migrator().AutoMigrate(domain.Tables...); err != nil {
			zap.S().Error(err)
		}
	}
	return nil
}

func (a *Application) DropAll() {
	_ = a.gormDB.Migrator().DropTable(domain.Tables...)
}

func (a *Application) InitDb() {
	_ = a.gormDB.Migrator().DropTable(domain.Tables...)
	if err := a.gormDB.Migrator().AutoMigrate(domain.Tables...); err != nil {
		zap.S().Error(err)
	}
}

// ConfigMgr returns the configuration manager
func (a *Application) ConfigMgr() *ConfigManager {
	return a.configManager
}

// Scheduler returns the cron scheduler
func (a *Application) Scheduler() *cron.Cron {
	return a.sched
}

// Bridge returns the background operation bridge
func (a *Application) Bridge() *bridge.Bridge {
	return a.msgBridge
}

func (a *Application) DeviceService() *device.Service {
	return a.deviceSvc
}

func (a *Application) MikrotikService() *mikrotik.Service {
	return a.mikrotikSvc
}

func (a *Application) NodeService() *nodes.Service {
	return a.nodeSvc
}

func (a *Application) MailerService() *mailer.Service {
	return a.mailerSvc
}

func (a *Application) ReportService() *reports.Service {
	return a.reportSvc
}

// GetSettingsStringValue retrieves a string configuration value
func (a *Application) GetSettingsStringValue(category, key string) string {
	return a.configManager.GetString(category, key)
}

// GetSettingsInt64Value retrieves an int64 configuration value
func (a *Application) GetSettingsInt64Value(category, key string) int64 {
	return a.configManager.GetInt64(category, key)
}

// GetSettingsBoolValue retrieves a boolean configuration value
func (a *Application) GetSettingsBoolValue(category, key string) bool {
	return a.configManager.GetBool(category, key)
}

// StartBackgroundJobs starts the scheduler runner
func (a *Application) StartBackgroundJobs(ctx context.Context) {
	a.StartSchedulerService(ctx)
}

// Release releases application resources
func (a *Application) Release() {
	if a.sched != nil {
		a.sched.Stop()
	}
	if a.msgBridge != nil {
		a.msgBridge.Close()
	}

	_ = metrics.Close()
	_ = zap.L().Sync()
}
