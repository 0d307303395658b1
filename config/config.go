package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

type SystemConfig struct {
	Appid    string `yaml:"appid"`
	Location string `yaml:"location"`
	Workdir  string `yaml:"workdir"`
	Debug    bool   `yaml:"debug"`
}

type WebConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	JwtSecret string `yaml:"jwt_secret"`
}

type DatabaseConfig struct {
	Type     string `yaml:"type"` // sqlite or postgres
	Path     string `yaml:"path"` // sqlite file path
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Passwd   string `yaml:"passwd"`
	Debug    bool   `yaml:"debug"`
	MaxConn  int    `yaml:"max_conn"`
	IdleConn int    `yaml:"idle_conn"`
}

type LoggerConfig struct {
	Mode       string `yaml:"mode"` // development or production
	FileEnable bool   `yaml:"file_enable"`
	Filename   string `yaml:"filename"`
}

type SmtpConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

type MikrotikConfig struct {
	ApiPort        int `yaml:"api_port"`        // RouterOS API port
	ConnectTimeout int `yaml:"connect_timeout"` // seconds
	ProbeTimeout   int `yaml:"probe_timeout"`   // seconds
}

type BridgeConfig struct {
	Workers    int `yaml:"workers"`
	QueueDepth int `yaml:"queue_depth"`
}

type AppConfig struct {
	System   SystemConfig   `yaml:"system"`
	Web      WebConfig      `yaml:"web"`
	Database DatabaseConfig `yaml:"database"`
	Logger   LoggerConfig   `yaml:"logger"`
	Smtp     SmtpConfig     `yaml:"smtp"`
	Mikrotik MikrotikConfig `yaml:"mikrotik"`
	Bridge   BridgeConfig   `yaml:"bridge"`
	// SecretKey protects device credentials at rest.
	SecretKey string `yaml:"secret_key"`
}

func DefaultConfig() *AppConfig {
	return &AppConfig{
		System: SystemConfig{
			Appid:    "netdesk",
			Location: "America/Caracas",
			Workdir:  "/var/netdesk",
		},
		Web: WebConfig{
			Host:      "0.0.0.0",
			Port:      1816,
			JwtSecret: "9b6de5cc-netdesk-0f57-4a29",
		},
		Database: DatabaseConfig{
			Type:     "sqlite",
			Path:     "netdesk.db",
			Host:     "127.0.0.1",
			Port:     5432,
			Name:     "netdesk",
			User:     "postgres",
			MaxConn:  50,
			IdleConn: 10,
		},
		Logger: LoggerConfig{
			Mode:     "development",
			Filename: "/var/netdesk/netdesk.log",
		},
		Smtp: SmtpConfig{
			Host: "smtp.office365.com",
			Port: 587,
		},
		Mikrotik: MikrotikConfig{
			ApiPort:        8728,
			ConnectTimeout: 10,
			ProbeTimeout:   3,
		},
		Bridge: BridgeConfig{
			Workers:    16,
			QueueDepth: 256,
		},
		SecretKey: "netdesk-dev-secret",
	}
}

// LoadConfig reads the yaml file at path (when it exists) over the defaults
// and then applies NETDESK_* environment overrides.
func LoadConfig(path string) *AppConfig {
	cfg := DefaultConfig()

	if path != "" {
		if data, err := os.ReadFile(filepath.Clean(path)); err == nil {
			_ = yaml.Unmarshal(data, cfg)
		}
	}

	setEnvString(&cfg.System.Workdir, "NETDESK_WORKDIR")
	setEnvString(&cfg.Database.Type, "NETDESK_DB_TYPE")
	setEnvString(&cfg.Database.Path, "NETDESK_DB_PATH")
	setEnvString(&cfg.Database.Host, "NETDESK_DB_HOST")
	setEnvInt(&cfg.Database.Port, "NETDESK_DB_PORT")
	setEnvString(&cfg.Database.Name, "NETDESK_DB_NAME")
	setEnvString(&cfg.Database.User, "NETDESK_DB_USER")
	setEnvString(&cfg.Database.Passwd, "NETDESK_DB_PASSWD")
	setEnvString(&cfg.Web.Host, "NETDESK_WEB_HOST")
	setEnvInt(&cfg.Web.Port, "NETDESK_WEB_PORT")
	setEnvString(&cfg.Web.JwtSecret, "NETDESK_WEB_SECRET")
	setEnvString(&cfg.SecretKey, "NETDESK_SECRET_KEY")
	setEnvString(&cfg.Smtp.Host, "NETDESK_SMTP_HOST")
	setEnvInt(&cfg.Smtp.Port, "NETDESK_SMTP_PORT")
	setEnvString(&cfg.Smtp.Username, "NETDESK_SMTP_USERNAME")
	setEnvString(&cfg.Smtp.Password, "NETDESK_SMTP_PASSWORD")

	return cfg
}

func setEnvString(dst *string, key string) {
	if val := os.Getenv(key); val != "" {
		*dst = val
	}
}

func setEnvInt(dst *int, key string) {
	if val := os.Getenv(key); val != "" {
		*dst = cast.ToInt(val)
	}
}
