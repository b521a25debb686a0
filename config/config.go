package config

import (
	"fmt"
	"os"
	"path"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// DBConfig Database config
type DBConfig struct {
	Type     string `yaml:"type"` // postgres or sqlite
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Passwd   string `yaml:"passwd"`
	MaxConn  int    `yaml:"max_conn"`
	IdleConn int    `yaml:"idle_conn"`
	Debug    bool   `yaml:"debug"`
}

// SysConfig System config
type SysConfig struct {
	Appid    string `yaml:"appid"`
	Location string `yaml:"location"`
	Workdir  string `yaml:"workdir"`
	Debug    bool   `yaml:"debug"`
}

// WebConfig Web admin api config
type WebConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Secret   string `yaml:"secret"`
	TokenTTL int    `yaml:"token_ttl"` // hours
}

type LogConfig struct {
	Mode       string `yaml:"mode"`
	FileEnable bool   `yaml:"file_enable"`
	Filename   string `yaml:"filename"`
}

// NotifyConfig outbound notification channels, empty values disable a channel
type NotifyConfig struct {
	SmtpHost   string `yaml:"smtp_host"`
	SmtpPort   int    `yaml:"smtp_port"`
	SmtpUser   string `yaml:"smtp_user"`
	SmtpPasswd string `yaml:"smtp_passwd"`
	SmtpFrom   string `yaml:"smtp_from"`
	WebhookURL string `yaml:"webhook_url"`
	Workers    int    `yaml:"workers"`
}

type AppConfig struct {
	System   SysConfig    `yaml:"system"`
	Web      WebConfig    `yaml:"web"`
	Database DBConfig     `yaml:"database"`
	Logger   LogConfig    `yaml:"logger"`
	Notify   NotifyConfig `yaml:"notify"`
}

func (c *AppConfig) GetLogDir() string {
	return path.Join(c.System.Workdir, "logs")
}

func (c *AppConfig) GetDataDir() string {
	return path.Join(c.System.Workdir, "data")
}

func (c *AppConfig) GetBackupDir() string {
	return path.Join(c.System.Workdir, "backup")
}

// InitDirs creates the working directory layout
func (c *AppConfig) InitDirs() {
	_ = os.MkdirAll(c.GetLogDir(), 0o755)
	_ = os.MkdirAll(c.GetDataDir(), 0o755)
	_ = os.MkdirAll(c.GetBackupDir(), 0o755)
}

func setEnvValue(name string, val *string) {
	var evalue = os.Getenv(name)
	if evalue != "" {
		*val = evalue
	}
}

func setEnvBoolValue(name string, val *bool) {
	var evalue = os.Getenv(name)
	if evalue != "" {
		*val = evalue == "true" || evalue == "1" || evalue == "on"
	}
}

func setEnvIntValue(name string, val *int) {
	var evalue = os.Getenv(name)
	if evalue == "" {
		return
	}
	p, err := strconv.ParseInt(evalue, 10, 64)
	if err == nil {
		*val = int(p)
	}
}

var DefaultAppConfig = &AppConfig{
	System: SysConfig{
		Appid:    "HMS",
		Location: "Asia/Kolkata",
		Workdir:  "/var/hms",
		Debug:    true,
	},
	Web: WebConfig{
		Host:     "0.0.0.0",
		Port:     1816,
		Secret:   "7e2b3c1f9d8a4e6b0c5d2f1a3e9b8c7d",
		TokenTTL: 12,
	},
	Database: DBConfig{
		Type:     "postgres",
		Host:     "127.0.0.1",
		Port:     5432,
		Name:     "hms_v1",
		User:     "postgres",
		Passwd:   "myroot",
		MaxConn:  100,
		IdleConn: 10,
		Debug:    false,
	},
	Logger: LogConfig{
		Mode:       "development",
		FileEnable: true,
		Filename:   "/var/hms/hms.log",
	},
	Notify: NotifyConfig{
		SmtpPort: 587,
		Workers:  8,
	},
}

// LoadConfig reads the yaml config file, falling back to defaults when the
// file is missing, then applies HMS_* environment overrides.
func LoadConfig(cfile string) *AppConfig {
	if cfile == "" {
		cfile = "hms.yml"
	}
	if _, err := os.Stat(cfile); err != nil {
		cfile = "/etc/hms.yml"
	}
	cfg := new(AppConfig)
	*cfg = *DefaultAppConfig
	if data, err := os.ReadFile(cfile); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			panic(fmt.Errorf("parse config %s: %w", cfile, err))
		}
	}
	applyEnv(cfg)
	return cfg
}

func applyEnv(cfg *AppConfig) {
	setEnvValue("HMS_SYSTEM_APPID", &cfg.System.Appid)
	setEnvValue("HMS_SYSTEM_LOCATION", &cfg.System.Location)
	setEnvValue("HMS_WORKDIR", &cfg.System.Workdir)
	setEnvBoolValue("HMS_SYSTEM_DEBUG", &cfg.System.Debug)

	setEnvValue("HMS_WEB_HOST", &cfg.Web.Host)
	setEnvIntValue("HMS_WEB_PORT", &cfg.Web.Port)
	setEnvValue("HMS_WEB_SECRET", &cfg.Web.Secret)
	setEnvIntValue("HMS_WEB_TOKEN_TTL", &cfg.Web.TokenTTL)

	setEnvValue("HMS_DB_TYPE", &cfg.Database.Type)
	setEnvValue("HMS_DB_HOST", &cfg.Database.Host)
	setEnvIntValue("HMS_DB_PORT", &cfg.Database.Port)
	setEnvValue("HMS_DB_NAME", &cfg.Database.Name)
	setEnvValue("HMS_DB_USER", &cfg.Database.User)
	setEnvValue("HMS_DB_PWD", &cfg.Database.Passwd)
	setEnvIntValue("HMS_DB_MAX_CONN", &cfg.Database.MaxConn)
	setEnvIntValue("HMS_DB_IDLE_CONN", &cfg.Database.IdleConn)
	setEnvBoolValue("HMS_DB_DEBUG", &cfg.Database.Debug)

	setEnvValue("HMS_LOGGER_MODE", &cfg.Logger.Mode)
	setEnvValue("HMS_LOGGER_FILENAME", &cfg.Logger.Filename)
	setEnvBoolValue("HMS_LOGGER_FILE_ENABLE", &cfg.Logger.FileEnable)

	setEnvValue("HMS_SMTP_HOST", &cfg.Notify.SmtpHost)
	setEnvIntValue("HMS_SMTP_PORT", &cfg.Notify.SmtpPort)
	setEnvValue("HMS_SMTP_USER", &cfg.Notify.SmtpUser)
	setEnvValue("HMS_SMTP_PWD", &cfg.Notify.SmtpPasswd)
	setEnvValue("HMS_SMTP_FROM", &cfg.Notify.SmtpFrom)
	setEnvValue("HMS_WEBHOOK_URL", &cfg.Notify.WebhookURL)

	cfg.Database.Type = strings.ToLower(strings.TrimSpace(cfg.Database.Type))
}
