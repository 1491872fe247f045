package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

// Config はアプリケーション全体の設定を表現します。
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Log        LogConfig        `yaml:"log"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Scheduling SchedulingConfig `yaml:"scheduling"`
	Authz      AuthzConfig      `yaml:"authz"`
}

// ServerConfig は gRPC サーバーに関する設定です。
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// DatabaseConfig は PostgreSQL 接続に関する設定です。
type DatabaseConfig struct {
	Host               string        `yaml:"host"`
	Port               int           `yaml:"port"`
	User               string        `yaml:"user"`
	Password           string        `yaml:"password"`
	Name               string        `yaml:"name"`
	SSLMode            string        `yaml:"ssl_mode"`
	ApplicationName    string        `yaml:"application_name"`
	TxMaxAttempts      int           `yaml:"tx_max_attempts"`
	MaxOpenConns       int           `yaml:"max_open_conns"`
	MaxIdleConns       int           `yaml:"max_idle_conns"`
	ConnMaxLifetime    time.Duration `yaml:"-"`
	ConnMaxIdleTime    time.Duration `yaml:"-"`
	ConnMaxLifetimeRaw string        `yaml:"conn_max_lifetime"`
	ConnMaxIdleTimeRaw string        `yaml:"conn_max_idle_time"`
}

// LogConfig はログ出力に関する設定です。
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig は Prometheus エンドポイントに関する設定です。listen_addr が空の場合は公開しません。
type MetricsConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	Path       string `yaml:"path"`
}

// SchedulingConfig は公開ロックの挙動に関する設定です。
type SchedulingConfig struct {
	LockMode string         `yaml:"lock_mode"`
	Timezone string         `yaml:"timezone"`
	Location *time.Location `yaml:"-"`
}

// AuthzConfig はロールごとの権限定義です。空の場合は既定のロールを使います。
type AuthzConfig struct {
	Roles map[string][]string `yaml:"roles"`
}

// Load は指定されたパスから設定ファイルを読み込みます。
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := cfg.validateAndNormalize(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validateAndNormalize() error {
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("config: server.listen_addr must be set")
	}

	if err := c.Database.validateAndNormalize(); err != nil {
		return err
	}
	if err := c.Log.validateAndNormalize(); err != nil {
		return err
	}
	if err := c.Metrics.validateAndNormalize(); err != nil {
		return err
	}
	if err := c.Scheduling.validateAndNormalize(); err != nil {
		return err
	}
	if err := c.Authz.validateAndNormalize(); err != nil {
		return err
	}

	return nil
}

func (d *DatabaseConfig) validateAndNormalize() error {
	if d.Host == "" {
		return fmt.Errorf("config: database.host must be set")
	}
	if d.Port == 0 {
		return fmt.Errorf("config: database.port must be set")
	}
	if d.User == "" {
		return fmt.Errorf("config: database.user must be set")
	}
	if d.Password == "" {
		return fmt.Errorf("config: database.password must be set")
	}
	if d.Name == "" {
		return fmt.Errorf("config: database.name must be set")
	}
	if d.SSLMode == "" {
		d.SSLMode = "disable"
	}
	if d.ApplicationName == "" {
		d.ApplicationName = "workforce-scheduling"
	}
	if d.TxMaxAttempts < 0 {
		return fmt.Errorf("config: database.tx_max_attempts must not be negative")
	}
	if d.TxMaxAttempts == 0 {
		d.TxMaxAttempts = 3
	}

	lifetime, err := parseDurationAllowEmpty(d.ConnMaxLifetimeRaw)
	if err != nil {
		return fmt.Errorf("config: database.conn_max_lifetime: %w", err)
	}
	d.ConnMaxLifetime = lifetime

	idleTime, err := parseDurationAllowEmpty(d.ConnMaxIdleTimeRaw)
	if err != nil {
		return fmt.Errorf("config: database.conn_max_idle_time: %w", err)
	}
	d.ConnMaxIdleTime = idleTime

	return nil
}

func (l *LogConfig) validateAndNormalize() error {
	l.Level = strings.ToLower(strings.TrimSpace(l.Level))
	if l.Level == "" {
		l.Level = "info"
	}
	l.Format = strings.ToLower(strings.TrimSpace(l.Format))
	switch l.Format {
	case "":
		l.Format = "text"
	case "text", "json":
	default:
		return fmt.Errorf("config: log.format must be text or json, got %q", l.Format)
	}
	return nil
}

func (m *MetricsConfig) validateAndNormalize() error {
	if m.Path == "" {
		m.Path = "/metrics"
	}
	if !strings.HasPrefix(m.Path, "/") {
		return fmt.Errorf("config: metrics.path must start with /")
	}
	return nil
}

func (s *SchedulingConfig) validateAndNormalize() error {
	s.LockMode = strings.ToLower(strings.TrimSpace(s.LockMode))
	switch s.LockMode {
	case "":
		s.LockMode = "enforce"
	case "enforce", "shadow", "disabled":
	default:
		return fmt.Errorf("config: scheduling.lock_mode must be enforce, shadow or disabled, got %q", s.LockMode)
	}

	if s.Timezone == "" {
		s.Timezone = "UTC"
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return fmt.Errorf("config: scheduling.timezone: %w", err)
	}
	s.Location = loc
	return nil
}

func (a *AuthzConfig) validateAndNormalize() error {
	for role, caps := range a.Roles {
		if strings.TrimSpace(role) == "" {
			return fmt.Errorf("config: authz.roles must not contain an empty role")
		}
		for _, capability := range caps {
			if strings.TrimSpace(capability) == "" {
				return fmt.Errorf("config: authz.roles.%s must not contain an empty capability", role)
			}
		}
	}
	return nil
}

func parseDurationAllowEmpty(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	return d, nil
}

// DSN は pgx 用の接続文字列を返します。認証情報はエスケープされます。
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:     "/" + d.Name,
		RawQuery: url.Values{"sslmode": []string{d.SSLMode}}.Encode(),
	}
	return u.String()
}
