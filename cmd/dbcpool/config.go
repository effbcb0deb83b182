package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/squadracorsepolito/dbcpool/codec"
	"github.com/squadracorsepolito/dbcpool/egress"
	"github.com/squadracorsepolito/dbcpool/ingress"
	"github.com/squadracorsepolito/dbcpool/pool"
	"gopkg.in/yaml.v3"
)

const (
	transportSocketCAN  = "socketcan"
	transportCannelloni = "cannelloni"
)

type config struct {
	DBC      string `yaml:"dbc"`
	LogLevel string `yaml:"log_level"`

	// Transport selects the ingress of the listen command,
	// "socketcan" or "cannelloni".
	Transport string `yaml:"transport"`

	Pool       poolConfig       `yaml:"pool"`
	SocketCAN  socketCANConfig  `yaml:"socketcan"`
	Cannelloni cannelloniConfig `yaml:"cannelloni"`
	QuestDB    questDBConfig    `yaml:"questdb"`
	Telemetry  telemetryConfig  `yaml:"telemetry"`
}

type poolConfig struct {
	Name          string   `yaml:"name"`
	Allow         []uint32 `yaml:"allow"`
	Deny          []uint32 `yaml:"deny"`
	RangeCheck    bool     `yaml:"range_check"`
	SignPolicy    string   `yaml:"sign_policy"`
	Enums         bool     `yaml:"enums"`
	DisabledEnums []string `yaml:"disabled_enums"`
}

type socketCANConfig struct {
	Interface     string        `yaml:"interface"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	Timeout       time.Duration `yaml:"timeout"`
	// KernelFilters installs one kernel filter per pool message.
	KernelFilters bool `yaml:"kernel_filters"`
}

type cannelloniConfig struct {
	IPAddr  string        `yaml:"ip_addr"`
	Port    uint16        `yaml:"port"`
	Timeout time.Duration `yaml:"timeout"`
}

type questDBConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Address       string        `yaml:"address"`
	AutoFlushRows int           `yaml:"auto_flush_rows"`
	RetryTimeout  time.Duration `yaml:"retry_timeout"`
	Workers       int           `yaml:"workers"`
}

type telemetryConfig struct {
	Enabled     bool    `yaml:"enabled"`
	ServiceName string  `yaml:"service_name"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

func newDefaultConfig() *config {
	poolCfg := pool.NewDefaultConfig()
	ingressCfg := ingress.NewDefaultSocketCANConfig()
	cannelloniCfg := ingress.NewDefaultCannelloniConfig()
	questDBCfg := egress.NewDefaultQuestDBConfig()

	return &config{
		LogLevel:  "info",
		Transport: transportSocketCAN,

		Pool: poolConfig{
			Name:       poolCfg.Name,
			RangeCheck: poolCfg.RangeCheck,
			SignPolicy: poolCfg.SignPolicy.String(),
			Enums:      poolCfg.Enums,
		},

		SocketCAN: socketCANConfig{
			Interface:     ingressCfg.Interface,
			BatchSize:     ingressCfg.BatchSize,
			FlushInterval: ingressCfg.FlushInterval,
			KernelFilters: true,
		},

		Cannelloni: cannelloniConfig{
			IPAddr: cannelloniCfg.IPAddr,
			Port:   cannelloniCfg.Port,
		},

		QuestDB: questDBConfig{
			Address:       questDBCfg.Address,
			AutoFlushRows: questDBCfg.AutoFlushRows,
			RetryTimeout:  questDBCfg.RetryTimeout,
			Workers:       questDBCfg.Workers,
		},

		Telemetry: telemetryConfig{
			ServiceName: "dbcpool",
			SampleRatio: 0.05,
		},
	}
}

// loadConfig reads the YAML file at path over the defaults.
// An empty path returns the defaults.
func loadConfig(path string) (*config, error) {
	cfg := newDefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	return cfg, nil
}

func parseSignPolicy(s string) (codec.SignPolicy, error) {
	switch s {
	case "", codec.SignExtend.String():
		return codec.SignExtend, nil
	case codec.SignReinterpret.String():
		return codec.SignReinterpret, nil
	default:
		return 0, fmt.Errorf("invalid sign policy %q", s)
	}
}

func (c *config) logLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, err
	}
	return level, nil
}

func (c *config) poolConfig() (*pool.Config, error) {
	policy, err := parseSignPolicy(c.Pool.SignPolicy)
	if err != nil {
		return nil, err
	}

	return &pool.Config{
		Name:          c.Pool.Name,
		Allow:         c.Pool.Allow,
		Deny:          c.Pool.Deny,
		RangeCheck:    c.Pool.RangeCheck,
		SignPolicy:    policy,
		Enums:         c.Pool.Enums,
		DisabledEnums: c.Pool.DisabledEnums,
	}, nil
}

func (c *config) ingressConfig(p *pool.Pool) *ingress.SocketCANConfig {
	cfg := ingress.NewDefaultSocketCANConfig()

	cfg.Interface = c.SocketCAN.Interface
	cfg.BatchSize = c.SocketCAN.BatchSize
	cfg.FlushInterval = c.SocketCAN.FlushInterval
	cfg.Timeout = c.SocketCAN.Timeout

	if c.SocketCAN.KernelFilters {
		cfg.Filters = ingress.FiltersFromPool(p)
	}

	return cfg
}

func (c *config) cannelloniConfig() *ingress.CannelloniConfig {
	cfg := ingress.NewDefaultCannelloniConfig()

	cfg.IPAddr = c.Cannelloni.IPAddr
	cfg.Port = c.Cannelloni.Port
	cfg.Timeout = c.Cannelloni.Timeout

	return cfg
}

func (c *config) egressConfig() *egress.SocketCANConfig {
	cfg := egress.NewDefaultSocketCANConfig()
	cfg.Interface = c.SocketCAN.Interface
	return cfg
}

func (c *config) questDBConfig() *egress.QuestDBConfig {
	cfg := egress.NewDefaultQuestDBConfig()

	cfg.Address = c.QuestDB.Address
	cfg.AutoFlushRows = c.QuestDB.AutoFlushRows
	cfg.RetryTimeout = c.QuestDB.RetryTimeout
	if c.QuestDB.Workers > 0 {
		cfg.Workers = c.QuestDB.Workers
	}

	return cfg
}
