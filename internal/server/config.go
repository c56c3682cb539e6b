// Package server is the orchestrator (spec.md §4.9, C9): it owns
// configuration, wires C1–C8 together, installs the scheduled jobs that
// drive the tick loop and the slower celestial/NPC/mission cadences, and
// exposes the operator control plane (spec.md §6).
//
// Grounded on the teacher's boot sequence (main.go/start_world.go:
// setupLogging → initConfig → initDB → background goroutines → mux →
// ListenAndServe), generalized from os.Getenv to the pack's
// viper/godotenv escalation (acdtunes-spacetraders/gobot/internal/
// infrastructure/config/config.go).
package server

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"stellarcore/internal/spatial"
	"stellarcore/pkg/types"
)

// Config is the full set of tunables the orchestrator loads before
// wiring anything. Settings is decoded from the config but New does not
// apply it: the orchestrator takes its server settings (§6) from the
// record store's Settings table (the defaults on a fresh store), which
// GET/PUT /api/settings change at runtime without a restart.
type Config struct {
	UDPPort  int    `mapstructure:"udpPort" validate:"min=1,max=65535"`
	HTTPPort int    `mapstructure:"httpPort" validate:"min=1,max=65535"`
	Version  string `mapstructure:"version" validate:"required"`

	// StoreBackend selects the record store (C3): "memory", "json", or
	// "sqlite".
	StoreBackend string `mapstructure:"storeBackend" validate:"oneof=memory json sqlite"`
	StoreDir     string `mapstructure:"storeDir"`
	SqlitePath   string `mapstructure:"sqlitePath"`

	AOICellEdge          float32 `mapstructure:"aoiCellEdge" validate:"gt=0"`
	AOIRadiusChangePolicy string  `mapstructure:"aoiRadiusChangePolicy" validate:"oneof=lazy reindex"`

	Settings types.Settings `mapstructure:"settings"`

	LogDir string `mapstructure:"logDir"`
}

// DefaultConfig matches spec.md §6's environment variables and server
// settings defaults.
func DefaultConfig() Config {
	return Config{
		UDPPort:               7777,
		HTTPPort:              5000,
		Version:               "1.0.0",
		StoreBackend:          "memory",
		StoreDir:              "./data",
		SqlitePath:            "./data/stellarcore.db",
		AOICellEdge:           1000,
		AOIRadiusChangePolicy: string(spatial.PolicyLazy),
		Settings:              types.DefaultSettings(),
		LogDir:                "./logs",
	}
}

// LoadConfig follows the same priority order acdtunes-spacetraders'
// config.go documents: env vars (STELLAR_ prefix) override a config
// file, which overrides defaults. configPath may be empty, in which
// case viper looks for ./config.yaml.
func LoadConfig(configPath string) (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	v.SetEnvPrefix("STELLAR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := DefaultConfig()
	v.SetDefault("udpPort", cfg.UDPPort)
	v.SetDefault("httpPort", cfg.HTTPPort)
	v.SetDefault("version", cfg.Version)
	v.SetDefault("storeBackend", cfg.StoreBackend)
	v.SetDefault("storeDir", cfg.StoreDir)
	v.SetDefault("sqlitePath", cfg.SqlitePath)
	v.SetDefault("aoiCellEdge", cfg.AOICellEdge)
	v.SetDefault("aoiRadiusChangePolicy", cfg.AOIRadiusChangePolicy)
	v.SetDefault("logDir", cfg.LogDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("server: read config: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("server: unmarshal config: %w", err)
	}

	if err := ValidateConfig(&cfg); err != nil {
		return Config{}, fmt.Errorf("server: invalid config: %w", err)
	}
	return cfg, nil
}

// ValidateConfig runs go-playground/validator over cfg, the same
// wrapper shape acdtunes-spacetraders' config/validation.go uses.
func ValidateConfig(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			var msgs []string
			for _, e := range verrs {
				msgs = append(msgs, fmt.Sprintf("field '%s' failed validation: %s (value: '%v')", e.Field(), e.Tag(), e.Value()))
			}
			return fmt.Errorf("%s", strings.Join(msgs, "; "))
		}
		return err
	}
	return nil
}
