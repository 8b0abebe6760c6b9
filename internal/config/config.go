package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/pelletier/go-toml/v2"

	"github.com/pipewise/ferrite/internal/core/model"
)

type SimulationConfig struct {
	Samples            int     `toml:"samples"`
	Workers            int     `toml:"workers"`
	Seed               uint64  `toml:"seed"`
	KNeighbors         int     `toml:"k_neighbors"`
	MinTrainingRows    int     `toml:"min_training_rows"`
	SMYSMPa            float64 `toml:"smys_mpa"`
	DetectionThreshold float64 `toml:"detection_threshold"`
}

type ServerConfig struct {
	Port string `toml:"port"`
}

type Config struct {
	Simulation SimulationConfig   `toml:"simulation"`
	Server     ServerConfig       `toml:"server"`
	Tolerances map[string]float64 `toml:"tolerances"`
}

// Default returns the built-in configuration: the Monte Carlo defaults plus
// the stock per-defect-type tolerance table.
func Default() *Config {
	tolerances := make(map[string]float64)
	for t, v := range model.DefaultTolerances() {
		tolerances[string(t)] = v
	}
	return &Config{
		Simulation: SimulationConfig{
			Samples:            50000,
			Workers:            8,
			Seed:               1,
			KNeighbors:         5,
			MinTrainingRows:    3,
			SMYSMPa:            359.0, // API 5L X52
			DetectionThreshold: 0.10,
		},
		Server: ServerConfig{
			Port: "8080",
		},
		Tolerances: tolerances,
	}
}

// Load reads a TOML file over the defaults. A missing file is not an error;
// the defaults are returned so the engine always has a usable configuration.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides config values from FERRITE_* environment variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("FERRITE_SAMPLES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Simulation.Samples = n
		}
	}
	if v := os.Getenv("FERRITE_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Simulation.Workers = n
		}
	}
	if v := os.Getenv("FERRITE_SEED"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			c.Simulation.Seed = n
		}
	}
	if v := os.Getenv("FERRITE_PORT"); v != "" {
		c.Server.Port = v
	}
}

// ToleranceProfile converts the config table into the engine's typed map.
func (c *Config) ToleranceProfile() map[model.DefectType]float64 {
	out := make(map[model.DefectType]float64, len(c.Tolerances))
	for t, v := range c.Tolerances {
		out[model.DefectType(t)] = v
	}
	return out
}
