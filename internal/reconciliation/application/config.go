package application

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Tolerances defines the maximum amount difference accepted when
// matching records against bank transactions. Payment notifications
// compare Bs amounts, expenses compare against the statement figure
// directly, so the two carry separate tolerances.
type Tolerances struct {
	Payment float64 `yaml:"payment"`
	Expense float64 `yaml:"expense"`
}

// Config defines reconciliation configuration.
type Config struct {
	Tolerances Tolerances `yaml:"tolerances"`
}

// LoadConfig loads config from yaml or env.
func LoadConfig() (Config, error) {
	cfg := Config{
		Tolerances: Tolerances{
			Payment: getenvFloatDefault("RECON_PAYMENT_TOLERANCE", 0.1),
			Expense: getenvFloatDefault("RECON_EXPENSE_TOLERANCE", 0.05),
		},
	}

	if path := os.Getenv("RECON_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	if cfg.Tolerances.Payment <= 0 {
		cfg.Tolerances.Payment = 0.1
	}
	if cfg.Tolerances.Expense <= 0 {
		cfg.Tolerances.Expense = 0.05
	}
	return cfg, nil
}

func getenvFloatDefault(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}
