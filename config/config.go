// Package config loads rebalancer settings from a yaml file with flag
// overrides. Secrets come from the environment, never from the file.
package config

import (
	"flag"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Environment variable names for secrets and account selection.
const (
	EnvToken     = "TINKOFF_TOKEN"
	EnvAccountID = "ACCOUNT_ID"
)

// DefaultBasket is the full list of the provider's exchange-traded funds.
var DefaultBasket = []string{
	"TMOS", "TRUR", "TBRU", "TSPV", "TEUS", "TEMS", "TGLD", "TUSD",
	"TEUR", "TSPX", "TBUY", "TBEU", "TPAS", "TBIO", "TCBR", "TECH",
	"TSST", "TGRN", "TSOX", "TRAI", "TIPO", "TFNX",
}

// DefaultAllowedHours are the UTC hours of the Moscow exchange main session
// during which rebalancing is permitted.
var DefaultAllowedHours = []int{10, 11, 12, 13, 14, 15, 16, 17}

// Config holds all validated settings.
type Config struct {
	Token           string
	AccountSelector string

	Basket              []string
	CashReservePercent  decimal.Decimal
	MaxDeviationPercent decimal.Decimal
	MinOrderValue       decimal.Decimal
	SleepBetweenOrders  time.Duration
	RebalanceInterval   time.Duration

	AllowedHours        []int
	VolatilityThreshold decimal.Decimal
	MovingAverageDays   int

	DryRun          bool
	WebAddr         string
	RebalanceWALDir string
	SnapshotWALDir  string
}

// Tmp mirrors the yaml layout; decimals travel as strings so precision
// survives parsing.
type Tmp struct {
	Basket              []string      `yaml:"basket,omitempty"`
	CashReservePercent  string        `yaml:"cash_reserve_percent,omitempty"`
	MaxDeviationPercent string        `yaml:"max_deviation_percent,omitempty"`
	MinOrderValue       string        `yaml:"min_order_value,omitempty"`
	SleepBetweenOrders  time.Duration `yaml:"sleep_between_orders,omitempty"`
	RebalanceInterval   time.Duration `yaml:"rebalance_interval,omitempty"`
	AllowedHours        []int         `yaml:"allowed_hours,omitempty"`
	VolatilityThreshold string        `yaml:"volatility_threshold,omitempty"`
	MovingAverageDays   int           `yaml:"moving_average_days,omitempty"`
	DryRun              *bool         `yaml:"dry_run,omitempty"`
	WebAddr             string        `yaml:"web_addr,omitempty"`
	RebalanceWALDir     string        `yaml:"rebalance_wal_dir,omitempty"`
	SnapshotWALDir      string        `yaml:"snapshot_wal_dir,omitempty"`
}

// Get parses flags, loads the yaml config when provided, applies defaults and
// validates the result.
func Get() (Config, error) {
	path := flag.String("config", "", "path to yaml config")
	dryRun := flag.Bool("dry-run", true, "log orders instead of sending them")
	flag.Parse()

	var tmp Tmp
	if *path != "" {
		f, err := os.ReadFile(*path)
		if err != nil {
			return Config{}, errors.Wrap(err, "read config file")
		}
		if err := yaml.Unmarshal(f, &tmp); err != nil {
			return Config{}, errors.Wrap(err, "parse config file")
		}
	}
	if tmp.DryRun == nil {
		tmp.DryRun = dryRun
	}

	return build(tmp)
}

// FromTmp validates a parsed yaml layout without touching flags.
func FromTmp(tmp Tmp) (Config, error) {
	return build(tmp)
}

func build(tmp Tmp) (Config, error) {
	cfg := Config{
		Token:           os.Getenv(EnvToken),
		AccountSelector: os.Getenv(EnvAccountID),

		Basket:             tmp.Basket,
		SleepBetweenOrders: tmp.SleepBetweenOrders,
		RebalanceInterval:  tmp.RebalanceInterval,
		AllowedHours:       tmp.AllowedHours,
		MovingAverageDays:  tmp.MovingAverageDays,
		WebAddr:            tmp.WebAddr,
		RebalanceWALDir:    tmp.RebalanceWALDir,
		SnapshotWALDir:     tmp.SnapshotWALDir,
	}

	if len(cfg.Basket) == 0 {
		cfg.Basket = DefaultBasket
	}
	if len(cfg.AllowedHours) == 0 {
		cfg.AllowedHours = DefaultAllowedHours
	}
	if cfg.SleepBetweenOrders == 0 {
		cfg.SleepBetweenOrders = 3 * time.Second
	}
	if cfg.RebalanceInterval == 0 {
		cfg.RebalanceInterval = 24 * time.Hour
	}
	if cfg.MovingAverageDays == 0 {
		cfg.MovingAverageDays = 7
	}
	if cfg.WebAddr == "" {
		cfg.WebAddr = ":8080"
	}
	if tmp.DryRun != nil {
		cfg.DryRun = *tmp.DryRun
	} else {
		cfg.DryRun = true
	}

	var err error
	if cfg.CashReservePercent, err = parsePercent(tmp.CashReservePercent, "5", "cash_reserve_percent"); err != nil {
		return Config{}, err
	}
	if cfg.MaxDeviationPercent, err = parsePercent(tmp.MaxDeviationPercent, "5", "max_deviation_percent"); err != nil {
		return Config{}, err
	}
	if cfg.MinOrderValue, err = parseDecimal(tmp.MinOrderValue, "1000", "min_order_value"); err != nil {
		return Config{}, err
	}
	if cfg.VolatilityThreshold, err = parseDecimal(tmp.VolatilityThreshold, "0.02", "volatility_threshold"); err != nil {
		return Config{}, err
	}
	if cfg.MinOrderValue.Sign() < 0 {
		return Config{}, errors.New("min_order_value must not be negative")
	}
	if cfg.VolatilityThreshold.Sign() <= 0 {
		return Config{}, errors.New("volatility_threshold must be positive")
	}

	for _, hour := range cfg.AllowedHours {
		if hour < 0 || hour > 23 {
			return Config{}, errors.Errorf("allowed hour %d is out of range", hour)
		}
	}

	return cfg, nil
}

func parseDecimal(raw, fallback, name string) (decimal.Decimal, error) {
	if raw == "" {
		raw = fallback
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, errors.Wrapf(err, "incorrect %q param", name)
	}
	return d, nil
}

func parsePercent(raw, fallback, name string) (decimal.Decimal, error) {
	d, err := parseDecimal(raw, fallback, name)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if d.Sign() < 0 || d.GreaterThan(decimal.NewFromInt(100)) {
		return decimal.Decimal{}, errors.Errorf("%q must be between 0 and 100, got %s", name, d)
	}
	return d, nil
}
