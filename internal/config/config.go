package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/kjannette/aete-backend/internal/logging"
)

// Store backends selectable with DOCUMENT_STORE.
const (
	StoreFirestore = "firestore"
	StorePostgres  = "postgres"
	StoreBadger    = "badger"
	StoreMemory    = "memory"
)

type ExchangeConfig struct {
	Name      string `json:"name"`
	APIKey    string `json:"api_key"`
	APISecret string `json:"api_secret"`
	Sandbox   bool   `json:"sandbox"`
}

// GAParams holds genetic-algorithm hyperparameters. Nothing in this service
// runs a GA; the values are carried so they can be snapshotted with the config.
type GAParams struct {
	PopulationSize int     `yaml:"population_size"`
	MutationRate   float64 `yaml:"mutation_rate"`
	CrossoverRate  float64 `yaml:"crossover_rate"`
	ElitismCount   int     `yaml:"elitism_count"`
	MaxGenerations int     `yaml:"max_generations"`
	TournamentSize int     `yaml:"tournament_size"`
}

// RLParams holds reinforcement-learning hyperparameters, carried like GAParams.
type RLParams struct {
	LearningRate float64 `yaml:"learning_rate"`
	Gamma        float64 `yaml:"gamma"`
	EpsilonStart float64 `yaml:"epsilon_start"`
	EpsilonEnd   float64 `yaml:"epsilon_end"`
	EpsilonDecay float64 `yaml:"epsilon_decay"`
	MemorySize   int     `yaml:"memory_size"`
	BatchSize    int     `yaml:"batch_size"`
}

func DefaultGAParams() GAParams {
	return GAParams{
		PopulationSize: 50,
		MutationRate:   0.1,
		CrossoverRate:  0.8,
		ElitismCount:   5,
		MaxGenerations: 100,
		TournamentSize: 3,
	}
}

func DefaultRLParams() RLParams {
	return RLParams{
		LearningRate: 0.001,
		Gamma:        0.99,
		EpsilonStart: 1.0,
		EpsilonEnd:   0.01,
		EpsilonDecay: 0.995,
		MemorySize:   10000,
		BatchSize:    64,
	}
}

type Config struct {
	// Logging
	LogLevel string
	Level    logrus.Level
	LogFile  string

	// Firebase
	FirebaseCredentialsPath string
	FirebaseProjectID       string

	// Trading
	Exchange ExchangeConfig

	// Algorithm parameters
	GA         GAParams
	RL         RLParams
	ParamsFile string

	// Risk Management
	MaxPositionSize float64
	MaxDrawdown     float64

	// Persistence
	StoreBackend string
	BadgerPath   string
	DBHost       string
	DBPort       int
	DBName       string
	DBUser       string
	DBPassword   string

	// API / notifications
	APIPort         int
	APIKey          string
	CORSAllowOrigin string
	WebhookURL      string
	BotName         string
}

// Error reports an environment value that could not be parsed.
type Error struct {
	Key   string
	Value string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("config: %s=%q: %v", e.Key, e.Value, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Load reads .env (when present) and the process environment.
// Malformed numeric, boolean-adjacent or level values fail fast.
func Load() (*Config, error) {
	_ = godotenv.Load()

	p := &envParser{}
	cfg := &Config{
		LogLevel: p.str("LOG_LEVEL", "INFO"),
		LogFile:  p.str("LOG_FILE", logging.DefaultFile),

		FirebaseCredentialsPath: p.str("FIREBASE_CREDENTIALS_PATH", "./firebase_credentials.json"),
		FirebaseProjectID:       p.str("FIREBASE_PROJECT_ID", ""),

		Exchange: ExchangeConfig{
			Name:      p.str("EXCHANGE_NAME", "binance"),
			APIKey:    p.str("EXCHANGE_API_KEY", ""),
			APISecret: p.str("EXCHANGE_API_SECRET", ""),
			Sandbox:   p.boolean("EXCHANGE_SANDBOX", "true"),
		},

		GA:         DefaultGAParams(),
		RL:         DefaultRLParams(),
		ParamsFile: p.str("AETE_PARAMS_FILE", ""),

		MaxPositionSize: p.float("MAX_POSITION_SIZE", "0.1"),
		MaxDrawdown:     p.float("MAX_DRAWDOWN", "0.2"),

		StoreBackend: strings.ToLower(p.str("DOCUMENT_STORE", StoreFirestore)),
		BadgerPath:   p.str("BADGER_PATH", "./data/aete"),
		DBHost:       p.str("DB_HOST", "localhost"),
		DBPort:       p.integer("DB_PORT", "5432"),
		DBName:       p.str("DB_NAME", "aete"),
		DBUser:       p.str("DB_USER", ""),
		DBPassword:   p.str("DB_PASSWORD", ""),

		APIPort:         p.integer("API_PORT", "3001"),
		APIKey:          p.str("API_KEY", ""),
		CORSAllowOrigin: p.str("CORS_ALLOW_ORIGIN", "*"),
		WebhookURL:      p.str("WEBHOOK_URL", ""),
		BotName:         p.str("BOT_NAME", "AETE"),
	}
	if p.err != nil {
		return nil, p.err
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, &Error{Key: "LOG_LEVEL", Value: cfg.LogLevel, Err: err}
	}
	cfg.Level = level

	switch cfg.StoreBackend {
	case StoreFirestore, StorePostgres, StoreBadger, StoreMemory:
	default:
		return nil, &Error{Key: "DOCUMENT_STORE", Value: cfg.StoreBackend,
			Err: errors.New("expected firestore|postgres|badger|memory")}
	}

	if cfg.ParamsFile != "" {
		if err := cfg.loadParamsFile(cfg.ParamsFile); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

type paramsFile struct {
	GA *GAParams `yaml:"ga_params"`
	RL *RLParams `yaml:"rl_params"`
}

// loadParamsFile overlays GA/RL params from YAML. Keys missing from the file
// keep their defaults.
func (c *Config) loadParamsFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return &Error{Key: "AETE_PARAMS_FILE", Value: path, Err: err}
	}
	pf := paramsFile{GA: &c.GA, RL: &c.RL}
	if err := yaml.Unmarshal(b, &pf); err != nil {
		return &Error{Key: "AETE_PARAMS_FILE", Value: path, Err: err}
	}
	return nil
}

func (c *Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

// ToDict snapshots the trading-relevant configuration for persistence or display.
func (c *Config) ToDict() map[string]any {
	return map[string]any{
		"exchange": map[string]any{
			"name":       c.Exchange.Name,
			"api_key":    c.Exchange.APIKey,
			"api_secret": c.Exchange.APISecret,
			"sandbox":    c.Exchange.Sandbox,
		},
		"ga_params": map[string]any{
			"population_size": c.GA.PopulationSize,
			"mutation_rate":   c.GA.MutationRate,
			"crossover_rate":  c.GA.CrossoverRate,
			"elitism_count":   c.GA.ElitismCount,
			"max_generations": c.GA.MaxGenerations,
			"tournament_size": c.GA.TournamentSize,
		},
		"rl_params": map[string]any{
			"learning_rate": c.RL.LearningRate,
			"gamma":         c.RL.Gamma,
			"epsilon_start": c.RL.EpsilonStart,
			"epsilon_end":   c.RL.EpsilonEnd,
			"epsilon_decay": c.RL.EpsilonDecay,
			"memory_size":   c.RL.MemorySize,
			"batch_size":    c.RL.BatchSize,
		},
		"risk_limits": map[string]any{
			"max_position_size": c.MaxPositionSize,
			"max_drawdown":      c.MaxDrawdown,
		},
	}
}

// Redacted is ToDict with exchange credentials masked.
func (c *Config) Redacted() map[string]any {
	d := c.ToDict()
	ex := d["exchange"].(map[string]any)
	ex["api_key"] = mask(c.Exchange.APIKey)
	ex["api_secret"] = mask(c.Exchange.APISecret)
	return d
}

func (c *Config) Print() {
	log := logging.For("config")
	log.Info("=== AETE Configuration ===")
	if c.Exchange.Sandbox {
		log.Infof("Exchange: %s (sandbox)", c.Exchange.Name)
	} else {
		log.Infof("Exchange: %s (LIVE TRADING)", c.Exchange.Name)
	}
	log.Infof("API key: %s", boolLabel(c.Exchange.APIKey != "", "configured", "not set"))
	log.Infof("Risk limits: max position %.2f%%, max drawdown %.2f%%",
		c.MaxPositionSize*100, c.MaxDrawdown*100)
	log.Infof("GA: population=%d generations=%d mutation=%.3f crossover=%.3f",
		c.GA.PopulationSize, c.GA.MaxGenerations, c.GA.MutationRate, c.GA.CrossoverRate)
	log.Infof("RL: lr=%g gamma=%.3f batch=%d memory=%d",
		c.RL.LearningRate, c.RL.Gamma, c.RL.BatchSize, c.RL.MemorySize)
	switch c.StoreBackend {
	case StoreFirestore:
		log.Infof("Document store: firestore (credentials %s)", c.FirebaseCredentialsPath)
	case StorePostgres:
		log.Infof("Document store: postgres %s:%d/%s", c.DBHost, c.DBPort, c.DBName)
	case StoreBadger:
		log.Infof("Document store: badger at %s", c.BadgerPath)
	default:
		log.Infof("Document store: %s", c.StoreBackend)
	}
	log.Infof("Webhook: %s", boolLabel(c.WebhookURL != "", "configured", "not set"))
}

// --- helpers ---

// envParser collects the first parse failure so Load can read every key in
// one literal and still fail fast.
type envParser struct {
	err error
}

// str falls back only when key is unset. A key set to "" reads as "".
func (p *envParser) str(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func (p *envParser) integer(key, fallback string) int {
	v := p.str(key, fallback)
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		p.fail(key, v, err)
		return 0
	}
	return n
}

func (p *envParser) float(key, fallback string) float64 {
	v := p.str(key, fallback)
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		p.fail(key, v, err)
		return 0
	}
	return f
}

// boolean is true only for a case-insensitive "true".
func (p *envParser) boolean(key, fallback string) bool {
	return ParseBool(p.str(key, fallback))
}

func (p *envParser) fail(key, value string, err error) {
	if p.err == nil {
		p.err = &Error{Key: key, Value: value, Err: err}
	}
}

// ParseBool reports whether s is a case-insensitive spelling of "true".
func ParseBool(s string) bool {
	return strings.EqualFold(s, "true")
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}

func boolLabel(cond bool, ifTrue, ifFalse string) string {
	if cond {
		return ifTrue
	}
	return ifFalse
}
