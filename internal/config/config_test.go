package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configKeys = []string{
	"LOG_LEVEL", "LOG_FILE", "FIREBASE_CREDENTIALS_PATH", "FIREBASE_PROJECT_ID",
	"EXCHANGE_NAME", "EXCHANGE_API_KEY", "EXCHANGE_API_SECRET", "EXCHANGE_SANDBOX",
	"MAX_POSITION_SIZE", "MAX_DRAWDOWN", "AETE_PARAMS_FILE", "DOCUMENT_STORE",
	"BADGER_PATH", "DB_HOST", "DB_PORT", "DB_NAME", "DB_USER", "DB_PASSWORD",
	"API_PORT", "API_KEY", "CORS_ALLOW_ORIGIN", "WEBHOOK_URL", "BOT_NAME",
}

// clearEnv unsets every key Load reads. t.Setenv restores them afterwards.
// Load also reads .env from the working directory; tests run in the package
// directory, which has none.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range configKeys {
		// Setenv registers the restore; the key is then truly unset.
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.Equal(t, logrus.InfoLevel, cfg.Level)
	assert.Equal(t, "aete.log", cfg.LogFile)
	assert.Equal(t, "./firebase_credentials.json", cfg.FirebaseCredentialsPath)
	assert.Equal(t, ExchangeConfig{Name: "binance", Sandbox: true}, cfg.Exchange)
	assert.Equal(t, DefaultGAParams(), cfg.GA)
	assert.Equal(t, DefaultRLParams(), cfg.RL)
	assert.Equal(t, 0.1, cfg.MaxPositionSize)
	assert.Equal(t, 0.2, cfg.MaxDrawdown)
	assert.Equal(t, StoreFirestore, cfg.StoreBackend)
	assert.Equal(t, 5432, cfg.DBPort)
	assert.Equal(t, 3001, cfg.APIPort)
}

func TestLoad_FromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("EXCHANGE_NAME", "kraken")
	t.Setenv("EXCHANGE_API_KEY", "key")
	t.Setenv("EXCHANGE_API_SECRET", "secret")
	t.Setenv("EXCHANGE_SANDBOX", "false")
	t.Setenv("MAX_POSITION_SIZE", "0.05")
	t.Setenv("MAX_DRAWDOWN", "0.15")
	t.Setenv("DOCUMENT_STORE", "Postgres")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, logrus.DebugLevel, cfg.Level)
	assert.Equal(t, ExchangeConfig{Name: "kraken", APIKey: "key", APISecret: "secret", Sandbox: false}, cfg.Exchange)
	assert.Equal(t, 0.05, cfg.MaxPositionSize)
	assert.Equal(t, 0.15, cfg.MaxDrawdown)
	assert.Equal(t, StorePostgres, cfg.StoreBackend)
}

func TestLoad_SandboxParsing(t *testing.T) {
	cases := map[string]bool{
		"true":  true,
		"TRUE":  true,
		"True":  true,
		"tRuE":  true,
		"false": false,
		"1":     false,
		"yes":   false,
		"truee": false,
		"":      false,
	}
	for in, want := range cases {
		t.Run(in, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("EXCHANGE_SANDBOX", in)
			cfg, err := Load()
			require.NoError(t, err)
			assert.Equal(t, want, cfg.Exchange.Sandbox)
		})
	}
}

func TestLoad_MalformedNumbersFailFast(t *testing.T) {
	for _, key := range []string{"MAX_POSITION_SIZE", "MAX_DRAWDOWN", "DB_PORT", "API_PORT"} {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, "ten percent")

			cfg, err := Load()
			require.Error(t, err)
			assert.Nil(t, cfg)

			var cerr *Error
			require.True(t, errors.As(err, &cerr))
			assert.Equal(t, key, cerr.Key)
			assert.Equal(t, "ten percent", cerr.Value)
		})
	}
}

func TestLoad_BadLogLevel(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOG_LEVEL", "VERBOSE")

	_, err := Load()
	var cerr *Error
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "LOG_LEVEL", cerr.Key)
}

func TestLoad_BadStoreBackend(t *testing.T) {
	clearEnv(t)
	t.Setenv("DOCUMENT_STORE", "mongo")

	_, err := Load()
	var cerr *Error
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "DOCUMENT_STORE", cerr.Key)
}

func TestLoad_ParamsFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "params.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
ga_params:
  population_size: 200
  mutation_rate: 0.05
rl_params:
  gamma: 0.95
`), 0o644))
	t.Setenv("AETE_PARAMS_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 200, cfg.GA.PopulationSize)
	assert.Equal(t, 0.05, cfg.GA.MutationRate)
	assert.Equal(t, 0.8, cfg.GA.CrossoverRate, "unset keys keep defaults")
	assert.Equal(t, 0.95, cfg.RL.Gamma)
	assert.Equal(t, 64, cfg.RL.BatchSize)
}

func TestLoad_ParamsFileMalformed(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "params.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ga_params: [not, a, map"), 0o644))
	t.Setenv("AETE_PARAMS_FILE", path)

	_, err := Load()
	var cerr *Error
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "AETE_PARAMS_FILE", cerr.Key)
}

func TestToDict(t *testing.T) {
	cfg := &Config{
		Exchange:        ExchangeConfig{Name: "binance", APIKey: "k", APISecret: "s", Sandbox: true},
		GA:              DefaultGAParams(),
		RL:              DefaultRLParams(),
		MaxPositionSize: 0.123456789012345,
		MaxDrawdown:     0.2,
	}
	d := cfg.ToDict()

	assert.Equal(t, map[string]any{"name": "binance", "api_key": "k", "api_secret": "s", "sandbox": true}, d["exchange"])

	ga := d["ga_params"].(map[string]any)
	assert.Equal(t, 50, ga["population_size"])
	assert.Equal(t, 0.1, ga["mutation_rate"])
	assert.Equal(t, 0.8, ga["crossover_rate"])
	assert.Equal(t, 5, ga["elitism_count"])
	assert.Equal(t, 100, ga["max_generations"])
	assert.Equal(t, 3, ga["tournament_size"])

	rl := d["rl_params"].(map[string]any)
	assert.Equal(t, 0.001, rl["learning_rate"])
	assert.Equal(t, 0.99, rl["gamma"])
	assert.Equal(t, 1.0, rl["epsilon_start"])
	assert.Equal(t, 0.01, rl["epsilon_end"])
	assert.Equal(t, 0.995, rl["epsilon_decay"])
	assert.Equal(t, 10000, rl["memory_size"])
	assert.Equal(t, 64, rl["batch_size"])

	risk := d["risk_limits"].(map[string]any)
	assert.Equal(t, 0.123456789012345, risk["max_position_size"])
	assert.Equal(t, 0.2, risk["max_drawdown"])
}

func TestRedacted(t *testing.T) {
	cfg := &Config{Exchange: ExchangeConfig{Name: "binance", APIKey: "abcdefgh", APISecret: "xyz"}}
	ex := cfg.Redacted()["exchange"].(map[string]any)
	assert.Equal(t, "ab****gh", ex["api_key"])
	assert.Equal(t, "****", ex["api_secret"])
	assert.Equal(t, "abcdefgh", cfg.Exchange.APIKey, "redaction must not touch the config")
}

func validConfig(t *testing.T) *Config {
	t.Helper()
	creds := filepath.Join(t.TempDir(), "creds.json")
	require.NoError(t, os.WriteFile(creds, []byte(`{}`), 0o600))
	return &Config{
		FirebaseCredentialsPath: creds,
		Exchange:                ExchangeConfig{Name: "binance", Sandbox: true},
		GA:                      DefaultGAParams(),
		RL:                      DefaultRLParams(),
		MaxPositionSize:         0.1,
		MaxDrawdown:             0.2,
		StoreBackend:            StoreFirestore,
	}
}

func TestValidate_OK(t *testing.T) {
	r := validConfig(t).Validate()
	assert.True(t, r.OK())
	assert.Empty(t, r.Failures())
}

func TestValidate_EmptyExchangeName(t *testing.T) {
	cfg := validConfig(t)
	cfg.Exchange.Name = ""

	r := cfg.Validate()
	assert.False(t, r.OK())
	assert.Equal(t, []string{CheckExchange}, r.Failures())
	ch, ok := r.Check(CheckExchange)
	require.True(t, ok)
	assert.False(t, ch.Passed)
}

func TestLoad_EmptyExchangeNameFailsValidation(t *testing.T) {
	clearEnv(t)
	t.Setenv("EXCHANGE_NAME", "")
	t.Setenv("DOCUMENT_STORE", StoreMemory)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "", cfg.Exchange.Name, "a set-but-empty variable must not fall back to the default")

	r := cfg.Validate()
	assert.Equal(t, []string{CheckExchange}, r.Failures())
}

func TestValidate_MissingCredentials(t *testing.T) {
	cfg := validConfig(t)
	cfg.FirebaseCredentialsPath = filepath.Join(t.TempDir(), "missing.json")

	r := cfg.Validate()
	assert.False(t, r.OK())
	assert.Equal(t, []string{CheckFirebaseCredentials}, r.Failures())
	assert.Contains(t, r.Error(), CheckFirebaseCredentials)
}

func TestValidate_CredentialsNotRequiredForOtherStores(t *testing.T) {
	cfg := validConfig(t)
	cfg.FirebaseCredentialsPath = "/nope"
	cfg.StoreBackend = StoreMemory

	assert.True(t, cfg.Validate().OK())
}

func TestValidate_LiveWithoutKeysOnlyWarns(t *testing.T) {
	cfg := validConfig(t)
	cfg.Exchange.Sandbox = false

	assert.True(t, cfg.Validate().OK())
}

func TestValidate_RiskAndParams(t *testing.T) {
	cfg := validConfig(t)
	cfg.MaxDrawdown = 1.5
	cfg.GA.ElitismCount = cfg.GA.PopulationSize + 1
	cfg.RL.Gamma = -0.1

	r := cfg.Validate()
	assert.Equal(t, []string{CheckRiskLimits, CheckGAParams, CheckRLParams}, r.Failures())
}
