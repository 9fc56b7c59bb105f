package config_test

import (
	"errors"
	"testing"
	"time"

	"github.com/watchhub/signalhub/internal/config"
)

func makeValidConfig() config.Config {
	return config.Config{
		LogLevel: config.LogLevelInfo,
		Secret:   "testsecret",
		HTTP: config.HTTP{
			Bind:          "[::]",
			Port:          8080,
			CanonicalHost: "http://localhost:8080",
		},
		Database: config.Database{
			Driver:   config.DatabaseDriverSQLite,
			Database: "test.db",
		},
		Turn: config.Turn{
			Secret: "turnsecret",
			TTL:    600 * time.Second,
		},
		Pairing: config.Pairing{
			CodeLength: 8,
			TTL:        600 * time.Second,
		},
	}
}

func TestConfigValidateValid(t *testing.T) {
	t.Parallel()
	c := makeValidConfig()
	if err := c.Validate(); err != nil {
		t.Errorf("Expected nil error, got %v", err)
	}
}

func TestConfigValidateInvalidLogLevel(t *testing.T) {
	t.Parallel()
	c := makeValidConfig()
	c.LogLevel = "bogus"
	if !errors.Is(c.Validate(), config.ErrInvalidLogLevel) {
		t.Errorf("Expected ErrInvalidLogLevel, got %v", c.Validate())
	}
}

func TestConfigValidateSecretRequired(t *testing.T) {
	t.Parallel()
	c := makeValidConfig()
	c.Secret = ""
	if !errors.Is(c.Validate(), config.ErrSecretRequired) {
		t.Errorf("Expected ErrSecretRequired, got %v", c.Validate())
	}
}

// --- Redis Validation ---

func TestRedisValidateDisabled(t *testing.T) {
	t.Parallel()
	r := config.Redis{Enabled: false}
	if err := r.Validate(); err != nil {
		t.Errorf("Expected nil error when disabled, got %v", err)
	}
}

func TestRedisValidateEnabledRequiresHost(t *testing.T) {
	t.Parallel()
	r := config.Redis{Enabled: true, Port: 6379}
	if !errors.Is(r.Validate(), config.ErrInvalidRedisHost) {
		t.Errorf("Expected ErrInvalidRedisHost, got %v", r.Validate())
	}
}

func TestRedisValidateEnabledInvalidPort(t *testing.T) {
	t.Parallel()
	r := config.Redis{Enabled: true, Host: "localhost", Port: 0}
	if !errors.Is(r.Validate(), config.ErrInvalidRedisPort) {
		t.Errorf("Expected ErrInvalidRedisPort, got %v", r.Validate())
	}
}

// --- Database Validation ---

func TestDatabaseValidateSQLiteNoHost(t *testing.T) {
	t.Parallel()
	d := config.Database{Driver: config.DatabaseDriverSQLite, Database: "test.db"}
	if err := d.Validate(); err != nil {
		t.Errorf("Expected nil error for SQLite without host, got %v", err)
	}
}

func TestDatabaseValidatePostgresEmptyHost(t *testing.T) {
	t.Parallel()
	d := config.Database{Driver: config.DatabaseDriverPostgres, Host: "", Port: 5432, Database: "test"}
	if !errors.Is(d.Validate(), config.ErrInvalidDatabaseHost) {
		t.Errorf("Expected ErrInvalidDatabaseHost, got %v", d.Validate())
	}
}

func TestDatabaseValidatePostgresInvalidPort(t *testing.T) {
	t.Parallel()
	d := config.Database{Driver: config.DatabaseDriverPostgres, Host: "localhost", Port: 0, Database: "test"}
	if !errors.Is(d.Validate(), config.ErrInvalidDatabasePort) {
		t.Errorf("Expected ErrInvalidDatabasePort, got %v", d.Validate())
	}
}

func TestDatabaseValidateEmptyName(t *testing.T) {
	t.Parallel()
	d := config.Database{Driver: config.DatabaseDriverSQLite, Database: ""}
	if !errors.Is(d.Validate(), config.ErrInvalidDatabaseName) {
		t.Errorf("Expected ErrInvalidDatabaseName, got %v", d.Validate())
	}
}

func TestDatabaseValidatePostgresValid(t *testing.T) {
	t.Parallel()
	d := config.Database{Driver: config.DatabaseDriverPostgres, Host: "localhost", Port: 5432, Database: "test"}
	if err := d.Validate(); err != nil {
		t.Errorf("Expected nil error, got %v", err)
	}
}

func TestDatabaseValidateInvalidDriver(t *testing.T) {
	t.Parallel()
	d := config.Database{Driver: "mysql", Database: "test"}
	if !errors.Is(d.Validate(), config.ErrInvalidDatabaseDriver) {
		t.Errorf("Expected ErrInvalidDatabaseDriver, got %v", d.Validate())
	}
}

// --- HTTP Validation ---

func TestHTTPValidateEmptyBind(t *testing.T) {
	t.Parallel()
	h := config.HTTP{Bind: "", Port: 8080, CanonicalHost: "http://localhost"}
	if !errors.Is(h.Validate(), config.ErrInvalidHTTPHost) {
		t.Errorf("Expected ErrInvalidHTTPHost, got %v", h.Validate())
	}
}

func TestHTTPValidateInvalidPort(t *testing.T) {
	t.Parallel()
	h := config.HTTP{Bind: "[::]", Port: -1, CanonicalHost: "http://localhost"}
	if !errors.Is(h.Validate(), config.ErrInvalidHTTPPort) {
		t.Errorf("Expected ErrInvalidHTTPPort, got %v", h.Validate())
	}
}

func TestHTTPValidateEmptyCanonicalHost(t *testing.T) {
	t.Parallel()
	h := config.HTTP{Bind: "[::]", Port: 8080, CanonicalHost: ""}
	if !errors.Is(h.Validate(), config.ErrHTTPCanonicalHostRequired) {
		t.Errorf("Expected ErrHTTPCanonicalHostRequired, got %v", h.Validate())
	}
}

// --- Metrics / PProf ---

func TestMetricsValidateDisabled(t *testing.T) {
	t.Parallel()
	m := config.Metrics{Enabled: false}
	if err := m.Validate(); err != nil {
		t.Errorf("Expected nil error when disabled, got %v", err)
	}
}

func TestMetricsValidateEnabledInvalidPort(t *testing.T) {
	t.Parallel()
	m := config.Metrics{Enabled: true, Bind: "127.0.0.1", Port: 0}
	if !errors.Is(m.Validate(), config.ErrInvalidMetricsPort) {
		t.Errorf("Expected ErrInvalidMetricsPort, got %v", m.Validate())
	}
}

func TestPProfValidateDisabled(t *testing.T) {
	t.Parallel()
	p := config.PProf{Enabled: false}
	if err := p.Validate(); err != nil {
		t.Errorf("Expected nil error when disabled, got %v", err)
	}
}

// --- Turn / Pairing ---

func TestTurnValidateSecretRequired(t *testing.T) {
	t.Parallel()
	tc := config.Turn{TTL: time.Second}
	if !errors.Is(tc.Validate(), config.ErrTurnSecretRequired) {
		t.Errorf("Expected ErrTurnSecretRequired, got %v", tc.Validate())
	}
}

func TestTurnValidateTTLRequired(t *testing.T) {
	t.Parallel()
	tc := config.Turn{Secret: "x"}
	if !errors.Is(tc.Validate(), config.ErrInvalidTurnTTL) {
		t.Errorf("Expected ErrInvalidTurnTTL, got %v", tc.Validate())
	}
}

func TestPairingValidateCodeLength(t *testing.T) {
	t.Parallel()
	p := config.Pairing{CodeLength: 1, TTL: time.Second}
	if !errors.Is(p.Validate(), config.ErrInvalidPairingCodeLength) {
		t.Errorf("Expected ErrInvalidPairingCodeLength, got %v", p.Validate())
	}
}
