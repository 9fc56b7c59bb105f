package config

import "time"

// Config stores the application configuration. It is loaded with
// github.com/USA-RedDragon/configulator, which binds each field from an
// environment variable (and optionally a flag) rather than relying on a
// package-level singleton.
type Config struct {
	LogLevel     LogLevel `name:"log-level" default:"info" description:"Logging verbosity"`
	Secret       string   `name:"secret" description:"Key used to sign and validate viewer bearer tokens"`
	PasswordSalt string   `name:"password-salt" description:"If set, Secret is treated as a passphrase and stretched with PBKDF2 using this salt before use"`
	CORSHosts    []string `name:"cors-hosts" description:"Origins allowed to open WebSocket/HTTP connections"`

	HTTP     HTTP     `name:"http"`
	Redis    Redis    `name:"redis"`
	Database Database `name:"database"`
	Metrics  Metrics  `name:"metrics"`
	PProf    PProf    `name:"pprof"`
	Turn     Turn     `name:"turn"`
	Pairing  Pairing  `name:"pairing"`
	Tunnel   Tunnel   `name:"tunnel"`
}

// HTTP configures the gin-based registration/pairing/status/proxy/websocket server.
type HTTP struct {
	Bind          string   `name:"bind" default:"[::]" description:"Address the HTTP server binds to"`
	Port          int      `name:"port" default:"8080" description:"Port the HTTP server listens on"`
	CanonicalHost string   `name:"canonical-host" description:"Externally reachable base URL, used in absolute links"`
	Debug         bool     `name:"debug" default:"false" description:"Run gin in debug mode with verbose request logging"`
	TrustedProxies []string `name:"trusted-proxies" description:"Proxies trusted to set X-Forwarded-For"`
}

// Redis configures the optional Redis backend shared by the Presence Store
// and the cross-instance pub/sub coordinator. When disabled both fall back
// to in-process implementations suitable for a single hub instance.
type Redis struct {
	Enabled  bool   `name:"enabled" default:"false" description:"Use Redis for presence and pub/sub instead of the in-process fallback"`
	Host     string `name:"host" default:"localhost" description:"Redis host"`
	Port     int    `name:"port" default:"6379" description:"Redis port"`
	Password string `name:"password" description:"Redis password"`
}

// Database configures the relational Persistence Store.
type Database struct {
	Driver          DatabaseDriver `name:"driver" default:"sqlite" description:"Database driver"`
	Host            string         `name:"host" description:"Database host (ignored for sqlite)"`
	Port            int            `name:"port" description:"Database port (ignored for sqlite)"`
	Username        string         `name:"username" description:"Database username (ignored for sqlite)"`
	Password        string         `name:"password" description:"Database password (ignored for sqlite)"`
	Database        string         `name:"database" default:"watchhub.db" description:"Database name, or sqlite file path/DSN"`
	ExtraParameters []string       `name:"extra-parameters" description:"Extra sqlite DSN parameters, e.g. mode=memory,cache=shared"`
}

// Metrics configures the Prometheus metrics endpoint and OpenTelemetry tracing.
type Metrics struct {
	Enabled      bool   `name:"enabled" default:"false" description:"Serve Prometheus metrics"`
	Bind         string `name:"bind" default:"127.0.0.1" description:"Address the metrics server binds to"`
	Port         int    `name:"port" default:"9100" description:"Port the metrics server listens on"`
	OTLPEndpoint string `name:"otlp-endpoint" description:"OTLP gRPC collector endpoint; tracing is disabled when empty"`
}

// PProf configures the debug pprof endpoint.
type PProf struct {
	Enabled bool   `name:"enabled" default:"false" description:"Serve net/http/pprof endpoints"`
	Bind    string `name:"bind" default:"127.0.0.1" description:"Address the pprof server binds to"`
	Port    int    `name:"port" default:"6060" description:"Port the pprof server listens on"`
}

// Turn configures the ephemeral TURN REST credential minter (spec.md §4.1).
type Turn struct {
	Secret       string        `name:"secret" description:"Shared secret with the TURN server, used for HMAC-SHA1 credential minting"`
	TTL          time.Duration `name:"ttl" default:"86400s" description:"Lifetime of minted TURN credentials"`
	PublicHost   string        `name:"public-host" description:"TURN host advertised to viewers, and to devices when internal-host is empty"`
	InternalHost string        `name:"internal-host" description:"TURN host advertised to devices, if different from public-host"`
	Port         int           `name:"port" default:"3478" description:"TURN port advertised alongside the credential"`
}

// Pairing configures device pairing-code generation (spec.md §4.7).
type Pairing struct {
	CodeLength int           `name:"code-length" default:"8" description:"Length of generated pairing codes"`
	TTL        time.Duration `name:"ttl" default:"600s" description:"Lifetime of an unredeemed pairing code"`
}

// Tunnel configures the HTTP proxy frontend (spec.md §4.5).
type Tunnel struct {
	RequestTimeout time.Duration `name:"request-timeout" default:"30s" description:"How long the frontend waits for a device's proxied HTTP response before returning 504"`
	MaxBodyBytes   int64         `name:"max-body-bytes" default:"10485760" description:"Maximum tunneled request body size; larger requests get 413. Response bodies are not limited"`
}
