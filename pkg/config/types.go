package config

// Config is the main configuration struct, loaded from YAML with env
// overrides applied on top.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Storage     StorageConfig     `yaml:"storage"`
	Security    SecurityConfig    `yaml:"security"`
	Live        LiveConfig        `yaml:"live"`
	Blob        BlobConfig        `yaml:"blob"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// ServerConfig holds http and tls settings.
type ServerConfig struct {
	Address string    `yaml:"address"`
	Port    int       `yaml:"port"`
	TLS     TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate configuration.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// StorageConfig holds pebble settings.
type StorageConfig struct {
	DBPath string `yaml:"db_path"`
}

// SecurityConfig holds identity and edge protection settings. Signing keys
// are the shared secrets the upstream identity provider uses to sign the
// X-User-Signature header; when none are configured, the bare X-User-ID
// header is trusted as-is.
type SecurityConfig struct {
	CORS struct {
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"cors"`
	RateLimit struct {
		RPS   float64 `yaml:"rps"`
		Burst int     `yaml:"burst"`
	} `yaml:"rate_limit"`
	IPWhitelist []string `yaml:"ip_whitelist"`
	SigningKeys []string `yaml:"signing_keys"`
}

// LiveConfig tunes the per-connection event channel.
type LiveConfig struct {
	// SendBuffer is the per-session outbound event buffer; pushes beyond
	// it are dropped (live fan-out is best-effort).
	SendBuffer int `yaml:"send_buffer"`
	// PingIntervalSecs is the websocket keepalive cadence.
	PingIntervalSecs int `yaml:"ping_interval_secs"`
	// ReadLimitBytes caps inbound frames (typing relay frames are tiny).
	ReadLimitBytes int64 `yaml:"read_limit_bytes"`
}

// BlobConfig points at the bucket that hosts uploaded images. An empty
// bucket disables image uploads; pre-resolved https refs still pass.
type BlobConfig struct {
	Region     string `yaml:"region"`
	Bucket     string `yaml:"bucket"`
	Endpoint   string `yaml:"endpoint"`
	PublicRead bool   `yaml:"public_read"`
}

// MaintenanceConfig controls the scheduled sweep (stale-session reaping).
type MaintenanceConfig struct {
	Enabled bool   `yaml:"enabled"`
	Cron    string `yaml:"cron"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// SendBufferOrDefault returns the configured session buffer or 64.
func (l LiveConfig) SendBufferOrDefault() int {
	if l.SendBuffer > 0 {
		return l.SendBuffer
	}
	return 64
}

// PingIntervalOrDefault returns the keepalive cadence or 30 seconds.
func (l LiveConfig) PingIntervalOrDefault() int {
	if l.PingIntervalSecs > 0 {
		return l.PingIntervalSecs
	}
	return 30
}

// ReadLimitOrDefault returns the inbound frame cap or 4 KiB.
func (l LiveConfig) ReadLimitOrDefault() int64 {
	if l.ReadLimitBytes > 0 {
		return l.ReadLimitBytes
	}
	return 4 * 1024
}
