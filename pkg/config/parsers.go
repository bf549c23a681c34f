package config

import (
	"flag"
	"net"
	"os"
	"strconv"
	"strings"
)

// Flags holds parsed command-line flag values and which were set.
type Flags struct {
	Addr   string
	DB     string
	Config string
	Set    map[string]bool
}

// EffectiveConfigResult holds the merged configuration plus the resolved
// listen address and DB path, with source tracking for the banner.
type EffectiveConfigResult struct {
	Config *Config
	Addr   string
	DBPath string
	Source string // "flags", "config", or "env"
}

// ParseConfigFlags parses command-line flags and returns them as a Flags
// struct.
func ParseConfigFlags() Flags {
	addrPtr := flag.String("addr", ":8080", "HTTP listen address")
	dbPtr := flag.String("db", "./.database", "Pebble DB path")
	cfgPtr := flag.String("config", "./config.yaml", "Path to config file")
	flag.Parse()
	setFlags := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })
	return Flags{Addr: *addrPtr, DB: *dbPtr, Config: *cfgPtr, Set: setFlags}
}

func parseList(v string) []string {
	if v == "" {
		return nil
	}
	var parts []string
	for _, p := range strings.Split(v, ",") {
		if s := strings.TrimSpace(p); s != "" {
			parts = append(parts, s)
		}
	}
	return parts
}

// applyEnvOverrides layers CHATRELAY_* environment variables onto cfg and
// reports whether any were present.
func applyEnvOverrides(cfg *Config) bool {
	envUsed := false

	if v := os.Getenv("CHATRELAY_ADDR"); v != "" {
		envUsed = true
		if h, p, err := net.SplitHostPort(v); err == nil {
			cfg.Server.Address = h
			if pi, err := strconv.Atoi(p); err == nil {
				cfg.Server.Port = pi
			}
		} else {
			cfg.Server.Address = v
		}
	}
	if v := os.Getenv("CHATRELAY_DB_PATH"); v != "" {
		envUsed = true
		cfg.Storage.DBPath = v
	}
	if v := os.Getenv("CHATRELAY_CORS_ORIGINS"); v != "" {
		envUsed = true
		cfg.Security.CORS.AllowedOrigins = parseList(v)
	}
	if v := os.Getenv("CHATRELAY_RATE_RPS"); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			envUsed = true
			cfg.Security.RateLimit.RPS = f
		}
	}
	if v := os.Getenv("CHATRELAY_RATE_BURST"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			envUsed = true
			cfg.Security.RateLimit.Burst = n
		}
	}
	if v := os.Getenv("CHATRELAY_IP_WHITELIST"); v != "" {
		envUsed = true
		cfg.Security.IPWhitelist = parseList(v)
	}
	if v := os.Getenv("CHATRELAY_SIGNING_KEYS"); v != "" {
		envUsed = true
		cfg.Security.SigningKeys = parseList(v)
	}
	if v := os.Getenv("CHATRELAY_BLOB_BUCKET"); v != "" {
		envUsed = true
		cfg.Blob.Bucket = v
	}
	if v := os.Getenv("CHATRELAY_BLOB_REGION"); v != "" {
		envUsed = true
		cfg.Blob.Region = v
	}
	if v := os.Getenv("CHATRELAY_BLOB_ENDPOINT"); v != "" {
		envUsed = true
		cfg.Blob.Endpoint = v
	}
	if v := os.Getenv("CHATRELAY_MAINTENANCE_CRON"); v != "" {
		envUsed = true
		cfg.Maintenance.Enabled = true
		cfg.Maintenance.Cron = v
	}
	if c := os.Getenv("CHATRELAY_TLS_CERT"); c != "" {
		envUsed = true
		cfg.Server.TLS.CertFile = c
	}
	if k := os.Getenv("CHATRELAY_TLS_KEY"); k != "" {
		envUsed = true
		cfg.Server.TLS.KeyFile = k
	}
	return envUsed
}

// LoadEffective loads the config file (when present), applies environment
// overrides on top, and lets explicit flags win for addr and db path. The
// returned result records which source decided the listen address.
func LoadEffective(flags Flags) (EffectiveConfigResult, error) {
	var res EffectiveConfigResult

	cfgPath := ResolveConfigPath(flags.Config, flags.Set["config"])
	cfg, err := Load(cfgPath)
	switch {
	case err == nil:
		res.Source = "config"
	case flags.Set["config"]:
		// user explicitly pointed at a file; its absence is fatal
		return res, err
	default:
		cfg = &Config{}
	}

	if applyEnvOverrides(cfg) && res.Source == "" {
		res.Source = "env"
	}

	addr := cfg.Addr()
	if flags.Set["addr"] {
		addr = flags.Addr
		res.Source = "flags"
	}
	dbPath := cfg.Storage.DBPath
	if dbPath == "" {
		dbPath = flags.DB
	}
	if flags.Set["db"] {
		dbPath = flags.DB
		res.Source = "flags"
	}
	if res.Source == "" {
		res.Source = "flags"
	}

	res.Config = cfg
	res.Addr = addr
	res.DBPath = dbPath
	return res, nil
}
