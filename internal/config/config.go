package config

import (
	"errors"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Spec is the environment configuration for the auth API.
type Spec struct {
	Addr     string `envconfig:"addr" default:":8080"`
	LogLevel string `envconfig:"log_level" default:"info"`

	DSN             string        `envconfig:"pg_dsn"`
	DBMaxOpenConns  int           `envconfig:"db_max_open_conns" default:"10"`
	DBMaxIdleConns  int           `envconfig:"db_max_idle_conns" default:"10"`
	DBConnLifetime  time.Duration `envconfig:"db_conn_lifetime" default:"30m"`

	Issuer   string `envconfig:"token_issuer" default:"moldash"`
	Audience string `envconfig:"token_audience" default:"moldash-api"`

	AccessTTL  time.Duration `envconfig:"access_ttl" default:"15m"`
	RefreshTTL time.Duration `envconfig:"refresh_ttl" default:"720h"`

	// SigningKeys holds "kid:secret" pairs, comma separated. The first entry
	// is the current signing key; the rest stay valid for verification only.
	SigningKeys string `envconfig:"signing_keys" required:"true"`

	// Retention controls how long rotated/revoked refresh records are kept
	// before the sweeper deletes them.
	Retention     time.Duration `envconfig:"refresh_retention" default:"2160h"`
	SweepInterval time.Duration `envconfig:"refresh_sweep_interval" default:"1h"`

	RateLimitPerSecond int `envconfig:"rate_limit_per_second" default:"20"`
	RateLimitBurst     int `envconfig:"rate_limit_burst" default:"40"`
}

// Load reads the Spec from the environment using the MOLDASH prefix.
func Load() (Spec, error) {
	var spec Spec
	if err := envconfig.Process("moldash", &spec); err != nil {
		return Spec{}, err
	}
	return spec, nil
}

// KeyPairs splits SigningKeys into ordered (kid, secret) pairs.
func (s Spec) KeyPairs() ([][2]string, error) {
	var pairs [][2]string
	for _, entry := range strings.Split(s.SigningKeys, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		kid, secret, ok := strings.Cut(entry, ":")
		if !ok || strings.TrimSpace(kid) == "" || strings.TrimSpace(secret) == "" {
			return nil, errors.New("config: signing key entries must be kid:secret")
		}
		pairs = append(pairs, [2]string{strings.TrimSpace(kid), strings.TrimSpace(secret)})
	}
	if len(pairs) == 0 {
		return nil, errors.New("config: at least one signing key is required")
	}
	return pairs, nil
}
