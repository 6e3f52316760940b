// Package config reads the marketplace service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go-paylink/utils"
)

const (
	DefaultPort           = "3002"
	DefaultAppURL         = "http://localhost:3002"
	DefaultMerchantWallet = "https://ilp.interledger-test.dev/gio"
	DefaultClientWallet   = "https://ilp.interledger-test.dev/b-e"
	CallbackPath          = "/api/marketplace/callback"
)

type Config struct {
	Port   string
	AppURL string

	MerchantWallet string            // default merchant wallet address
	Merchants      map[string]string // merchantId → wallet address
	ClientWallet   string            // client identity sent in grant requests

	RequestTimeout  time.Duration
	PollInterval    time.Duration
	PollMaxAttempts int
	PaymentTTL      time.Duration
	SweepInterval   time.Duration
	TicketSecret    string
	TicketTTL       time.Duration
	RateLimitPerMin int
	RateLimitBurst  int
	LogLevel        string
}

// Load reads the environment. Call utils.LoadEnv first to pick up .env.
func Load() (*Config, error) {
	cfg := &Config{
		Port:           utils.GetEnv("PORT", DefaultPort),
		AppURL:         strings.TrimRight(utils.GetEnv("APP_URL", DefaultAppURL), "/"),
		MerchantWallet: utils.GetEnv("WALLET_ADDRESS_URL", DefaultMerchantWallet),
		ClientWallet:   utils.GetEnv("WALLET_ADDRESS_CLIENT", DefaultClientWallet),
		TicketSecret:   utils.GetEnv("TICKET_SECRET", ""),
		LogLevel:       utils.GetEnv("LOG_LEVEL", "info"),
	}

	var errs []error
	duration := func(key string, fallback time.Duration) time.Duration {
		d, err := utils.GetEnvDuration(key, fallback)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
		return d
	}
	integer := func(key string, fallback int) int {
		n, err := utils.GetEnvInt(key, fallback)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
		return n
	}

	cfg.RequestTimeout = duration("REQUEST_TIMEOUT", 30*time.Second)
	cfg.PollInterval = duration("POLL_INTERVAL", 2*time.Second)
	cfg.PollMaxAttempts = integer("POLL_MAX_ATTEMPTS", 10)
	cfg.PaymentTTL = duration("PAYMENT_TTL", 24*time.Hour)
	cfg.SweepInterval = duration("STORE_SWEEP_INTERVAL", 5*time.Minute)
	cfg.TicketTTL = duration("TICKET_TTL", 24*time.Hour)
	cfg.RateLimitPerMin = integer("RATE_LIMIT_PER_MINUTE", 30)
	cfg.RateLimitBurst = integer("RATE_LIMIT_BURST", 10)

	merchants, err := ParseMerchants(utils.GetEnv("MERCHANT_WALLETS", ""))
	if err != nil {
		errs = append(errs, fmt.Errorf("MERCHANT_WALLETS: %w", err))
	}
	cfg.Merchants = merchants

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseMerchants parses "id=wallet,id=wallet".
func ParseMerchants(raw string) (map[string]string, error) {
	out := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		id, wallet, ok := strings.Cut(pair, "=")
		id, wallet = strings.TrimSpace(id), strings.TrimSpace(wallet)
		if !ok || id == "" || wallet == "" {
			return nil, fmt.Errorf("malformed entry %q, want id=wallet", pair)
		}
		out[id] = wallet
	}
	return out, nil
}

func (c *Config) Validate() error {
	var errs []error
	if u, err := url.Parse(c.AppURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("APP_URL %q is not an absolute URL", c.AppURL))
	}
	if c.MerchantWallet == "" {
		errs = append(errs, errors.New("WALLET_ADDRESS_URL is required"))
	}
	if c.ClientWallet == "" {
		errs = append(errs, errors.New("WALLET_ADDRESS_CLIENT is required"))
	}
	for name, d := range map[string]time.Duration{
		"REQUEST_TIMEOUT":      c.RequestTimeout,
		"POLL_INTERVAL":        c.PollInterval,
		"PAYMENT_TTL":          c.PaymentTTL,
		"STORE_SWEEP_INTERVAL": c.SweepInterval,
		"TICKET_TTL":           c.TicketTTL,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, d))
		}
	}
	for name, n := range map[string]int{
		"POLL_MAX_ATTEMPTS":     c.PollMaxAttempts,
		"RATE_LIMIT_PER_MINUTE": c.RateLimitPerMin,
		"RATE_LIMIT_BURST":      c.RateLimitBurst,
	} {
		if n <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", name, n))
		}
	}
	return errors.Join(errs...)
}

// CallbackURL is where the authorization server sends the buyer back to.
func (c *Config) CallbackURL() string {
	return c.AppURL + CallbackPath
}

// MerchantWalletFor looks up merchantID, falling back to the default wallet.
func (c *Config) MerchantWalletFor(merchantID string) string {
	if w, ok := c.Merchants[merchantID]; ok && merchantID != "" {
		return w
	}
	return c.MerchantWallet
}

func (c *Config) Addr() string {
	return ":" + c.Port
}
