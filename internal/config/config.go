package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	infisical "github.com/infisical/go-sdk"
	"github.com/spf13/viper"
)

// Wallet is one tracked address with its display label.
type Wallet struct {
	Address string
	Label   string
}

type Config struct {
	ListenAddr    string
	CORSOrigin    string
	CheckInterval time.Duration

	RPCURL        string
	ExtractURL    string
	ExtractToken  string
	APYURL        string
	TokenMint     string
	TokenSymbol   string
	DashboardURL  string
	WalletFeedURL string
	Wallets       []Wallet

	DiscordToken     string
	DiscordChannelID string
	LedgerChannelID  string
	Mention          string

	DatabaseURL   string
	RedisURL      string
	RedisPassword string
}

// Load reads EPOCHWATCH_* environment variables, overlays secrets from
// Infisical when its credentials are present, and validates the result.
func Load() (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("EPOCHWATCH")
	v.AutomaticEnv()

	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("cors_origin", "*")
	v.SetDefault("check_interval", time.Hour)
	v.SetDefault("rpc_url", "https://api.mainnet-beta.solana.com")
	v.SetDefault("apy_url", "https://extra-api.sanctum.so")
	v.SetDefault("token_symbol", "STRONG")
	v.SetDefault("redis_url", "redis://localhost:6379/0")

	cfg := Config{
		ListenAddr:    v.GetString("listen_addr"),
		CORSOrigin:    v.GetString("cors_origin"),
		CheckInterval: v.GetDuration("check_interval"),

		RPCURL:        v.GetString("rpc_url"),
		ExtractURL:    v.GetString("extract_url"),
		ExtractToken:  v.GetString("extract_token"),
		APYURL:        v.GetString("apy_url"),
		TokenMint:     v.GetString("token_mint"),
		TokenSymbol:   v.GetString("token_symbol"),
		DashboardURL:  v.GetString("dashboard_url"),
		WalletFeedURL: v.GetString("wallet_feed_url"),

		DiscordToken:     v.GetString("discord_token"),
		DiscordChannelID: v.GetString("discord_channel_id"),
		LedgerChannelID:  v.GetString("ledger_channel_id"),
		Mention:          v.GetString("mention"),

		DatabaseURL:   v.GetString("database_url"),
		RedisURL:      v.GetString("redis_url"),
		RedisPassword: v.GetString("redis_password"),
	}

	wallets, err := ParseWallets(v.GetString("wallets"))
	if err != nil {
		return Config{}, err
	}
	cfg.Wallets = wallets

	// expense embeds go to the report channel unless told otherwise
	if cfg.LedgerChannelID == "" {
		cfg.LedgerChannelID = cfg.DiscordChannelID
	}

	// If Infisical credentials are available, fetch secrets from Infisical
	clientID := os.Getenv("INFISICAL_CLIENT_ID")
	clientSecret := os.Getenv("INFISICAL_CLIENT_SECRET")
	if clientID != "" && clientSecret != "" {
		loadFromInfisical(&cfg, clientID, clientSecret)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ParseWallets parses "address:Label,address:Label" lists. The label is
// optional and defaults to the address.
func ParseWallets(raw string) ([]Wallet, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var wallets []Wallet
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		addr, label, _ := strings.Cut(part, ":")
		addr = strings.TrimSpace(addr)
		label = strings.TrimSpace(label)
		if addr == "" {
			return nil, fmt.Errorf("wallet entry %q has no address", part)
		}
		if label == "" {
			label = addr
		}
		wallets = append(wallets, Wallet{Address: addr, Label: label})
	}
	return wallets, nil
}

func (c Config) validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"EPOCHWATCH_DATABASE_URL", c.DatabaseURL},
		{"EPOCHWATCH_DISCORD_TOKEN", c.DiscordToken},
		{"EPOCHWATCH_DISCORD_CHANNEL_ID", c.DiscordChannelID},
		{"EPOCHWATCH_EXTRACT_URL", c.ExtractURL},
		{"EPOCHWATCH_EXTRACT_TOKEN", c.ExtractToken},
		{"EPOCHWATCH_DASHBOARD_URL", c.DashboardURL},
		{"EPOCHWATCH_WALLET_FEED_URL", c.WalletFeedURL},
		{"EPOCHWATCH_TOKEN_MINT", c.TokenMint},
	}
	var missing []string
	for _, r := range required {
		if r.value == "" {
			missing = append(missing, r.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	if c.CheckInterval <= 0 {
		return fmt.Errorf("check interval must be positive, got %s", c.CheckInterval)
	}
	return nil
}

func loadFromInfisical(cfg *Config, clientID, clientSecret string) {
	siteURL := envOr("INFISICAL_SITE_URL", "https://app.infisical.com")
	projectID := os.Getenv("INFISICAL_PROJECT_ID")
	envSlug := envOr("INFISICAL_ENV", "prod")

	if projectID == "" {
		slog.Warn("INFISICAL_PROJECT_ID not set, skipping Infisical")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := infisical.NewInfisicalClient(ctx, infisical.Config{
		SiteUrl:          siteURL,
		AutoTokenRefresh: false,
	})

	_, err := client.Auth().UniversalAuthLogin(clientID, clientSecret)
	if err != nil {
		slog.Error("infisical auth failed", "error", err)
		return
	}

	secrets := map[string]*string{
		"DISCORD_BOT_TOKEN": &cfg.DiscordToken,
		"DATABASE_URL":      &cfg.DatabaseURL,
		"EXTRACT_API_TOKEN": &cfg.ExtractToken,
		"REDIS_PASSWORD":    &cfg.RedisPassword,
	}

	for key, target := range secrets {
		if *target != "" {
			continue // env var already set, skip
		}
		secret, err := client.Secrets().Retrieve(infisical.RetrieveSecretOptions{
			SecretKey:   key,
			Environment: envSlug,
			ProjectID:   projectID,
			SecretPath:  "/",
		})
		if err != nil {
			slog.Warn("failed to retrieve secret from infisical", "key", key, "error", err)
			continue
		}
		*target = secret.SecretValue
		slog.Info("loaded secret from infisical", "key", key)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
