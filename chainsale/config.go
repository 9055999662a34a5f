package chainsale

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/deckforge/chainsale/internal/domain/catalog"
	"github.com/disgoorg/snowflake/v2"
	"github.com/pelletier/go-toml/v2"
)

func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer file.Close()

	cfg := DefaultConfig()
	if err = toml.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// DefaultConfig is what an empty config file yields.
func DefaultConfig() Config {
	return Config{
		Log: LogConfig{Level: slog.LevelInfo, Format: "text"},
		API: APIConfig{
			Address:         ":8080",
			RateLimit:       120,
			RateLimitWindow: 60,
			AllowedOrigins:  "*",
		},
		Market: MarketConfig{Params: catalog.DefaultParams()},
		Broker: BrokerConfig{Queue: "chainsale.sales"},
		Schedule: ScheduleConfig{
			PriceSnapshot: "0 */5 * * * *",
		},
	}
}

type Config struct {
	Log      LogConfig      `toml:"log"`
	DB       DBConfig       `toml:"db"`
	API      APIConfig      `toml:"api"`
	Market   MarketConfig   `toml:"market"`
	Access   AccessConfig   `toml:"access"`
	Broker   BrokerConfig   `toml:"broker"`
	Announce AnnounceConfig `toml:"announce"`
	Schedule ScheduleConfig `toml:"schedule"`
}

type LogConfig struct {
	Level     slog.Level `toml:"level"`
	Format    string     `toml:"format"`
	AddSource bool       `toml:"add_source"`
}

// DBConfig leaves Host empty to run without a database.
type DBConfig struct {
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	User         string `toml:"user"`
	Password     string `toml:"password"`
	Database     string `toml:"database"`
	PoolSize     int    `toml:"pool_size"`
	MaxIdleConns int    `toml:"max_idle_conns"`
	MaxLifetime  int    `toml:"max_lifetime"`
}

func (c DBConfig) Enabled() bool {
	return c.Host != ""
}

// APIConfig allows RateLimit requests per client every RateLimitWindow seconds.
type APIConfig struct {
	Address         string `toml:"address"`
	RateLimit       int    `toml:"rate_limit"`
	RateLimitWindow int    `toml:"rate_limit_window"`
	AllowedOrigins  string `toml:"allowed_origins"`
}

// MarketConfig seeds a fresh market. Persisted parameters win over it once a
// database holds any.
type MarketConfig struct {
	catalog.Params
	RarityFile string `toml:"rarity_file"`
}

type AccessConfig struct {
	Admins     []string `toml:"admins"`
	Listers    []string `toml:"listers"`
	Treasurers []string `toml:"treasurers"`
}

// BrokerConfig leaves URL empty to disable sale publishing.
type BrokerConfig struct {
	URL   string `toml:"url"`
	Queue string `toml:"queue"`
}

// AnnounceConfig leaves Token empty to disable Discord announcements.
type AnnounceConfig struct {
	Token     string       `toml:"token"`
	ChannelID snowflake.ID `toml:"channel_id"`
}

type ScheduleConfig struct {
	// PriceSnapshot is a six field cron expression; empty disables the job.
	PriceSnapshot string `toml:"price_snapshot"`
}

// RarityFile is the on-disk layout of a rarity table.
type RarityFile struct {
	Values []int `toml:"values"`
}

// LoadRarity reads a rarity table from a TOML file.
func LoadRarity(path string) ([]catalog.Tier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rarity file: %w", err)
	}

	var file RarityFile
	if err = toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to decode rarity file: %w", err)
	}

	tiers := make([]catalog.Tier, len(file.Values))
	for i, v := range file.Values {
		if v < int(catalog.MinTier) || v > int(catalog.MaxTier) {
			return nil, fmt.Errorf("rarity file entry %d: tier %d out of range", i, v)
		}
		tiers[i] = catalog.Tier(v)
	}
	return tiers, nil
}
