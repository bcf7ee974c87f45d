package server

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// ServerConfig represents the complete server configuration
type ServerConfig struct {
	Server ServerSettings  `hcl:"server,block"`
	Tables []TableConfig   `hcl:"table,block"`
	Ledger *LedgerSettings `hcl:"ledger,block"`
	Redis  *RedisSettings  `hcl:"redis,block"`
}

// ServerSettings contains server-level configuration
type ServerSettings struct {
	Address  string `hcl:"address,optional"`
	Port     int    `hcl:"port,optional"`
	LogLevel string `hcl:"log_level,optional"`
	LogFile  string `hcl:"log_file,optional"`
}

// TableConfig defines a blackjack table configuration
type TableConfig struct {
	Name             string `hcl:"name,label"`
	Slots            int    `hcl:"slots,optional"`
	Decks            int    `hcl:"decks,optional"`
	ReshuffleUnder   int    `hcl:"reshuffle_under,optional"`
	CountdownSeconds int    `hcl:"countdown_seconds,optional"`
	ResultsSeconds   int    `hcl:"results_seconds,optional"`
	DealPauseMS      int    `hcl:"deal_pause_ms,optional"`
	DealerPauseMS    int    `hcl:"dealer_pause_ms,optional"`
	MinBet           int64  `hcl:"min_bet,optional"`
	MaxBet           int64  `hcl:"max_bet,optional"`
}

// LedgerSettings selects and configures the balance backend
type LedgerSettings struct {
	Driver          string `hcl:"driver,optional"` // "memory" or "postgres"
	DSN             string `hcl:"dsn,optional"`
	StartingBalance int64  `hcl:"starting_balance,optional"`
}

// RedisSettings configures the optional event fanout to Redis
type RedisSettings struct {
	Addr     string `hcl:"addr"`
	Channel  string `hcl:"channel,optional"`
	Password string `hcl:"password,optional"`
	DB       int    `hcl:"db,optional"`
}

func (c TableConfig) dealPause() time.Duration {
	if c.DealPauseMS <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(c.DealPauseMS) * time.Millisecond
}

func (c TableConfig) dealerPause() time.Duration {
	if c.DealerPauseMS <= 0 {
		return time.Second
	}
	return time.Duration(c.DealerPauseMS) * time.Millisecond
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Server: ServerSettings{
			Address:  "localhost",
			Port:     8080,
			LogLevel: "info",
		},
		Tables: []TableConfig{
			{
				Name:             "main",
				Slots:            5,
				Decks:            3,
				ReshuffleUnder:   30,
				CountdownSeconds: 8,
				ResultsSeconds:   8,
				MinBet:           1,
				MaxBet:           10000,
			},
		},
		Ledger: &LedgerSettings{
			Driver:          "memory",
			StartingBalance: 1000,
		},
	}
}

// LoadServerConfig loads server configuration from HCL file
func LoadServerConfig(filename string) (*ServerConfig, error) {
	// Missing file falls back to defaults
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return DefaultServerConfig(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var config ServerConfig
	diags = gohcl.DecodeBody(file.Body, nil, &config)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	// Apply defaults for missing values
	if config.Server.Address == "" {
		config.Server.Address = "localhost"
	}
	if config.Server.Port == 0 {
		config.Server.Port = 8080
	}
	if config.Server.LogLevel == "" {
		config.Server.LogLevel = "info"
	}
	if len(config.Tables) == 0 {
		config.Tables = DefaultServerConfig().Tables
	}
	for i := range config.Tables {
		if config.Tables[i].Slots == 0 {
			config.Tables[i].Slots = 5
		}
		if config.Tables[i].Decks == 0 {
			config.Tables[i].Decks = 3
		}
		if config.Tables[i].ReshuffleUnder == 0 {
			config.Tables[i].ReshuffleUnder = 30
		}
		if config.Tables[i].CountdownSeconds == 0 {
			config.Tables[i].CountdownSeconds = 8
		}
		if config.Tables[i].ResultsSeconds == 0 {
			config.Tables[i].ResultsSeconds = 8
		}
		if config.Tables[i].MinBet == 0 {
			config.Tables[i].MinBet = 1
		}
		if config.Tables[i].MaxBet == 0 {
			config.Tables[i].MaxBet = 10000
		}
	}
	if config.Ledger == nil {
		config.Ledger = DefaultServerConfig().Ledger
	}
	if config.Ledger.Driver == "" {
		config.Ledger.Driver = "memory"
	}
	if config.Ledger.StartingBalance == 0 && config.Ledger.Driver == "memory" {
		config.Ledger.StartingBalance = 1000
	}
	if config.Redis != nil && config.Redis.Channel == "" {
		config.Redis.Channel = "blackjack.events"
	}

	return &config, nil
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}

	if len(c.Tables) == 0 {
		return fmt.Errorf("at least one table must be configured")
	}

	seen := make(map[string]bool)
	for _, table := range c.Tables {
		if seen[table.Name] {
			return fmt.Errorf("duplicate table name: %s", table.Name)
		}
		seen[table.Name] = true

		if table.Slots < 5 || table.Slots > 6 {
			return fmt.Errorf("table %s: slots must be 5 or 6", table.Name)
		}
		if table.Decks < 1 || table.Decks > 8 {
			return fmt.Errorf("table %s: decks must be between 1 and 8", table.Name)
		}
		if table.ReshuffleUnder >= table.Decks*52 {
			return fmt.Errorf("table %s: reshuffle threshold exceeds shoe size", table.Name)
		}
		if table.MinBet <= 0 {
			return fmt.Errorf("table %s: minimum bet must be positive", table.Name)
		}
		if table.MaxBet < table.MinBet {
			return fmt.Errorf("table %s: maximum bet must be at least the minimum", table.Name)
		}
	}

	switch c.Ledger.Driver {
	case "memory":
	case "postgres":
		if c.Ledger.DSN == "" {
			return fmt.Errorf("postgres ledger requires a dsn")
		}
	default:
		return fmt.Errorf("unknown ledger driver: %s", c.Ledger.Driver)
	}

	if c.Redis != nil && c.Redis.Addr == "" {
		return fmt.Errorf("redis block requires an addr")
	}

	return nil
}

// GetServerAddress returns the full server address
func (c *ServerConfig) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}

// GetTableByName returns a table configuration by name
func (c *ServerConfig) GetTableByName(name string) *TableConfig {
	for _, table := range c.Tables {
		if table.Name == name {
			return &table
		}
	}
	return nil
}
