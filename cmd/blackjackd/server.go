package main

import (
	"fmt"

	"github.com/coder/quartz"

	"github.com/stakehouse/blackjackd/cmd/blackjackd/shared"
	"github.com/stakehouse/blackjackd/internal/ledger"
	"github.com/stakehouse/blackjackd/internal/server"
)

// ServerCmd contains core server configuration
type ServerCmd struct {
	Config string `kong:"default='blackjackd.hcl',help='Path to HCL configuration file'"`
	Addr   string `kong:"help='Listen address, overrides the config file'"`
	Debug  bool   `kong:"help='Enable debug logging'"`
}

func (c *ServerCmd) Run() error {
	cfg, err := server.LoadServerConfig(c.Config)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	level := cfg.Server.LogLevel
	if c.Debug {
		level = "debug"
	}
	logger := shared.SetupLogger(level, cfg.Server.LogFile)

	// Balance backend
	var bank ledger.Ledger
	switch cfg.Ledger.Driver {
	case "postgres":
		pg, err := ledger.NewPostgres(cfg.Ledger.DSN, logger)
		if err != nil {
			return fmt.Errorf("connecting to postgres ledger: %w", err)
		}
		defer func() { _ = pg.Close() }()
		bank = pg
	default:
		bank = ledger.NewMemory()
	}

	addr := cfg.GetServerAddress()
	if c.Addr != "" {
		addr = c.Addr
	}

	s := server.NewServer(addr, logger)
	gameService := server.NewGameService(bank, s, quartz.NewReal(), logger, cfg.Ledger.StartingBalance)
	s.SetGameService(gameService)

	// Optional event fanout to Redis
	if cfg.Redis != nil {
		publisher, err := server.NewRedisPublisher(*cfg.Redis, logger)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer func() { _ = publisher.Close() }()
		gameService.AddEventSubscriber(publisher)
	}

	for _, table := range cfg.Tables {
		if _, err := gameService.CreateTable(table); err != nil {
			return err
		}
	}

	logger.Info("starting blackjack server",
		"addr", addr,
		"tables", len(cfg.Tables),
		"ledger", cfg.Ledger.Driver)

	// Graceful shutdown on interrupt
	ctx := shared.SetupSignalHandler(logger)

	serverErr := make(chan error, 1)
	go func() {
		if err := s.Start(); err != nil {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down server")
		return s.Stop()
	case err := <-serverErr:
		return err
	}
}

// CheckConfigCmd validates a configuration file without starting anything
type CheckConfigCmd struct {
	Config string `kong:"arg='',default='blackjackd.hcl',help='Path to HCL configuration file'"`
}

func (c *CheckConfigCmd) Run() error {
	cfg, err := server.LoadServerConfig(c.Config)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	fmt.Printf("%s: ok (%d tables, %s ledger)\n", c.Config, len(cfg.Tables), cfg.Ledger.Driver)
	return nil
}
