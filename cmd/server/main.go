package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/GhostTheDark/FpsSobrevivencia-sub000/internal/gameserver"
	"github.com/GhostTheDark/FpsSobrevivencia-sub000/internal/weapons"
	"github.com/kelseyhightower/envconfig"
	"github.com/phuslu/log"
)

type Config struct {
	Addr    string `envconfig:"ADDR" default:"0.0.0.0:28015"`
	UDPAddr string `envconfig:"UDP_ADDR"`

	MaxPlayers int `envconfig:"MAX_PLAYERS" default:"16"`

	AnticheatPolicy      string `envconfig:"ANTICHEAT_POLICY" default:"observe"`
	AnticheatStrikeLimit int    `envconfig:"ANTICHEAT_STRIKE_LIMIT" default:"10"`

	// WeaponCatalog points at a JSON override file; empty runs the
	// built-in set. cmd/weaponschema emits the schema for it.
	WeaponCatalog string `envconfig:"WEAPON_CATALOG"`
}

func loadConfig() (*Config, error) {
	config := new(Config)
	if err := envconfig.Process("", config); err != nil {
		return nil, err
	}
	return config, nil
}

func configureLogger() *log.Logger {
	logger := log.DefaultLogger

	// https://github.com/phuslu/log?tab=readme-ov-file#pretty-console-writer
	logger.Caller = 1
	logger.TimeFormat = "15:04:05"
	logger.Writer = &log.ConsoleWriter{
		ColorOutput:    true,
		QuoteString:    true,
		EndWithMessage: true,
	}

	return &logger
}

func erringMain() error {
	config, err := loadConfig()
	if err != nil {
		return fmt.Errorf("could not process config: %w", err)
	}

	logger := configureLogger()

	var catalog *weapons.Catalog
	if config.WeaponCatalog != "" {
		catalog, err = weapons.Load(config.WeaponCatalog)
		if err != nil {
			return err
		}
		logger.Info().Msgf("loaded weapon catalog override from %s", config.WeaponCatalog)
	}

	server, err := gameserver.New(gameserver.Options{
		Addr:            config.Addr,
		UDPAddr:         config.UDPAddr,
		MaxSessions:     config.MaxPlayers,
		AnticheatPolicy: gameserver.AnticheatPolicy(config.AnticheatPolicy),
		StrikeLimit:     config.AnticheatStrikeLimit,
		Catalog:         catalog,
		Logger:          logger,
	})
	if err != nil {
		return fmt.Errorf("could not construct game server: %w", err)
	}
	logger.Info().Msgf("started game server on %s (movement on %s)", server.Addr(), server.UDPAddr())

	wg := new(sync.WaitGroup)
	ctx, cancel := context.WithCancel(context.Background())

	wg.Add(1)
	var serverRunErr error
	go func() {
		defer wg.Done()
		serverRunErr = server.Run(ctx)
	}()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGTERM, syscall.SIGINT)

	sig := <-signalChan
	logger.Info().Msgf("received %+v signal", sig)

	cancel()
	wg.Wait()
	if serverRunErr != nil {
		return fmt.Errorf("game server run failed: %w", serverRunErr)
	}

	return nil
}

func main() {
	if err := erringMain(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
