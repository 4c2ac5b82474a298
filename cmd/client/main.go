package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GhostTheDark/FpsSobrevivencia-sub000/internal/game"
	"github.com/GhostTheDark/FpsSobrevivencia-sub000/internal/gameclient"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/kelseyhightower/envconfig"
	"github.com/phuslu/log"
)

// A headless player for soaking the server: it wanders a circle, takes a
// shot at whoever it sees, reloads when dry and respawns when killed.

type Config struct {
	ServerAddr    string `envconfig:"SERVER_ADDR" default:"127.0.0.1:28015"`
	ServerUDPAddr string `envconfig:"SERVER_UDP_ADDR"`
	PlayerName    string `envconfig:"PLAYER_NAME" default:"drifter"`
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

func logEvents(logger *log.Logger, events <-chan gameclient.Event) {
	for ev := range events {
		switch ev := ev.(type) {
		case gameclient.SpawnEvent:
			logger.Info().Uint32("client", ev.ClientID).Str("name", ev.Name).Msg("player spawned")
		case gameclient.DepartEvent:
			logger.Info().Uint32("client", ev.ClientID).Msg("player left")
		case gameclient.AttackEvent:
			logger.Info().
				Bool("success", ev.Success).
				Uint32("target", ev.TargetID).
				Float32("damage", ev.DamageDealt).
				Msg("attack resolved")
		case gameclient.DamageEvent:
			logger.Info().Uint32("attacker", ev.AttackerID).Float32("damage", ev.Damage).Msg("took damage")
		case gameclient.KillEvent:
			logger.Info().
				Uint32("victim", ev.VictimID).
				Str("killer", ev.KillerName).
				Str("weapon", ev.WeaponUsed).
				Msg("kill")
		case gameclient.RespawnEvent:
			logger.Info().Bool("granted", ev.Success).Msg("respawn answered")
		case gameclient.DisconnectedEvent:
			logger.Info().Str("reason", ev.Reason).Msg("disconnected")
		}
	}
}

func erringMain() error {
	config, err := loadConfig()
	if err != nil {
		return fmt.Errorf("could not process config: %w", err)
	}

	logger := configureLogger()

	client, err := gameclient.Dial(gameclient.Options{
		Addr:    config.ServerAddr,
		UDPAddr: config.ServerUDPAddr,
		Name:    config.PlayerName,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("could not dial game server: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runErr := make(chan error, 1)
	go func() {
		runErr <- client.Run(ctx)
	}()
	go logEvents(logger, client.Events())

	joinCtx, joinDone := context.WithTimeout(ctx, 10*time.Second)
	err = client.Join(joinCtx)
	joinDone()
	if err != nil {
		cancel()
		<-runErr
		return fmt.Errorf("could not join: %w", err)
	}
	if err := client.Ready(); err != nil {
		cancel()
		<-runErr
		return fmt.Errorf("could not activate: %w", err)
	}
	logger.Info().Uint32("client", client.ID()).Str("name", config.PlayerName).Msg("in the world")

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGTERM, syscall.SIGINT)

	ticker := time.NewTicker(time.Second / 60)
	defer ticker.Stop()

	var (
		heading    float64
		lastFrame  = time.Now()
		nextAction = time.Now()
	)

	for {
		select {
		case sig := <-signalChan:
			logger.Info().Msgf("received %+v signal", sig)
			client.Leave()
			return <-runErr

		case err := <-runErr:
			if err != nil {
				return fmt.Errorf("client run failed: %w", err)
			}
			return nil

		case now := <-ticker.C:
			dt := float32(now.Sub(lastFrame).Seconds())
			lastFrame = now

			heading += 0.4 * float64(dt)
			move := mgl32.Vec3{
				float32(math.Cos(heading)),
				0,
				float32(math.Sin(heading)),
			}
			yaw := float32(heading * 180 / math.Pi)
			for yaw > 180 {
				yaw -= 360
			}
			client.Step(gameclient.Input{Move: move, Yaw: yaw}, dt)

			if now.Before(nextAction) {
				continue
			}
			nextAction = now.Add(2 * time.Second)

			if !client.Alive() {
				if err := client.RequestRespawn(); err != nil {
					logger.Warn().Msgf("could not request respawn: %v", err)
				}
				continue
			}
			if magazine, _, reloading := client.Ammo(); magazine == 0 {
				if !reloading {
					if err := client.Reload(); err != nil {
						logger.Warn().Msgf("could not reload: %v", err)
					}
				}
				continue
			}
			if target, ok := pickTarget(client); ok {
				if err := client.Fire(target); err != nil {
					logger.Warn().Msgf("could not fire: %v", err)
				}
			}
		}
	}
}

// pickTarget aims at the head of the nearest living player, if any.
func pickTarget(client *gameclient.Client) (mgl32.Vec3, bool) {
	eye := client.Position().Add(mgl32.Vec3{0, game.EyeHeight, 0})

	var (
		best     mgl32.Vec3
		bestDist = float32(math.MaxFloat32)
		found    bool
	)
	for _, remote := range client.Remotes() {
		if !remote.Alive {
			continue
		}
		head := remote.Position.Add(mgl32.Vec3{0, game.EyeHeight, 0})
		dist := head.Sub(eye).Len()
		if dist < bestDist {
			best = head
			bestDist = dist
			found = true
		}
	}
	if !found {
		return mgl32.Vec3{}, false
	}
	return best.Sub(eye).Normalize(), true
}

func main() {
	if err := erringMain(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
