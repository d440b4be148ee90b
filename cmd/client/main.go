package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/roomcast/roomcast/internal/client"
	"github.com/roomcast/roomcast/internal/config"
	"github.com/roomcast/roomcast/internal/device"
)

func main() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	_ = godotenv.Load()

	cfg := config.LoadClient()
	flag.StringVar(&cfg.ServerURL, "url", cfg.ServerURL, "relay server websocket URL")
	flag.StringVar(&cfg.Room, "room", cfg.Room, "room to join")
	flag.StringVar(&cfg.Username, "name", cfg.Username, "display name")
	flag.Parse()

	if cfg.Room == "" || cfg.Username == "" {
		log.Fatal().Msg("both -room and -name are required")
	}

	audioCtx, err := device.NewContext()
	if err != nil {
		log.Fatal().Err(err).Msg("audio init failed")
	}
	defer audioCtx.Close()

	speaker, err := audioCtx.NewSpeaker(cfg.SampleRate)
	if err != nil {
		log.Fatal().Err(err).Msg("playback device unavailable")
	}
	playback := client.NewPlaybackQueue(speaker)
	playback.Start()
	defer playback.Close()

	cb := client.Callbacks{
		Meter: func(id string, energy float64) {
			log.Debug().Str("id", id).Float64("energy", energy).Msg("meter")
		},
		UserJoined: func(id, name string) {
			log.Info().Str("id", id).Str("username", name).Msg("user joined")
		},
		UserLeft: func(id string) {
			log.Info().Str("id", id).Msg("user left")
		},
		RoomsUpdated: func(names []string) {
			log.Debug().Strs("rooms", names).Msg("room directory")
		},
		RoomLeft: func() {
			log.Info().Msg("left room")
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, err := client.Dial(ctx, cfg.ServerURL, playback, cb)
	if err != nil {
		log.Fatal().Err(err).Msg("connect failed")
	}
	defer c.Close()

	readDone := make(chan error, 1)
	go func() { readDone <- c.Run() }()

	if err := c.Join(cfg.Room, cfg.Username); err != nil {
		log.Fatal().Err(err).Msg("join failed")
	}
	log.Info().Str("room", cfg.Room).Str("username", cfg.Username).Msg("joining")

	// A missing microphone leaves the session listen-only.
	captureDone := make(chan error, 1)
	mic, err := audioCtx.NewMicrophone(cfg.SampleRate)
	if err != nil {
		log.Warn().Err(err).Msg("microphone unavailable, listening only")
	} else {
		capture := client.NewCapture(mic, c, c.ID, client.CaptureOptions{
			ThresholdDB: cfg.ThresholdDB,
			Padding:     cfg.Padding,
			BlockSize:   cfg.BlockSize,
			Meter:       cb.Meter,
		})
		go func() { captureDone <- capture.Run(ctx) }()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		log.Info().Msg("shutting down")
	case err := <-readDone:
		if err != nil {
			log.Error().Err(err).Msg("connection lost")
		}
		return
	case err := <-captureDone:
		if err != nil && err != context.Canceled {
			log.Error().Err(err).Msg("capture failed")
		}
	}

	// Explicit leave so the server evicts us promptly instead of waiting
	// for the connection-drop timeout.
	cancel()
	if err := c.Leave(); err != nil {
		log.Warn().Err(err).Msg("leave failed")
	}
}
