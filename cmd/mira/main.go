// Mira - a voice companion with a generated persona, tool use, and a
// web dashboard. Uses the Gemini Live API for speech-to-speech
// conversation.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"github.com/miravoice/mira/pkg/app"
)

func main() {
	cfg := parseFlags()

	a, err := app.New(cfg)
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := a.Init(ctx); err != nil {
		log.Fatalf("initialization failed: %v", err)
	}
	defer a.Shutdown()

	if err := a.Run(ctx); err != nil {
		log.Fatalf("runtime error: %v", err)
	}
}

// parseFlags parses command line flags and returns configuration.
// Environment variables are applied later by app.New.
func parseFlags() app.Config {
	cfg := app.DefaultConfig()

	debug := flag.Bool("debug", false, "Enable verbose debug logging")
	port := flag.String("port", cfg.Port, "Dashboard HTTP port")
	model := flag.String("model", "", "Live conversation model override")
	voice := flag.String("voice", "", "Prebuilt voice name override")
	personaHint := flag.String("persona-hint", "", "Style hint for first-run persona generation")
	staticDir := flag.String("static-dir", cfg.StaticDir, "Dashboard asset directory")
	flag.Parse()

	cfg.Debug = *debug
	cfg.Port = *port
	cfg.Model = *model
	cfg.Voice = *voice
	cfg.PersonaHint = *personaHint
	cfg.StaticDir = *staticDir
	return cfg
}
