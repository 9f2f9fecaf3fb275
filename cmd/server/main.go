package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/omochice/presence-relay/internal/auth"
	"github.com/omochice/presence-relay/internal/chat"
	"github.com/omochice/presence-relay/internal/config"
	"github.com/omochice/presence-relay/internal/crypto"
	"github.com/omochice/presence-relay/internal/transport/ws"
	"github.com/omochice/presence-relay/internal/web"
)

func main() {
	chatAddr := flag.String("chat-addr", "", "Relay WebSocket address (overrides CHAT_ADDR)")
	webAddr := flag.String("web-addr", "", "Web/OAuth server address (overrides WEB_ADDR)")
	flag.Parse()

	cfg := config.Load()
	if *chatAddr != "" {
		cfg.ChatAddr = *chatAddr
	}
	if *webAddr != "" {
		cfg.WebAddr = *webAddr
	}

	core := chat.NewCore()
	codec := crypto.NewCodec()
	relay := ws.New(cfg.ChatAddr, core, codec, cfg.QueueSize)

	clients := make(map[auth.Provider]*auth.Client)
	if cfg.Google.Configured() {
		clients[auth.ProviderGoogle] = auth.NewClient(auth.ProviderGoogle, auth.Credentials{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			RedirectURL:  cfg.Google.RedirectURL,
		})
	}
	if cfg.GitHub.Configured() {
		clients[auth.ProviderGitHub] = auth.NewClient(auth.ProviderGitHub, auth.Credentials{
			ClientID:     cfg.GitHub.ClientID,
			ClientSecret: cfg.GitHub.ClientSecret,
			RedirectURL:  cfg.GitHub.RedirectURL,
		})
	}
	issuer := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
	webSrv := web.New(cfg.WebAddr, cfg.FrontendURL, clients, issuer)

	errChan := make(chan error, 2)
	go func() {
		log.Printf("Starting relay on %s...", cfg.ChatAddr)
		errChan <- relay.Start()
	}()
	go func() {
		log.Printf("Starting web server on %s...", cfg.WebAddr)
		errChan <- webSrv.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		if err != nil {
			log.Fatalf("Server error: %v", err)
		}
	case sig := <-sigChan:
		log.Printf("Received signal %v, shutting down...", sig)
		relay.Stop()
		webSrv.Stop()
	}

	log.Println("Relay stopped")
}
