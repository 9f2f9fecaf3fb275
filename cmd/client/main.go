package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/omochice/presence-relay/internal/client/ws"
	"github.com/omochice/presence-relay/pkg/protocol"
)

func main() {
	addr := flag.String("addr", "ws://127.0.0.1:8081", "Relay server address")
	userID := flag.String("id", "", "User id (random if empty)")
	username := flag.String("name", "anonymous", "Display name")
	flag.Parse()

	if *userID == "" {
		*userID = uuid.NewString()
	}

	client := ws.New(*addr)
	if err := client.Connect(); err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer client.Disconnect()

	if err := client.Announce(protocol.PresenceUser{
		ID:       *userID,
		Username: *username,
		Status:   protocol.StatusOnline,
	}); err != nil {
		log.Fatalf("Failed to announce presence: %v", err)
	}

	go printEvents(client)

	fmt.Println("Connected. Type a message, /status <online|idle|dnd>, or /quit.")

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/quit":
			return
		case strings.HasPrefix(line, "/status "):
			status := protocol.Status(strings.TrimPrefix(line, "/status ")).Normalize()
			if err := client.SetStatus(*userID, status); err != nil {
				log.Printf("Failed to set status: %v", err)
			}
		default:
			if err := client.SendChat(line); err != nil {
				log.Printf("Failed to send message: %v", err)
			}
		}
	}
}

func printEvents(client *ws.Client) {
	for event := range client.Events() {
		switch event.Type {
		case protocol.TypePresenceSnapshot:
			fmt.Printf("* %d user(s) online:\n", len(event.Users))
			for _, user := range event.Users {
				fmt.Printf("  - %s (%s)\n", user.Username, user.Status)
			}
		case protocol.TypePresenceUpdate:
			fmt.Printf("* %s is now %s\n", event.User.Username, event.User.Status)
		}
	}
}
