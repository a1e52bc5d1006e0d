package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"

	"swarmhub.gg/internal/client"
	"swarmhub.gg/internal/protocol"
)

func main() {
	var (
		url    = flag.String("url", "http://localhost:8888", "hub url")
		apiKey = flag.String("api_key", os.Getenv("SWARM_API_KEY"), "hub api key")
		name   = flag.String("name", "ChatBot", "agent name")
		color  = flag.String("color", "yellow", "agent color")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	go func() {
		<-stop
		cancel()
	}()

	c := client.New(*url, *apiKey)
	reg, err := c.Register(ctx, *name, *color)
	if err != nil {
		logger.Fatalf("register: %v", err)
	}
	logger.Printf("registered agent_id=%s body_id=%d", reg.AgentID, reg.BodyID)

	if _, err := c.Say(ctx, "Hello! I'm "+reg.Name+", here to help!"); err != nil {
		logger.Printf("say: %v", err)
	}

	err = c.Listen(ctx, func(ev protocol.Event) {
		if ev.Kind != protocol.KindChat || ev.Source == reg.AgentID {
			return
		}
		handleChat(ctx, c, logger, ev)
	})
	if err != nil && ctx.Err() == nil {
		logger.Fatalf("listen: %v", err)
	}
}

func handleChat(ctx context.Context, c *client.Client, logger *log.Logger, ev protocol.Event) {
	message, _ := ev.Payload["message"].(string)
	player, _ := ev.Payload["player"].(string)
	if player == "" {
		player, _ = ev.Payload["agent_name"].(string)
	}
	logger.Printf("chat from %s: %s", player, message)

	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "hello"):
		_, _ = c.Say(ctx, fmt.Sprintf("Hello %s!", player))
	case strings.Contains(lower, "help"):
		_, _ = c.Say(ctx, "I can: follow you, move around, or just chat!")
	case strings.Contains(lower, "follow"):
		if _, err := c.FollowPlayer(ctx, player); err != nil {
			logger.Printf("follow: %v", err)
			return
		}
		_, _ = c.Say(ctx, fmt.Sprintf("Following %s!", player))
	}
}
