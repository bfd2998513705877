// Command publish-invite publishes an invite.created event for an existing
// invite, for smoke-testing a running worker.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/flowdose/invite-dispatcher/internal/config"
	"github.com/flowdose/invite-dispatcher/internal/eventbus"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the worker config file")
	inviteID := flag.String("id", "", "invite id to announce (required)")
	shape := flag.String("shape", "direct", "envelope shape: direct, nested or flat")
	flag.Parse()

	if *inviteID == "" {
		fmt.Fprintln(os.Stderr, "usage: publish-invite -id <invite id> [-shape direct|nested|flat]")
		os.Exit(2)
	}

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	body, err := buildEnvelope(*shape, cfg.Events.Name, *inviteID)
	if err != nil {
		log.Fatalf("%v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var pub eventbus.Publisher
	switch cfg.Worker.Transport {
	case "nats":
		nb, err := eventbus.DialNATS(eventbus.NATSConfig{
			URL:      cfg.NATS.URL,
			Name:     "publish-invite",
			Timeout:  cfg.NATS.Timeout(),
			Username: cfg.NATS.Username,
			Password: cfg.NATS.Password,
			Token:    cfg.NATS.Token,
		})
		if err != nil {
			log.Fatalf("Failed to connect to NATS: %v", err)
		}
		defer nb.Close()
		pub = nb
	default:
		client, err := eventbus.DialRedis(ctx, cfg.Redis.URL)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		rb := eventbus.NewRedisBus(client)
		defer rb.Close()
		pub = rb
	}

	if err := pub.Publish(ctx, cfg.Events.Name, body); err != nil {
		log.Fatalf("Publish failed: %v", err)
	}
	log.Printf("Published %s for invite %s (%s shape) over %s", cfg.Events.Name, *inviteID, *shape, cfg.Worker.Transport)
}

// buildEnvelope renders one of the wire shapes the worker accepts.
func buildEnvelope(shape, name, id string) ([]byte, error) {
	var v map[string]interface{}
	switch shape {
	case "direct":
		v = map[string]interface{}{"data": map[string]string{"id": id}, "eventName": name}
	case "nested":
		v = map[string]interface{}{"event": map[string]interface{}{"data": map[string]string{"id": id}, "name": name}}
	case "flat":
		v = map[string]interface{}{"id": id}
	default:
		return nil, fmt.Errorf("unknown shape %q", shape)
	}
	return json.Marshal(v)
}
