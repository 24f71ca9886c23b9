// Command register-webhook provisions a webhook endpoint and prints its
// signing secret. The secret is only shown once; store it with the
// receiver before discarding the output.
//
// Usage:
//
//	go run scripts/register-webhook.go -owner-id acct_123 -target-url https://example.com/hooks
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/oklog/ulid/v2"

	"github.com/linkpulse/linkpulse/internal/model"
	"github.com/linkpulse/linkpulse/internal/webhook"
)

type output struct {
	EndpointID string   `json:"endpoint_id"`
	OwnerID    string   `json:"owner_id"`
	TargetURL  string   `json:"target_url"`
	Secret     string   `json:"secret"`
	EventTypes []string `json:"event_types"`
}

func main() {
	var (
		databaseURL = flag.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
		ownerID     = flag.String("owner-id", "", "Account that owns the endpoint")
		targetURL   = flag.String("target-url", "", "HTTPS URL that receives deliveries")
		eventsInput = flag.String("events", string(model.EventTypeLinkClick), "Comma-separated event types")
		name        = flag.String("name", "", "Optional endpoint name")
		format      = flag.String("format", "plain", "Output format: plain or json")
	)
	flag.Parse()

	if *databaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}
	if *ownerID == "" || *targetURL == "" {
		fmt.Fprintln(os.Stderr, "-owner-id and -target-url are required")
		os.Exit(1)
	}

	eventTypes, err := parseEventTypes(*eventsInput)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := sql.Open("postgres", *databaseURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open database:", err)
		os.Exit(1)
	}
	defer db.Close()

	secret, err := webhook.GenerateSecret()
	if err != nil {
		fmt.Fprintln(os.Stderr, "generate secret:", err)
		os.Exit(1)
	}

	now := time.Now().UTC()
	endpoint := &model.WebhookEndpoint{
		ID:         ulid.Make().String(),
		OwnerID:    *ownerID,
		TargetURL:  *targetURL,
		Secret:     secret,
		Enabled:    true,
		EventTypes: eventTypes,
		Name:       *name,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	repo := webhook.NewRepository(db)
	if err := repo.CreateEndpoint(ctx, endpoint); err != nil {
		fmt.Fprintln(os.Stderr, "create endpoint:", err)
		os.Exit(1)
	}

	switch strings.ToLower(*format) {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(output{
			EndpointID: endpoint.ID,
			OwnerID:    endpoint.OwnerID,
			TargetURL:  endpoint.TargetURL,
			Secret:     secret,
			EventTypes: eventTypeStrings(eventTypes),
		}); err != nil {
			fmt.Fprintln(os.Stderr, "encode output:", err)
			os.Exit(1)
		}
	default:
		fmt.Println(secret)
	}
}

func parseEventTypes(input string) ([]model.EventType, error) {
	parts := strings.Split(input, ",")
	types := make([]model.EventType, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		et := model.EventType(p)
		if !model.IsValidEventType(et) {
			return nil, fmt.Errorf("unknown event type %q", p)
		}
		types = append(types, et)
	}
	if len(types) == 0 {
		return nil, fmt.Errorf("at least one event type is required")
	}
	return types, nil
}

func eventTypeStrings(types []model.EventType) []string {
	out := make([]string, len(types))
	for i, et := range types {
		out[i] = string(et)
	}
	return out
}
