package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tablemate/tablemate-server/internal/httpclient"
	"github.com/tablemate/tablemate-server/internal/identity"
)

// DefaultExpoPushURL is the Expo push gateway used by the mobile app.
const DefaultExpoPushURL = "https://exp.host/--/api/v2/push/send"

// tokensPerRequest is Expo's documented per-call message limit.
const tokensPerRequest = 100

const deliveryTimeout = 20 * time.Second

// Dispatcher delivers events as Expo push notifications. Delivery runs in
// the background with its own timeout: the triggering request never waits
// for the push gateway, and failures are logged, not returned.
type Dispatcher struct {
	client  *httpclient.Client
	parties identity.PartyRepo
	logger  *slog.Logger
	url     string

	wg sync.WaitGroup
}

// NewDispatcher creates a dispatcher against the given push gateway, or
// DefaultExpoPushURL when endpoint is empty.
func NewDispatcher(client *httpclient.Client, parties identity.PartyRepo, logger *slog.Logger, endpoint string) *Dispatcher {
	if endpoint == "" {
		endpoint = DefaultExpoPushURL
	}
	return &Dispatcher{client: client, parties: parties, logger: logger, url: endpoint}
}

type pushMessage struct {
	To    []string          `json:"to"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Sound string            `json:"sound"`
	Data  map[string]string `json:"data,omitempty"`
}

// Notify resolves the recipients' device tokens and sends the event to the
// push gateway in the background.
func (d *Dispatcher) Notify(ctx context.Context, ev Event) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		// Detached from the request context: the response goes out before
		// delivery finishes.
		ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
		defer cancel()
		d.deliver(ctx, ev)
	}()
}

// Flush blocks until all in-flight deliveries finish. Called on shutdown.
func (d *Dispatcher) Flush() {
	d.wg.Wait()
}

func (d *Dispatcher) deliver(ctx context.Context, ev Event) {
	tokens := d.resolveTokens(ctx, ev.Recipients)
	if len(tokens) == 0 {
		return
	}

	data := map[string]string{"type": ev.Type, "planId": ev.PlanID}
	for k, v := range ev.Data {
		data[k] = v
	}

	for start := 0; start < len(tokens); start += tokensPerRequest {
		end := min(start+tokensPerRequest, len(tokens))
		msg := pushMessage{
			To:    tokens[start:end],
			Title: ev.Title,
			Body:  ev.Body,
			Sound: "default",
			Data:  data,
		}
		if err := d.client.PostJSON(ctx, d.url, msg, nil); err != nil {
			d.logger.Error("push delivery failed",
				"event", ev.Type,
				"plan_id", ev.PlanID,
				"tokens", end-start,
				"error", err)
		}
	}
}

func (d *Dispatcher) resolveTokens(ctx context.Context, recipients []string) []string {
	var tokens []string
	for _, userID := range recipients {
		user, err := d.parties.Get(ctx, userID)
		if err != nil {
			d.logger.Warn("skipping push recipient", "user_id", userID, "error", err)
			continue
		}
		tokens = append(tokens, user.PushTokens...)
	}
	return tokens
}
