// Package stream maintains the per-session SSE subscription to the backend
// and publishes parsed events onto a pubsub broker consumed by the app's
// update loop. The session holds at most one open subscription at a time.
package stream

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"lira/internal/log"
	"lira/internal/protocol"
	"lira/internal/pubsub"
)

// State is the subscription lifecycle state.
type State int

const (
	Closed State = iota
	Open
)

func (s State) String() string {
	if s == Open {
		return "open"
	}
	return "closed"
}

// Notice is the payload published on the consumer's broker. Exactly one of
// Event and Err is set, matching the pubsub event type (MessageEvent carries
// Event, ErrorEvent carries Err, ClosedEvent carries neither).
type Notice struct {
	Event *protocol.StreamEvent
	Err   error
}

// Config controls the consumer's endpoint and reconnect policy.
type Config struct {
	// BaseURL is the backend root, without trailing slash.
	BaseURL string
	// UserID parameterizes the session endpoint. The same subscription
	// delivers events for every job belonging to this user.
	UserID int
	// ReconnectAttempts bounds automatic reconnection after a transport
	// failure. Zero disables reconnection: the first failure closes the
	// subscription for good.
	ReconnectAttempts int
	// ReconnectDelay is the pause between reconnect attempts.
	ReconnectDelay time.Duration
	// HTTPClient overrides the transport, mainly for tests. The client
	// must not set an overall timeout: the subscription is long-lived.
	HTTPClient *http.Client
}

const (
	scannerInitialBuf = 64 * 1024
	scannerMaxBuf     = 1024 * 1024
)

// Consumer owns the single live subscription for the session.
type Consumer struct {
	cfg    Config
	httpc  *http.Client
	broker *pubsub.Broker[Notice]

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	done   chan struct{}
	gen    int
}

// New creates a consumer. The broker exists for the consumer's whole
// lifetime so listeners can subscribe before the first Start.
func New(cfg Config) *Consumer {
	httpc := cfg.HTTPClient
	if httpc == nil {
		httpc = &http.Client{}
	}
	return &Consumer{
		cfg:    cfg,
		httpc:  httpc,
		broker: pubsub.NewBroker[Notice](),
		state:  Closed,
	}
}

// Broker exposes the notice broker for subscription.
func (c *Consumer) Broker() *pubsub.Broker[Notice] { return c.broker }

// State returns the current subscription state.
func (c *Consumer) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start opens the subscription. If one is already open it is closed first,
// so exactly one subscription exists afterward.
func (c *Consumer) Start() {
	c.mu.Lock()
	if c.cancel != nil {
		cancel, done := c.cancel, c.done
		c.cancel = nil
		c.mu.Unlock()
		cancel()
		<-done // old subscription fully torn down before the new one opens
		c.mu.Lock()
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})
	c.state = Open
	c.gen++
	gen, done := c.gen, c.done
	c.mu.Unlock()

	log.Info(log.CatStream, "Subscription opening", "userID", c.cfg.UserID)
	go c.run(ctx, gen, done)
}

// Stop closes the subscription. Idempotent: stopping a closed consumer is
// a no-op.
func (c *Consumer) Stop() {
	c.mu.Lock()
	if c.cancel == nil {
		c.state = Closed
		c.mu.Unlock()
		return
	}
	cancel, done := c.cancel, c.done
	c.cancel = nil
	c.state = Closed
	c.mu.Unlock()

	cancel()
	<-done
	log.Info(log.CatStream, "Subscription stopped")
}

// Close stops the subscription and shuts down the broker.
func (c *Consumer) Close() {
	c.Stop()
	c.broker.Close()
}

// run consumes the stream, reconnecting within the configured bounds.
// It owns the Open→Closed transition for its own generation. One span
// covers the whole subscription, from open to final close.
func (c *Consumer) run(ctx context.Context, gen int, done chan struct{}) {
	defer close(done)

	_, span := otel.Tracer("lira/stream").Start(ctx, "stream.session")
	defer span.End()
	span.SetAttributes(attribute.Int("user_id", c.cfg.UserID))

	attempts := 0
	for {
		err := c.consume(ctx)
		if ctx.Err() != nil {
			// Deliberate Stop: state was already set by the caller.
			c.broker.Publish(pubsub.ClosedEvent, Notice{})
			return
		}

		attempts++
		if attempts > c.cfg.ReconnectAttempts {
			c.closeGen(gen)
			span.SetStatus(codes.Error, err.Error())
			span.SetAttributes(attribute.Int("reconnect_attempts", attempts-1))
			log.ErrorErr(log.CatStream, "Subscription failed", err, "attempts", attempts)
			c.broker.Publish(pubsub.ErrorEvent, Notice{Err: err})
			return
		}

		log.Warn(log.CatStream, "Subscription lost, reconnecting",
			"attempt", attempts, "of", c.cfg.ReconnectAttempts, "error", err)
		select {
		case <-ctx.Done():
			c.broker.Publish(pubsub.ClosedEvent, Notice{})
			return
		case <-time.After(c.cfg.ReconnectDelay):
		}
	}
}

// closeGen transitions to Closed unless a newer subscription superseded
// this one in the meantime.
func (c *Consumer) closeGen(gen int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen == gen {
		c.state = Closed
		c.cancel = nil
	}
}

// consume opens one SSE connection and publishes events until the stream
// breaks or the context is cancelled. A malformed message is logged and
// skipped; it never terminates the stream.
func (c *Consumer) consume(ctx context.Context) error {
	endpoint := fmt.Sprintf("%s/user/%d/events/", strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.UserID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("building stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("opening stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("stream endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, scannerInitialBuf), scannerMaxBuf)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" {
			continue
		}

		ev, err := protocol.ParseEvent([]byte(data))
		if err != nil {
			log.Warn(log.CatStream, "Discarding malformed event", "error", err)
			continue
		}

		log.Debug(log.CatStream, "Event received",
			"jobID", ev.JobID, "phase", ev.Phase)
		c.broker.Publish(pubsub.MessageEvent, Notice{Event: &ev})
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading stream: %w", err)
	}
	return fmt.Errorf("stream closed by server")
}
