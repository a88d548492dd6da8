// Package events publishes ingestion events to NATS and accepts run triggers.
package events

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/rotisserie/eris"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/basketwatch/backend/internal/domain"
	"github.com/basketwatch/backend/internal/usecase"
)

const DefaultSubjectPrefix = "basketwatch.ingest"

// SubjectRun is the trigger subject, relative to the prefix
const SubjectRun = "run"

// Connect dials NATS with reconnects enabled and connection events logged
func Connect(url string, logger *zap.Logger) (*nats.Conn, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("nats")

	nc, err := nats.Connect(url,
		nats.Name("basketwatch"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "connect to nats at %s", url)
	}
	return nc, nil
}

// headerCarrier adapts nats.Msg headers for OTel propagation
type headerCarrier nats.Msg

func (c *headerCarrier) Get(key string) string {
	if c.Header == nil {
		return ""
	}
	return c.Header.Get(key)
}

func (c *headerCarrier) Set(key, val string) {
	if c.Header == nil {
		c.Header = make(nats.Header)
	}
	c.Header.Set(key, val)
}

func (c *headerCarrier) Keys() []string {
	if c.Header == nil {
		return nil
	}
	keys := make([]string, 0, len(c.Header))
	for k := range c.Header {
		keys = append(keys, k)
	}
	return keys
}

// msgPublisher is the part of *nats.Conn the publisher needs
type msgPublisher interface {
	PublishMsg(m *nats.Msg) error
}

// Publisher implements domain.EventPublisher on a NATS connection.
// Subjects are published under "<prefix>.<subject>".
type Publisher struct {
	conn   msgPublisher
	prefix string
}

var _ domain.EventPublisher = (*Publisher)(nil)

// NewPublisher creates a publisher; an empty prefix uses DefaultSubjectPrefix
func NewPublisher(conn msgPublisher, prefix string) *Publisher {
	return &Publisher{conn: conn, prefix: normalizePrefix(prefix)}
}

// Publish serializes v as JSON, injects trace context into the headers and publishes it
func (p *Publisher) Publish(ctx context.Context, subject string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return eris.Wrapf(err, "encode %s event", subject)
	}

	msg := &nats.Msg{
		Subject: p.prefix + "." + subject,
		Data:    data,
	}
	otel.GetTextMapPropagator().Inject(ctx, (*headerCarrier)(msg))

	return eris.Wrapf(p.conn.PublishMsg(msg), "publish %s", msg.Subject)
}

// Runner starts an ingestion run
type Runner interface {
	Run(ctx context.Context, req usecase.RunRequest) (*usecase.RunSummary, error)
}

// RunTrigger runs an ingestion for every message on "<prefix>.run" and
// replies with the summary when the message has a reply subject.
// Messages on one subscription are handled one at a time.
type RunTrigger struct {
	runner Runner
	prefix string
	logger *zap.Logger
}

// NewRunTrigger creates a new run trigger
func NewRunTrigger(runner Runner, prefix string, logger *zap.Logger) *RunTrigger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RunTrigger{
		runner: runner,
		prefix: normalizePrefix(prefix),
		logger: logger.Named("trigger"),
	}
}

// Subject returns the subject the trigger listens on
func (t *RunTrigger) Subject() string {
	return t.prefix + "." + SubjectRun
}

// Listen subscribes until ctx is done, then drains the subscription
func (t *RunTrigger) Listen(ctx context.Context, nc *nats.Conn) error {
	sub, err := nc.Subscribe(t.Subject(), func(msg *nats.Msg) {
		msgCtx := otel.GetTextMapPropagator().Extract(ctx, (*headerCarrier)(msg))
		reply := t.handle(msgCtx, msg.Data)
		if msg.Reply == "" {
			return
		}
		if err := msg.Respond(reply); err != nil {
			t.logger.Warn("failed to reply to run trigger", zap.Error(err))
		}
	})
	if err != nil {
		return eris.Wrapf(err, "subscribe %s", t.Subject())
	}

	t.logger.Info("listening for run triggers", zap.String("subject", t.Subject()))

	<-ctx.Done()
	return eris.Wrap(sub.Drain(), "drain run trigger")
}

type errorReply struct {
	Error string `json:"error"`
}

// handle decodes an optional RunRequest, runs the ingestion and returns the JSON reply
func (t *RunTrigger) handle(ctx context.Context, data []byte) []byte {
	var req usecase.RunRequest
	if len(strings.TrimSpace(string(data))) > 0 {
		if err := json.Unmarshal(data, &req); err != nil {
			return mustJSON(errorReply{Error: "Invalid payload"})
		}
	}

	t.logger.Info("run triggered",
		zap.String("location_id", req.LocationID),
		zap.Bool("debug", req.Debug))

	// Shutdown of the listener must not cut a run short of its audit trail.
	summary, err := t.runner.Run(context.WithoutCancel(ctx), req)
	if err != nil {
		t.logger.Error("triggered run failed", zap.Error(err))
		return mustJSON(errorReply{Error: err.Error()})
	}
	return mustJSON(summary)
}

func mustJSON(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte(`{"error":"encode reply"}`)
	}
	return data
}

func normalizePrefix(prefix string) string {
	prefix = strings.Trim(prefix, ". ")
	if prefix == "" {
		return DefaultSubjectPrefix
	}
	return prefix
}
