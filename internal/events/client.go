// Package events publishes intake lifecycle events and receives external
// test-submission events over NATS. The bus is optional: the service runs
// without it, just without operational visibility.
package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// Subjects.
const (
	SubjectFormCompleted  = "vitalink.intake.form.completed"
	SubjectSessionClosed  = "vitalink.intake.session.closed"
	SubjectTestsSubmitted = "vitalink.intake.tests.submitted"
)

// FormCompletedEvent fires the first time a session's form has no
// resolvable missing field left.
type FormCompletedEvent struct {
	UserID    string                       `json:"user_id"`
	Form      map[string]map[string]string `json:"form"`
	Timestamp string                       `json:"timestamp"`
}

// SessionClosedEvent fires when a websocket connection goes away.
type SessionClosedEvent struct {
	UserID    string `json:"user_id"`
	Turns     int    `json:"turns"`
	Timestamp string `json:"timestamp"`
}

// SubmissionEvent is the inbound payload on SubjectTestsSubmitted, the NATS
// twin of POST /api/submit_tests.
type SubmissionEvent struct {
	UserID   string `json:"user_id"`
	Symptoms string `json:"symptoms"`
}

type Client struct {
	conn   *nats.Conn
	subs   []*nats.Subscription
	logger *slog.Logger
}

func NewClient(url, token string, logger *slog.Logger) (*Client, error) {
	opts := []nats.Option{
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return &Client{conn: nc, logger: logger}, nil
}

func (c *Client) PublishFormCompleted(userID string, snapshot map[string]map[string]string) error {
	return c.publish(SubjectFormCompleted, FormCompletedEvent{
		UserID:    userID,
		Form:      snapshot,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (c *Client) PublishSessionClosed(userID string, turns int) error {
	return c.publish(SubjectSessionClosed, SessionClosedEvent{
		UserID:    userID,
		Turns:     turns,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (c *Client) publish(subject string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", subject, err)
	}
	return c.conn.Publish(subject, data)
}

// SubscribeSubmissions delivers parsed test-submission events to handler.
func (c *Client) SubscribeSubmissions(handler func(SubmissionEvent)) error {
	sub, err := c.conn.Subscribe(SubjectTestsSubmitted, func(msg *nats.Msg) {
		var evt SubmissionEvent
		if err := json.Unmarshal(msg.Data, &evt); err != nil {
			c.logger.Error("failed to parse submission event", "error", err)
			return
		}
		handler(evt)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", SubjectTestsSubmitted, err)
	}
	c.subs = append(c.subs, sub)
	c.logger.Info("subscribed", "subject", SubjectTestsSubmitted)
	return nil
}

func (c *Client) Close() {
	for _, sub := range c.subs {
		_ = sub.Unsubscribe()
	}
	c.conn.Close()
}
