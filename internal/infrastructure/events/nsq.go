// Package events delivers numbering events over NSQ.
package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/nsqio/go-nsq"

	"docseries/internal/core/numerator"
	"docseries/pkg/logger"
)

// Topic returns the NSQ topic an event is published on.
// NSQ topic names may not contain dots.
func Topic(prefix, eventName string) string {
	b := []byte(prefix + eventName)
	for i, c := range b {
		if c == '.' {
			b[i] = '_'
		}
	}
	return string(b)
}

// Producer publishes numbering events as JSON.
type Producer struct {
	client *nsq.Producer
	prefix string
}

var _ numerator.Publisher = (*Producer)(nil)

// NewProducer creates a producer for the nsqd at addr.
func NewProducer(addr, topicPrefix string, config *nsq.Config) (*Producer, error) {
	if config == nil {
		config = nsq.NewConfig()
	}
	client, err := nsq.NewProducer(addr, config)
	if err != nil {
		return nil, fmt.Errorf("nsq producer: %w", err)
	}
	client.SetLoggerLevel(nsq.LogLevelWarning)
	return &Producer{client: client, prefix: topicPrefix}, nil
}

// Ping checks the nsqd connection.
func (p *Producer) Ping(ctx context.Context) error {
	if err := p.client.Ping(); err != nil {
		logger.Warn(ctx, "nsq ping failed", "error", err)
		return err
	}
	return nil
}

// Publish implements numerator.Publisher.
func (p *Producer) Publish(ctx context.Context, e numerator.Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode %s: %w", e.Name, err)
	}
	topic := Topic(p.prefix, e.Name)
	if err := p.client.Publish(topic, body); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Stop flushes and closes the connection.
func (p *Producer) Stop() {
	p.client.Stop()
}

// Handler processes one decoded event.
type Handler func(ctx context.Context, e numerator.Event) error

// Consumer reads events from one topic.
type Consumer struct {
	client *nsq.Consumer
	addr   string
}

// NewConsumer subscribes channel to the topic of eventName.
func NewConsumer(addr, topicPrefix, eventName, channel string, config *nsq.Config) (*Consumer, error) {
	if config == nil {
		config = nsq.NewConfig()
	}
	client, err := nsq.NewConsumer(Topic(topicPrefix, eventName), channel, config)
	if err != nil {
		return nil, fmt.Errorf("nsq consumer: %w", err)
	}
	client.SetLoggerLevel(nsq.LogLevelWarning)
	return &Consumer{client: client, addr: addr}, nil
}

// Start registers h and connects to nsqd.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	c.client.AddHandler(nsq.HandlerFunc(func(m *nsq.Message) error {
		return Decode(ctx, m.Body, h)
	}))
	if err := c.client.ConnectToNSQD(c.addr); err != nil {
		return fmt.Errorf("connect nsqd %s: %w", c.addr, err)
	}
	return nil
}

// Stop stops the consumer and waits for in-flight messages.
func (c *Consumer) Stop() {
	c.client.Stop()
	<-c.client.StopChan
}

// ErrMalformed marks a message body that is not an event.
var ErrMalformed = errors.New("malformed event")

// Decode unmarshals body and passes the event to h. Malformed bodies are
// logged and dropped so NSQ does not requeue them forever.
func Decode(ctx context.Context, body []byte, h Handler) error {
	var e numerator.Event
	if err := json.Unmarshal(body, &e); err != nil || e.Name == "" {
		logger.Warn(ctx, "dropping event", "error", ErrMalformed, "body", string(body))
		return nil
	}
	return h(ctx, e)
}
