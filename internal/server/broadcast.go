package server

import (
	"context"
	"encoding/json"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"

	"github.com/stakehouse/blackjackd/internal/game"
)

// RedisPublisher mirrors every table event onto a Redis channel so other
// services (observability, balance dashboards) can follow play without a
// WebSocket connection. It implements game.EventSubscriber.
//
// OnEvent runs under the table lock, so events are handed to a pump
// goroutine through a buffered queue; when the queue is full the event
// is dropped rather than stalling the table.
type RedisPublisher struct {
	client  *redis.Client
	channel string
	logger  *log.Logger
	queue   chan *publishedEvent
	done    chan struct{}
}

// publishedEvent is the wire envelope for events mirrored to Redis.
type publishedEvent struct {
	Type      string          `json:"type"`
	TableID   string          `json:"tableId"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// NewRedisPublisher connects to Redis and starts the publish pump.
func NewRedisPublisher(cfg RedisSettings, logger *log.Logger) (*RedisPublisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	p := &RedisPublisher{
		client:  client,
		channel: cfg.Channel,
		logger:  logger.WithPrefix("redis"),
		queue:   make(chan *publishedEvent, 256),
		done:    make(chan struct{}),
	}
	go p.pump()

	p.logger.Info("event fanout connected", "addr", cfg.Addr, "channel", cfg.Channel)
	return p, nil
}

// OnEvent implements the game.EventSubscriber interface
func (p *RedisPublisher) OnEvent(event game.Event) {
	msg, err := messageFromEvent(event)
	if err != nil || msg == nil {
		return
	}

	envelope := &publishedEvent{
		Type:      msg.Type.String(),
		TableID:   event.TableID(),
		Timestamp: event.Timestamp(),
		Data:      msg.Data,
	}

	select {
	case p.queue <- envelope:
	default:
		p.logger.Debug("event queue full, dropping event", "type", envelope.Type)
	}
}

// Close stops the pump and closes the Redis connection.
func (p *RedisPublisher) Close() error {
	close(p.done)
	return p.client.Close()
}

func (p *RedisPublisher) pump() {
	for {
		select {
		case envelope := <-p.queue:
			data, err := json.Marshal(envelope)
			if err != nil {
				p.logger.Error("failed to encode event", "error", err)
				continue
			}
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
				p.logger.Error("failed to publish event", "error", err)
			}
			cancel()

		case <-p.done:
			return
		}
	}
}
