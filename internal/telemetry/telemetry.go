package telemetry

import (
	"context"
	"encoding/json"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const exchange = "shinedump.telemetry"

// Publisher emits agent telemetry events onto a topic exchange. A nil
// Publisher is valid and drops every event, so callers never need to guard.
type Publisher struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

// Connect dials the broker and declares the telemetry exchange. An empty
// URL yields a nil publisher.
func Connect(url string) (*Publisher, error) {
	if url == "" {
		return nil, nil
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, err
	}
	return &Publisher{conn: conn, ch: ch}, nil
}

func (p *Publisher) Close() {
	if p == nil {
		return
	}
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}

type event struct {
	Event     string    `json:"event"`
	TripID    string    `json:"trip_id"`
	Remaining int       `json:"remaining,omitempty"`
	Status    string    `json:"status,omitempty"`
	At        time.Time `json:"at"`
}

// SyncExhausted records a final sync that gave up with points retained in
// the local buffer.
func (p *Publisher) SyncExhausted(tripID string, remaining int) {
	p.publish("sync.exhausted", event{Event: "sync_exhausted", TripID: tripID, Remaining: remaining})
}

// RemoteTermination records the server force-ending or cancelling a trip
// the agent believed active.
func (p *Publisher) RemoteTermination(tripID, status string) {
	p.publish("trip.remote_termination", event{Event: "remote_termination", TripID: tripID, Status: status})
}

// TripEvent records a lifecycle transition.
func (p *Publisher) TripEvent(name, tripID string) {
	p.publish("trip."+name, event{Event: name, TripID: tripID})
}

func (p *Publisher) publish(routingKey string, ev event) {
	if p == nil || p.ch == nil {
		return
	}
	ev.At = time.Now()

	body, err := json.Marshal(ev)
	if err != nil {
		log.Printf("telemetry marshal failed: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := p.ch.PublishWithContext(ctx, exchange, routingKey, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	}); err != nil {
		log.Printf("telemetry publish failed: %v", err)
	}
}
