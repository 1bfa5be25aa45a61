// Package bus decouples the Discord gateway from the bot engine with two
// buffered queues: inbound chat events and outbound replies.
package bus

import (
	"context"
	"time"
)

const queueDepth = 100

// InboundMessage is a chat event as seen by the engine.
type InboundMessage struct {
	ID          string
	ChannelID   string
	ChannelName string
	AuthorID    string
	Author      string // display name

	Content        string
	IsAdmin        bool // author has administrator permission
	HasAttachments bool
	Timestamp      time.Time
}

// OutboundMessage is a reply queued for delivery.
type OutboundMessage struct {
	ChannelID string
	Content   string
	// Ephemeral marks operational replies (errors, diagnostics) that must
	// not influence future context; the sender still delivers them normally,
	// the flag exists for logging.
	Ephemeral bool
}

type MessageBus struct {
	inbound  chan InboundMessage
	outbound chan OutboundMessage
}

func New() *MessageBus {
	return &MessageBus{
		inbound:  make(chan InboundMessage, queueDepth),
		outbound: make(chan OutboundMessage, queueDepth),
	}
}

// PublishInbound queues a chat event for the engine.
func (mb *MessageBus) PublishInbound(msg InboundMessage) {
	mb.inbound <- msg
}

// ConsumeInbound blocks until an event is available or ctx is cancelled.
func (mb *MessageBus) ConsumeInbound(ctx context.Context) (InboundMessage, bool) {
	select {
	case msg, ok := <-mb.inbound:
		return msg, ok
	case <-ctx.Done():
		return InboundMessage{}, false
	}
}

// PublishOutbound queues a reply for delivery.
func (mb *MessageBus) PublishOutbound(msg OutboundMessage) {
	mb.outbound <- msg
}

// ConsumeOutbound blocks until a reply is available or ctx is cancelled.
func (mb *MessageBus) ConsumeOutbound(ctx context.Context) (OutboundMessage, bool) {
	select {
	case msg, ok := <-mb.outbound:
		return msg, ok
	case <-ctx.Done():
		return OutboundMessage{}, false
	}
}

func (mb *MessageBus) Close() {
	close(mb.inbound)
	close(mb.outbound)
}
