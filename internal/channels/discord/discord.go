// Package discord connects the bot to the Discord gateway. The adapter
// publishes message-create events to the bus, delivers outbound replies with
// length-aware splitting, and exposes full-channel transcript fetching for
// history recovery.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/nextlevelbuilder/parley/internal/bus"
	"github.com/nextlevelbuilder/parley/internal/history"
)

const fetchPageSize = 100

// session abstracts the discordgo calls the adapter uses so tests can swap
// in a mock without a live gateway.
type session interface {
	Open() error
	Close() error
	AddHandler(handler interface{}) func()
	ChannelMessageSend(channelID, content string) (*discordgo.Message, error)
	ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string) ([]*discordgo.Message, error)
	ChannelTyping(channelID string) error
	Channel(channelID string) (*discordgo.Channel, error)
	UserChannelPermissions(userID, channelID string) (int64, error)
	BotUserID() string
}

type realSession struct {
	s *discordgo.Session
}

func (r *realSession) Open() error  { return r.s.Open() }
func (r *realSession) Close() error { return r.s.Close() }

func (r *realSession) AddHandler(handler interface{}) func() {
	return r.s.AddHandler(handler)
}

func (r *realSession) ChannelMessageSend(channelID, content string) (*discordgo.Message, error) {
	return r.s.ChannelMessageSend(channelID, content)
}

func (r *realSession) ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string) ([]*discordgo.Message, error) {
	return r.s.ChannelMessages(channelID, limit, beforeID, afterID, aroundID)
}

func (r *realSession) ChannelTyping(channelID string) error {
	return r.s.ChannelTyping(channelID)
}

func (r *realSession) Channel(channelID string) (*discordgo.Channel, error) {
	return r.s.Channel(channelID)
}

func (r *realSession) UserChannelPermissions(userID, channelID string) (int64, error) {
	return r.s.UserChannelPermissions(userID, channelID)
}

func (r *realSession) BotUserID() string {
	if r.s.State != nil && r.s.State.User != nil {
		return r.s.State.User.ID
	}
	return ""
}

// AdapterOpts configures a Discord adapter. Session is an injection point
// for tests; production leaves it nil and supplies Token.
type AdapterOpts struct {
	Token   string
	Bus     *bus.MessageBus
	Dedupe  *bus.DedupeCache
	Session session
}

type Adapter struct {
	sess   session
	bus    *bus.MessageBus
	dedupe *bus.DedupeCache

	mu           sync.Mutex
	channelNames map[string]string
}

func NewAdapter(opts AdapterOpts) (*Adapter, error) {
	sess := opts.Session
	if sess == nil {
		dg, err := discordgo.New("Bot " + opts.Token)
		if err != nil {
			return nil, fmt.Errorf("create discord session: %w", err)
		}
		dg.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsMessageContent
		sess = &realSession{s: dg}
	}
	a := &Adapter{
		sess:         sess,
		bus:          opts.Bus,
		dedupe:       opts.Dedupe,
		channelNames: make(map[string]string),
	}
	sess.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		a.handleMessageCreate(m)
	})
	return a, nil
}

func (a *Adapter) Open() error {
	if err := a.sess.Open(); err != nil {
		return fmt.Errorf("open discord gateway: %w", err)
	}
	slog.Info("discord gateway connected", "bot_user", a.sess.BotUserID())
	return nil
}

func (a *Adapter) Close() error {
	return a.sess.Close()
}

// Run delivers outbound replies until ctx is cancelled.
func (a *Adapter) Run(ctx context.Context) error {
	for {
		msg, ok := a.bus.ConsumeOutbound(ctx)
		if !ok {
			return ctx.Err()
		}
		if err := a.SendMessage(msg.ChannelID, msg.Content); err != nil {
			slog.Error("outbound send failed", "channel_id", msg.ChannelID, "error", err)
		}
	}
}

func (a *Adapter) handleMessageCreate(m *discordgo.MessageCreate) {
	if m.Author == nil {
		return
	}
	// The bot's own sends re-enter as gateway events; the engine records
	// replies at send time, so drop them here.
	if m.Author.ID == a.sess.BotUserID() {
		return
	}
	if a.dedupe != nil && a.dedupe.IsDuplicate(m.ID) {
		slog.Debug("duplicate gateway event dropped", "message_id", m.ID)
		return
	}

	ts := m.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	a.bus.PublishInbound(bus.InboundMessage{
		ID:             m.ID,
		ChannelID:      m.ChannelID,
		ChannelName:    a.ChannelName(m.ChannelID),
		AuthorID:       m.Author.ID,
		Author:         displayName(m),
		Content:        m.Content,
		IsAdmin:        a.isAdmin(m.Author.ID, m.ChannelID),
		HasAttachments: len(m.Attachments) > 0,
		Timestamp:      ts,
	})
}

func (a *Adapter) isAdmin(userID, channelID string) bool {
	perms, err := a.sess.UserChannelPermissions(userID, channelID)
	if err != nil {
		slog.Debug("permission lookup failed", "user_id", userID, "error", err)
		return false
	}
	return perms&discordgo.PermissionAdministrator != 0
}

// ChannelName resolves a channel's name, caching lookups. Falls back to the
// raw ID when the API call fails so confirmation text still renders.
func (a *Adapter) ChannelName(channelID string) string {
	a.mu.Lock()
	if name, ok := a.channelNames[channelID]; ok {
		a.mu.Unlock()
		return name
	}
	a.mu.Unlock()

	ch, err := a.sess.Channel(channelID)
	if err != nil || ch.Name == "" {
		return channelID
	}
	a.mu.Lock()
	a.channelNames[channelID] = ch.Name
	a.mu.Unlock()
	return ch.Name
}

// SendTyping shows the typing indicator; failures are cosmetic.
func (a *Adapter) SendTyping(channelID string) {
	if err := a.sess.ChannelTyping(channelID); err != nil {
		slog.Debug("typing indicator failed", "channel_id", channelID, "error", err)
	}
}

// SendMessage delivers content, splitting anything over the Discord message
// limit into multiple sends.
func (a *Adapter) SendMessage(channelID, content string) error {
	for _, chunk := range SplitMessage(content) {
		if _, err := a.sess.ChannelMessageSend(channelID, chunk); err != nil {
			return fmt.Errorf("send message: %w", err)
		}
	}
	return nil
}

// FetchAllMessages pages backwards through a channel's entire transcript and
// returns it newest first. Implements history.Fetcher.
func (a *Adapter) FetchAllMessages(ctx context.Context, channelID string) ([]history.RawMessage, error) {
	botID := a.sess.BotUserID()
	var out []history.RawMessage
	beforeID := ""
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := a.sess.ChannelMessages(channelID, fetchPageSize, beforeID, "", "")
		if err != nil {
			return nil, fmt.Errorf("fetch channel messages: %w", err)
		}
		if len(page) == 0 {
			break
		}
		for _, m := range page {
			if m.Author == nil {
				continue
			}
			out = append(out, history.RawMessage{
				Content:        m.Content,
				Author:         messageDisplayName(m),
				IsSelf:         m.Author.ID == botID,
				HasAttachments: len(m.Attachments) > 0,
				Timestamp:      m.Timestamp,
			})
		}
		// Pages arrive newest first; the last entry is the oldest seen so far.
		beforeID = page[len(page)-1].ID
		if len(page) < fetchPageSize {
			break
		}
	}
	slog.Info("channel transcript fetched", "channel_id", channelID, "messages", len(out))
	return out, nil
}

func displayName(m *discordgo.MessageCreate) string {
	return messageDisplayName(m.Message)
}

func messageDisplayName(m *discordgo.Message) string {
	if m.Member != nil && m.Member.Nick != "" {
		return m.Member.Nick
	}
	if m.Author.GlobalName != "" {
		return m.Author.GlobalName
	}
	return m.Author.Username
}
