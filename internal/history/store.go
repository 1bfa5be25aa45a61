package history

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Store owns all mutable per-channel state: the message window, the
// loaded-flag index, the per-channel load locks and the settings overrides.
// Everything is keyed by channel ID; the four concerns live in separate maps
// so their lifecycles stay independent. All mutation goes through Store
// methods under one mutex — no network or LLM calls ever happen here.
type Store struct {
	mu          sync.Mutex
	windows     map[string][]Message
	loaded      map[string]time.Time
	prompts     map[string]string
	providers   map[string]string
	autoRespond map[string]bool
	thinking    map[string]bool

	locks sync.Map // channel ID → *ChannelLock

	defaultPrompt      string
	defaultProvider    string
	defaultAutoRespond bool
}

type StoreConfig struct {
	DefaultSystemPrompt string
	DefaultProvider     string
	AutoRespondDefault  bool
}

func NewStore(cfg StoreConfig) *Store {
	return &Store{
		windows:            make(map[string][]Message),
		loaded:             make(map[string]time.Time),
		prompts:            make(map[string]string),
		providers:          make(map[string]string),
		autoRespond:        make(map[string]bool),
		thinking:           make(map[string]bool),
		defaultPrompt:      cfg.DefaultSystemPrompt,
		defaultProvider:    cfg.DefaultProvider,
		defaultAutoRespond: cfg.AutoRespondDefault,
	}
}

// ChannelLock serializes history loads for one channel. It is a semaphore
// rather than a sync.Mutex so acquisition can honor a deadline.
type ChannelLock struct {
	ch chan struct{}
}

func newChannelLock() *ChannelLock {
	return &ChannelLock{ch: make(chan struct{}, 1)}
}

// Acquire blocks until the lock is free or ctx expires.
func (l *ChannelLock) Acquire(ctx context.Context) error {
	select {
	case l.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *ChannelLock) Release() {
	<-l.ch
}

// Lock returns the load lock for a channel, creating it on first use. The
// get-or-insert is atomic: two racing first-time callers always end up with
// the same lock object.
func (s *Store) Lock(channelID string) *ChannelLock {
	if l, ok := s.locks.Load(channelID); ok {
		return l.(*ChannelLock)
	}
	l, loaded := s.locks.LoadOrStore(channelID, newChannelLock())
	if !loaded {
		slog.Debug("created load lock", "channel", channelID)
	}
	return l.(*ChannelLock)
}

// --- window ---

func (s *Store) Append(channelID string, msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.windows[channelID] = append(s.windows[channelID], msg)
}

// History returns a copy of the channel window.
func (s *Store) History(channelID string) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	window := s.windows[channelID]
	out := make([]Message, len(window))
	copy(out, window)
	return out
}

func (s *Store) Len(channelID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows[channelID])
}

// Trim keeps only the newest maxLen entries. Returns the lengths before and
// after for logging.
func (s *Store) Trim(channelID string, maxLen int) (before, after int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	window := s.windows[channelID]
	before = len(window)
	if before <= maxLen {
		return before, before
	}
	s.windows[channelID] = window[before-maxLen:]
	return before, maxLen
}

// Filter removes entries for which keep returns false.
func (s *Store) Filter(channelID string, keep func(Message) bool) (before, after, removed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	window := s.windows[channelID]
	before = len(window)
	kept := window[:0]
	for _, m := range window {
		if keep(m) {
			kept = append(kept, m)
		}
	}
	s.windows[channelID] = kept
	after = len(kept)
	return before, after, before - after
}

// Clear drops the whole window and returns how many entries it held.
func (s *Store) Clear(channelID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.windows[channelID])
	delete(s.windows, channelID)
	return n
}

// --- loaded index ---

func (s *Store) IsLoaded(channelID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.loaded[channelID]
	return ok
}

func (s *Store) MarkLoaded(channelID string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded[channelID] = at
}

// ClearLoaded removes the loaded flag so the next message triggers a full
// reload. Used by forced reloads only.
func (s *Store) ClearLoaded(channelID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.loaded[channelID]
	delete(s.loaded, channelID)
	return ok
}

// LoadedChannels returns a snapshot of the loaded index.
func (s *Store) LoadedChannels() map[string]time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]time.Time, len(s.loaded))
	for id, at := range s.loaded {
		out[id] = at
	}
	return out
}

// --- settings ---

// SystemPrompt returns the channel override or the process default.
func (s *Store) SystemPrompt(channelID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.prompts[channelID]; ok {
		return p
	}
	return s.defaultPrompt
}

func (s *Store) DefaultSystemPrompt() string {
	return s.defaultPrompt
}

func (s *Store) HasCustomPrompt(channelID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.prompts[channelID]
	return ok
}

// SetSystemPrompt stores a prompt override and, when the channel already has
// a window, appends a sentinel record so the change survives a reload even if
// the confirmation message is lost. Returns false when the prompt is
// unchanged.
func (s *Store) SetSystemPrompt(channelID, prompt string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.prompts[channelID]
	if !ok {
		current = s.defaultPrompt
	}
	if current == prompt {
		return false
	}
	s.prompts[channelID] = prompt
	if _, ok := s.windows[channelID]; ok {
		s.windows[channelID] = append(s.windows[channelID], NewSystemUpdateMessage(prompt))
	}
	return true
}

// RemoveSystemPrompt drops the override and records the reset as a sentinel
// carrying the default prompt, so a reload recovers the reset rather than the
// old override.
func (s *Store) RemoveSystemPrompt(channelID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed, ok := s.prompts[channelID]
	if !ok {
		return "", false
	}
	delete(s.prompts, channelID)
	if _, ok := s.windows[channelID]; ok {
		s.windows[channelID] = append(s.windows[channelID], NewSystemUpdateMessage(s.defaultPrompt))
	}
	return removed, true
}

// applyRecoveredPrompt installs a prompt during transcript recovery without
// the sentinel side effect (the transcript already holds the evidence).
func (s *Store) applyRecoveredPrompt(channelID, prompt string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts[channelID] = prompt
}

// Provider returns the channel override, or "" when the default applies.
func (s *Store) Provider(channelID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.providers[channelID]
}

// EffectiveProvider resolves the override against the process default.
func (s *Store) EffectiveProvider(channelID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.providers[channelID]; ok {
		return p
	}
	return s.defaultProvider
}

func (s *Store) DefaultProvider() string {
	return s.defaultProvider
}

// SetProvider stores a provider override. Invalid names are rejected so a
// corrupted confirmation can never select a nonexistent backend.
func (s *Store) SetProvider(channelID, name string) (changed bool, ok bool) {
	if !IsValidProvider(name) {
		slog.Warn("rejected invalid provider", "channel", channelID, "provider", name)
		return false, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.providers[channelID] == name {
		return false, true
	}
	s.providers[channelID] = name
	return true, true
}

func (s *Store) RemoveProvider(channelID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed, ok := s.providers[channelID]
	if ok {
		delete(s.providers, channelID)
	}
	return removed, ok
}

func (s *Store) AutoRespond(channelID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.autoRespond[channelID]; ok {
		return v
	}
	return s.defaultAutoRespond
}

// SetAutoRespondDefault changes the process-wide default. Channels with an
// explicit override keep it.
func (s *Store) SetAutoRespondDefault(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaultAutoRespond = on
}

func (s *Store) SetAutoRespond(channelID string, on bool) (changed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.autoRespond[channelID]
	if !ok {
		current = s.defaultAutoRespond
	}
	if current == on {
		return false
	}
	s.autoRespond[channelID] = on
	return true
}

func (s *Store) ThinkingEnabled(channelID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.thinking[channelID]
}

func (s *Store) SetThinking(channelID string, on bool) (changed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.thinking[channelID] == on {
		return false
	}
	if on {
		s.thinking[channelID] = true
	} else {
		delete(s.thinking, channelID)
	}
	return true
}
