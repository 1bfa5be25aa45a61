package history

import (
	"sort"
	"time"
)

// ChannelStatus is a diagnostic snapshot of one loaded channel.
type ChannelStatus struct {
	ChannelID  string
	LoadedAt   time.Time
	WindowSize int
}

// LoadingStatus reports every loaded channel, oldest load first.
func (s *Store) LoadingStatus() []ChannelStatus {
	loaded := s.LoadedChannels()
	out := make([]ChannelStatus, 0, len(loaded))
	for id, at := range loaded {
		out = append(out, ChannelStatus{
			ChannelID:  id,
			LoadedAt:   at,
			WindowSize: s.Len(id),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LoadedAt.Before(out[j].LoadedAt) })
	return out
}

// Stats summarizes store-wide state for the doctor command and logs.
type Stats struct {
	LoadedChannels  int
	TotalMessages   int
	CustomPrompts   int
	CustomProviders int
}

func (s *Store) Statistics() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Stats{
		LoadedChannels:  len(s.loaded),
		CustomPrompts:   len(s.prompts),
		CustomProviders: len(s.providers),
	}
	for _, w := range s.windows {
		st.TotalMessages += len(w)
	}
	return st
}
