package reclaim

import (
	"sort"

	"github.com/goccy/go-json"
)

// CodecInfo is one registry entry in a snapshot.
type CodecInfo struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Foreground bool   `json:"foreground"`
	IdleFor    string `json:"idle_for"`
}

// BufferInfo is one tracked buffer in a snapshot.
type BufferInfo struct {
	ID  string `json:"id"`
	Age string `json:"age"`
}

// Snapshot is a point-in-time view of the registry for status reporting.
type Snapshot struct {
	Codecs  []CodecInfo  `json:"codecs"`
	Buffers []BufferInfo `json:"buffers"`
}

// Snapshot captures the current registry state.
func (r *Registry) Snapshot() Snapshot {
	now := r.clock()
	r.mu.Lock()
	snap := Snapshot{
		Codecs:  make([]CodecInfo, 0, len(r.codecs)),
		Buffers: make([]BufferInfo, 0, len(r.buffers)),
	}
	for _, h := range r.codecs {
		snap.Codecs = append(snap.Codecs, CodecInfo{
			ID:         h.id.String(),
			Type:       h.typ.String(),
			Foreground: h.foreground,
			IdleFor:    now.Sub(h.lastActivity).String(),
		})
	}
	for _, b := range r.buffers {
		snap.Buffers = append(snap.Buffers, BufferInfo{
			ID:  b.id.String(),
			Age: now.Sub(b.created).String(),
		})
	}
	r.mu.Unlock()

	sort.Slice(snap.Codecs, func(i, j int) bool { return snap.Codecs[i].ID < snap.Codecs[j].ID })
	sort.Slice(snap.Buffers, func(i, j int) bool { return snap.Buffers[i].ID < snap.Buffers[j].ID })
	return snap
}

func (s Snapshot) String() string {
	raw, err := json.Marshal(s)
	if err != nil {
		return "{}"
	}
	return string(raw)
}
