package nftscout

import (
	"encoding/json"
	"sync"
)

// Projection reduces a session stream into per-kind state. For every event
// kind the latest payload wins; earlier payloads of the same kind are
// replaced wholesale rather than merged.
type Projection struct {
	mu     sync.RWMutex
	latest map[string]Event
}

// NewProjection creates an empty projection.
func NewProjection() *Projection {
	return &Projection{latest: make(map[string]Event)}
}

// Apply folds one event into the projection.
func (p *Projection) Apply(event Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.latest[event.Kind] = event
}

// Latest returns the most recent event of the given kind, if any.
func (p *Projection) Latest(kind string) (Event, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	event, ok := p.latest[kind]
	return event, ok
}

// CollectionID returns the identifier carried by the latest saved-id event,
// or empty when nothing has been saved yet.
func (p *Projection) CollectionID() string {
	event, ok := p.Latest(KindSavedID)
	if !ok {
		return ""
	}
	var payload struct {
		CollectionID string `json:"collection_id"`
	}
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return ""
	}
	return payload.CollectionID
}

// Terminal reports whether a terminal event has been seen and its status.
func (p *Projection) Terminal() (string, bool) {
	event, ok := p.Latest(KindTerminal)
	if !ok {
		return "", false
	}
	var payload struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return "", true
	}
	return payload.Status, true
}
