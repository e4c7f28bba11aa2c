package nftscout

import (
	"encoding/json"
	"sync"
)

// Navigator reacts to the first saved-id event of a stream by invoking a
// navigation callback exactly once. The transition is absorbing: once
// navigated, further saved-id events and resets of the input have no effect.
type Navigator struct {
	mu        sync.Mutex
	navigated bool
	navigate  func(collectionID string)
}

// NewNavigator creates a navigator with the given callback.
func NewNavigator(navigate func(collectionID string)) *Navigator {
	return &Navigator{navigate: navigate}
}

// OnEvent observes a stream event. Returns true when this event triggered
// the navigation.
func (n *Navigator) OnEvent(event Event) bool {
	if event.Kind != KindSavedID {
		return false
	}
	var payload struct {
		CollectionID string `json:"collection_id"`
	}
	if err := json.Unmarshal(event.Payload, &payload); err != nil || payload.CollectionID == "" {
		return false
	}

	n.mu.Lock()
	if n.navigated {
		n.mu.Unlock()
		return false
	}
	n.navigated = true
	callback := n.navigate
	n.mu.Unlock()

	if callback != nil {
		callback(payload.CollectionID)
	}
	return true
}

// Navigated reports whether the navigation already happened.
func (n *Navigator) Navigated() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.navigated
}
