// Package sync fans configuration changes out to interested subscribers.
package sync

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/open-feature/featuremanager/core/pkg/model"
)

// Payload is the full configuration document as served to subscribers.
type Payload struct {
	Flags string `json:"flags"`
}

// Multiplexer abstracts subscription handling. The document is re-rendered from the
// configuration on every publish.
type Multiplexer struct {
	configuration model.Configuration
	sources       []string

	subs     map[any]subscription
	allFlags string

	mu sync.RWMutex
}

type subscription struct {
	id      any
	channel chan Payload
}

// NewMux creates a new sync multiplexer
func NewMux(configuration model.Configuration, sources []string) (*Multiplexer, error) {
	m := &Multiplexer{
		configuration: configuration,
		sources:       sources,
		subs:          map[any]subscription{},
	}

	return m, m.reFill()
}

// Register a subscription and return the current document. Publishing never blocks on a
// subscriber, so con should be buffered.
func (r *Multiplexer) Register(id any, con chan Payload) Payload {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.subs[id] = subscription{id: id, channel: con}
	return Payload{Flags: r.allFlags}
}

// Publish sync updates to subscriptions
func (r *Multiplexer) Publish() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.reFill(); err != nil {
		return err
	}

	for _, sub := range r.subs {
		select {
		case sub.channel <- Payload{Flags: r.allFlags}:
		default:
		}
	}

	return nil
}

// Unregister a subscription
func (r *Multiplexer) Unregister(id any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.subs, id)
}

// Subscribers returns the number of registered subscriptions.
func (r *Multiplexer) Subscribers() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.subs)
}

// GetAllFlags returns the last published document.
func (r *Multiplexer) GetAllFlags() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.allFlags
}

// SourcesAsMetadata returns all known sources, comma separated to be used as service metadata
func (r *Multiplexer) SourcesAsMetadata() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return strings.Join(r.sources, ",")
}

func (r *Multiplexer) reFill() error {
	snapshot := r.configuration.FeatureManagement()
	if snapshot == nil {
		snapshot = &model.FeatureManagement{}
	}
	if snapshot.FeatureFlags == nil {
		snapshot = &model.FeatureManagement{FeatureFlags: []json.RawMessage{}}
	}

	bytes, err := json.Marshal(model.Document{FeatureManagement: snapshot})
	if err != nil {
		return fmt.Errorf("error marshalling: %w", err)
	}

	r.allFlags = string(bytes)
	return nil
}
