package modlife

import (
	"context"
	"fmt"
	"sync"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
)

// Observer is notified of lifecycle events. Events use the CloudEvents
// specification so they can be forwarded to external systems unchanged.
type Observer interface {
	// OnEvent is called for every event the observer subscribed to.
	// Observers should return quickly; errors are logged and ignored.
	OnEvent(ctx context.Context, event cloudevents.Event) error

	// ObserverID returns a unique identifier for this observer.
	ObserverID() string
}

// ObserverInfo describes a registered observer.
type ObserverInfo struct {
	ID           string    `json:"id"`
	EventTypes   []string  `json:"eventTypes"`
	RegisteredAt time.Time `json:"registeredAt"`
}

// Lifecycle event types, in reverse domain notation.
const (
	EventTypePhaseChanged       = "com.modlife.phase.changed"
	EventTypeModuleStateChanged = "com.modlife.module.state_changed"
	EventTypeEngineStopped      = "com.modlife.engine.stopped"
)

// PhaseChangedData is the payload of EventTypePhaseChanged.
type PhaseChangedData struct {
	From Phase `json:"from"`
	To   Phase `json:"to"`
}

// ModuleStateChangedData is the payload of EventTypeModuleStateChanged.
type ModuleStateChangedData struct {
	Module string      `json:"module"`
	From   ModuleState `json:"from"`
	To     ModuleState `json:"to"`
}

// StoppedData is the payload of EventTypeEngineStopped.
type StoppedData struct {
	Success bool `json:"success"`
}

// FunctionalObserver adapts a function to the Observer interface.
type FunctionalObserver struct {
	id      string
	handler func(ctx context.Context, event cloudevents.Event) error
}

// NewFunctionalObserver creates an observer that calls handler for every event.
func NewFunctionalObserver(id string, handler func(ctx context.Context, event cloudevents.Event) error) Observer {
	return &FunctionalObserver{
		id:      id,
		handler: handler,
	}
}

// OnEvent implements the Observer interface by calling the handler function.
func (f *FunctionalObserver) OnEvent(ctx context.Context, event cloudevents.Event) error {
	return f.handler(ctx, event)
}

// ObserverID implements the Observer interface by returning the observer ID.
func (f *FunctionalObserver) ObserverID() string {
	return f.id
}

// NewCloudEvent creates a CloudEvent with a time ordered id.
func NewCloudEvent(eventType, source string, data any, metadata map[string]any) cloudevents.Event {
	event := cloudevents.NewEvent()
	event.SetID(generateEventID())
	event.SetSource(source)
	event.SetType(eventType)
	event.SetTime(time.Now())
	event.SetSpecVersion(cloudevents.VersionV1)

	if data != nil {
		_ = event.SetData(cloudevents.ApplicationJSON, data)
	}
	for key, value := range metadata {
		event.SetExtension(key, value)
	}
	return event
}

// generateEventID returns a UUIDv7, falling back to v4.
func generateEventID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return id.String()
}

type observerRegistration struct {
	observer     Observer
	eventTypes   map[string]bool
	registeredAt time.Time
}

// eventHub fans lifecycle events out to observers. Delivery happens on
// separate goroutines so observers can never block or abort the engine.
type eventHub struct {
	logger    Logger
	source    string
	mu        sync.RWMutex
	observers map[string]*observerRegistration
}

func newEventHub(logger Logger, source string) *eventHub {
	return &eventHub{
		logger:    logger,
		source:    source,
		observers: make(map[string]*observerRegistration),
	}
}

func (h *eventHub) register(observer Observer, eventTypes ...string) error {
	if observer == nil {
		return fmt.Errorf("%w: observer is nil", ErrInvalidUse)
	}
	types := make(map[string]bool, len(eventTypes))
	for _, t := range eventTypes {
		types[t] = true
	}

	h.mu.Lock()
	h.observers[observer.ObserverID()] = &observerRegistration{
		observer:     observer,
		eventTypes:   types,
		registeredAt: time.Now(),
	}
	h.mu.Unlock()

	h.logger.Debug("Observer registered", "observerID", observer.ObserverID(), "eventTypes", eventTypes)
	return nil
}

func (h *eventHub) unregister(observer Observer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.observers, observer.ObserverID())
}

func (h *eventHub) info() []ObserverInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]ObserverInfo, 0, len(h.observers))
	for _, reg := range h.observers {
		types := make([]string, 0, len(reg.eventTypes))
		for t := range reg.eventTypes {
			types = append(types, t)
		}
		out = append(out, ObserverInfo{
			ID:           reg.observer.ObserverID(),
			EventTypes:   types,
			RegisteredAt: reg.registeredAt,
		})
	}
	return out
}

func (h *eventHub) emit(eventType string, data any) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.observers) == 0 {
		return
	}

	event := NewCloudEvent(eventType, h.source, data, nil)
	for _, reg := range h.observers {
		reg := reg
		if len(reg.eventTypes) > 0 && !reg.eventTypes[eventType] {
			continue
		}
		go func() {
			defer func() {
				if r := recover(); r != nil {
					h.logger.Error("Observer panicked", "observerID", reg.observer.ObserverID(), "event", eventType, "panic", r)
				}
			}()
			if err := reg.observer.OnEvent(context.Background(), event); err != nil {
				h.logger.Error("Observer error", "observerID", reg.observer.ObserverID(), "event", eventType, "error", err)
			}
		}()
	}
}

// RegisterObserver subscribes observer to the given event types, or to all
// events when none are given.
func (e *Engine) RegisterObserver(observer Observer, eventTypes ...string) error {
	return e.events.register(observer, eventTypes...)
}

// UnregisterObserver removes observer. It is a no-op for unknown observers.
func (e *Engine) UnregisterObserver(observer Observer) {
	e.events.unregister(observer)
}

// GetObservers describes the currently registered observers.
func (e *Engine) GetObservers() []ObserverInfo {
	return e.events.info()
}
