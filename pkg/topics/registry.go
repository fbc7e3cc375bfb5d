// Package topics maps event topic strings to concrete Go types and back,
// and optionally validates payloads against registered JSON Schemas. The
// registry replaces open-ended subclassing: the set of topics a deployment
// understands is exactly the set registered here at startup.
package topics

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/Mindburn-Labs/keel/pkg/sequenced"
)

// SnapshotTopic is the distinguished topic under which snapshot records are
// stored. Every registry binds it to sequenced.Snapshot; user registrations
// under it are rejected.
const SnapshotTopic = "keel.snapshot"

type entry struct {
	typ    reflect.Type
	schema *jsonschema.Schema
}

// Registry is a bidirectional topic to type mapping. Safe for concurrent
// use; registration normally happens once during wiring.
type Registry struct {
	mu      sync.RWMutex
	byTopic map[string]*entry
	byType  map[reflect.Type]string
}

func NewRegistry() *Registry {
	r := &Registry{
		byTopic: make(map[string]*entry),
		byType:  make(map[reflect.Type]string),
	}
	snapType := reflect.TypeOf(sequenced.Snapshot{})
	r.byTopic[SnapshotTopic] = &entry{typ: snapType}
	r.byType[snapType] = SnapshotTopic
	return r
}

// Register binds topic to the concrete type of prototype. The prototype
// value itself is discarded; a fresh instance is created per decode.
func (r *Registry) Register(topic string, prototype sequenced.Event) error {
	return r.register(topic, prototype, nil)
}

// RegisterWithSchema additionally compiles schema (JSON Schema, draft
// 2020-12) and validates every payload decoded under this topic.
func (r *Registry) RegisterWithSchema(topic string, prototype sequenced.Event, schema []byte) error {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	url := fmt.Sprintf("https://keel.schemas.local/topics/%s.schema.json", topic)
	if err := c.AddResource(url, bytes.NewReader(schema)); err != nil {
		return fmt.Errorf("schema load failed for topic %q: %w", topic, err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return fmt.Errorf("schema compile failed for topic %q: %w", topic, err)
	}
	return r.register(topic, prototype, compiled)
}

func (r *Registry) register(topic string, prototype sequenced.Event, schema *jsonschema.Schema) error {
	if topic == "" {
		return errors.New("topic must not be empty")
	}
	if topic == SnapshotTopic {
		return fmt.Errorf("topic %q is reserved", SnapshotTopic)
	}
	t := reflect.TypeOf(prototype)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return fmt.Errorf("prototype for topic %q must be a struct, got %s", topic, t.Kind())
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byTopic[topic]; ok {
		return fmt.Errorf("topic %q already registered", topic)
	}
	if existing, ok := r.byType[t]; ok {
		return fmt.Errorf("type %s already registered under topic %q", t, existing)
	}
	r.byTopic[topic] = &entry{typ: t, schema: schema}
	r.byType[t] = topic
	return nil
}

// New returns a fresh pointer instance of the type registered for topic.
func (r *Registry) New(topic string) (sequenced.Event, error) {
	r.mu.RLock()
	e, ok := r.byTopic[topic]
	r.mu.RUnlock()
	if !ok {
		return nil, &sequenced.MappingError{Topic: topic, Err: errors.New("topic not registered")}
	}
	ev, ok := reflect.New(e.typ).Interface().(sequenced.Event)
	if !ok {
		return nil, &sequenced.MappingError{Topic: topic, Err: fmt.Errorf("type %s does not implement Event", e.typ)}
	}
	return ev, nil
}

// TopicOf returns the topic registered for the event's concrete type.
func (r *Registry) TopicOf(ev sequenced.Event) (string, error) {
	t := reflect.TypeOf(ev)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	r.mu.RLock()
	topic, ok := r.byType[t]
	r.mu.RUnlock()
	if !ok {
		return "", &sequenced.MappingError{Topic: t.String(), Err: errors.New("event type not registered")}
	}
	return topic, nil
}

// Validate checks payload against the schema registered for topic. Topics
// registered without a schema validate trivially.
func (r *Registry) Validate(topic string, payload []byte) error {
	r.mu.RLock()
	e, ok := r.byTopic[topic]
	r.mu.RUnlock()
	if !ok {
		return &sequenced.MappingError{Topic: topic, Err: errors.New("topic not registered")}
	}
	if e.schema == nil {
		return nil
	}
	var v any
	if err := json.Unmarshal(payload, &v); err != nil {
		return &sequenced.MappingError{Topic: topic, Err: err}
	}
	if err := e.schema.Validate(v); err != nil {
		return &sequenced.MappingError{Topic: topic, Err: err}
	}
	return nil
}
