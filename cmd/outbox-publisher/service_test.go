package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/angelmondragon/tabletloan-backend/pkg/config"
	"github.com/angelmondragon/tabletloan-backend/pkg/db/models"
	"github.com/angelmondragon/tabletloan-backend/pkg/enums"
	"github.com/angelmondragon/tabletloan-backend/pkg/logger"
	"github.com/angelmondragon/tabletloan-backend/pkg/outbox"
	"github.com/angelmondragon/tabletloan-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/tabletloan-backend/pkg/outbox/registry"
	"github.com/angelmondragon/tabletloan-backend/pkg/types"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const testTopic = "lending-topic"

func TestServiceProcessBatchContinuesAfterFailure(t *testing.T) {
	repo := &fakeRepo{
		events: []models.OutboxEvent{
			assignmentEvent(t, "event-one", 0),
			assignmentEvent(t, "event-two", 0),
		},
	}
	pub := &fakePublisher{
		results: []publishResult{
			fakePublishResult{err: errors.New("transient")},
			fakePublishResult{},
		},
	}
	service := newTestService(t, repo, pub, &fakeRegistry{resolved: resolvedAssignment()}, nil)

	processed, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if !processed {
		t.Fatalf("expected batch to report processed")
	}
	if got := len(repo.failed); got != 1 {
		t.Fatalf("unexpected number of failed rows: %d", got)
	}
	if got := len(repo.published); got != 1 {
		t.Fatalf("unexpected number of published rows: %d", got)
	}
	if repo.failed[0] != repo.events[0].ID {
		t.Fatalf("failed row recorded wrong ID")
	}
	if repo.published[0] != repo.events[1].ID {
		t.Fatalf("published row recorded wrong ID")
	}
}

func TestPublishResolvedCarriesActorAttributes(t *testing.T) {
	pub := &fakePublisher{results: []publishResult{fakePublishResult{}}}
	event := assignmentEvent(t, "with-actor", 0)
	resolved := resolvedAssignment()
	resolved.Envelope.Actor = &outbox.ActorRef{Operator: "office-1", Source: "assignments"}

	service := newTestService(t, &fakeRepo{}, pub, &fakeRegistry{}, nil)
	if err := service.publishResolved(context.Background(), event, resolved); err != nil {
		t.Fatalf("publish returned error: %v", err)
	}
	if len(pub.sent) != 1 {
		t.Fatalf("expected one message, got %d", len(pub.sent))
	}
	attrs := pub.sent[0].Attributes
	if attrs["operator"] != "office-1" || attrs["source"] != "assignments" {
		t.Fatalf("unexpected actor attributes: %v", attrs)
	}
	if attrs["event_type"] != string(enums.EventAssignmentCreated) {
		t.Fatalf("unexpected event_type %q", attrs["event_type"])
	}
	if attrs["aggregate_id"] != event.AggregateID.String() {
		t.Fatalf("unexpected aggregate_id %q", attrs["aggregate_id"])
	}
}

func TestServiceProcessBatchPublishesDissolvedAssignment(t *testing.T) {
	reg, err := registry.NewEventRegistry(config.PubSubConfig{LendingTopic: testTopic})
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	dissolved := payloads.AssignmentDissolvedEvent{
		AssignmentID: uuid.New(),
		DeviceID:     uuid.New(),
		PersonID:     uuid.New(),
		DeviceStatus: enums.DeviceStatusAvailable,
		DissolvedAt:  time.Now().UTC(),
	}
	data, err := json.Marshal(dissolved)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	envelope, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    "dissolve-1",
		OccurredAt: dissolved.DissolvedAt,
		Actor:      &outbox.ActorRef{Operator: "office-2", Source: "assignments"},
		Data:       data,
	})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	event := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventAssignmentDissolved,
		AggregateType: enums.AggregateAssignment,
		AggregateID:   dissolved.AssignmentID,
		Payload:       types.JSONB(envelope),
	}
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	pub := &fakePublisher{results: []publishResult{fakePublishResult{}}}
	service := newTestService(t, repo, pub, reg, nil)

	processed, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if !processed {
		t.Fatalf("expected batch to report processed")
	}
	if len(repo.published) != 1 || repo.published[0] != event.ID {
		t.Fatalf("expected dissolved event published, got %v", repo.published)
	}
	if len(repo.failed) != 0 || len(repo.terminal) != 0 {
		t.Fatalf("dissolved event must not fail or park")
	}
	if len(pub.sent) != 1 {
		t.Fatalf("expected one message, got %d", len(pub.sent))
	}
	attrs := pub.sent[0].Attributes
	if attrs["event_type"] != string(enums.EventAssignmentDissolved) {
		t.Fatalf("unexpected event_type %q", attrs["event_type"])
	}
	if attrs["aggregate_type"] != string(enums.AggregateAssignment) {
		t.Fatalf("unexpected aggregate_type %q", attrs["aggregate_type"])
	}
	if attrs["aggregate_id"] != dissolved.AssignmentID.String() {
		t.Fatalf("unexpected aggregate_id %q", attrs["aggregate_id"])
	}
	if attrs["event_id"] != "dissolve-1" || attrs["operator"] != "office-2" {
		t.Fatalf("unexpected envelope attributes: %v", attrs)
	}

	var sent outbox.PayloadEnvelope
	if err := json.Unmarshal(pub.sent[0].Data, &sent); err != nil {
		t.Fatalf("decode published envelope: %v", err)
	}
	var got payloads.AssignmentDissolvedEvent
	if err := json.Unmarshal(sent.Data, &got); err != nil {
		t.Fatalf("decode published payload: %v", err)
	}
	if got.DeviceID != dissolved.DeviceID || got.DeviceStatus != enums.DeviceStatusAvailable {
		t.Fatalf("unexpected published payload %+v", got)
	}
}

func TestServiceProcessBatchParksNonRetryable(t *testing.T) {
	event := assignmentEvent(t, "nonretryable", 0)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	reg := &fakeRegistry{err: registry.NewNonRetryableError(errors.New("invalid payload"))}
	service := newTestService(t, repo, &fakePublisher{}, reg, nil)

	processed, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if !processed {
		t.Fatalf("expected batch to report processed")
	}
	if len(repo.terminal) != 1 || repo.terminal[0] != event.ID {
		t.Fatalf("expected event parked, got %v", repo.terminal)
	}
	if repo.terminalAttempts != 5 {
		t.Fatalf("expected row parked at max attempts, got %d", repo.terminalAttempts)
	}
	if len(repo.published) != 0 || len(repo.failed) != 0 {
		t.Fatalf("parked row must not be marked published or failed")
	}
}

func TestServiceProcessBatchParksOnMaxAttempts(t *testing.T) {
	event := assignmentEvent(t, "max-attempts", 1)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	pub := &fakePublisher{
		results: []publishResult{
			fakePublishResult{err: errors.New("transient")},
		},
	}
	service := newTestService(t, repo, pub, &fakeRegistry{resolved: resolvedAssignment()}, &config.OutboxConfig{
		BatchSize:      1,
		PollIntervalMS: 100,
		MaxAttempts:    2,
	})

	processed, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if !processed {
		t.Fatalf("expected batch to report processed")
	}
	if len(repo.terminal) != 1 || repo.terminal[0] != event.ID {
		t.Fatalf("expected event parked, got %v", repo.terminal)
	}
	if repo.terminalAttempts != 2 {
		t.Fatalf("unexpected terminal attempts %d", repo.terminalAttempts)
	}
}

func TestServiceProcessBatchMissingPublisherIsTerminal(t *testing.T) {
	event := assignmentEvent(t, "no-publisher", 0)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	service := newTestService(t, repo, nil, &fakeRegistry{resolved: resolvedAssignment()}, nil)
	service.publisherFactory = func(string) publisher { return nil }

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if len(repo.terminal) != 1 {
		t.Fatalf("expected event parked when no publisher is configured")
	}
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	if _, err := NewService(ServiceParams{}); err == nil {
		t.Fatalf("expected error without config")
	}
	_, err := NewService(ServiceParams{
		Config: &config.Config{},
		Logger: logger.Nop(),
		DB:     &fakeDB{},
		PubSub: &fakePubSubClient{},
	})
	if err == nil {
		t.Fatalf("expected error without repository")
	}
}

func TestNextBackoffCapsAtMax(t *testing.T) {
	if got := nextBackoff(0, time.Second, 10*time.Second); got != 2*time.Second {
		t.Fatalf("unexpected first backoff %v", got)
	}
	if got := nextBackoff(8*time.Second, time.Second, 10*time.Second); got != 10*time.Second {
		t.Fatalf("expected capped backoff, got %v", got)
	}
}

func newTestService(t *testing.T, repo outboxRepository, pub publisher, reg registryResolver, outboxCfgOverride *config.OutboxConfig) *Service {
	t.Helper()
	outboxCfg := config.OutboxConfig{
		BatchSize:      2,
		PollIntervalMS: 100,
		MaxAttempts:    5,
	}
	if outboxCfgOverride != nil {
		outboxCfg = *outboxCfgOverride
	}
	cfg := &config.Config{
		Outbox: outboxCfg,
		PubSub: config.PubSubConfig{LendingTopic: testTopic},
	}
	logg := logger.New(logger.Options{
		ServiceName: "outbox-publisher-test",
		Output:      io.Discard,
	})
	service, err := NewService(ServiceParams{
		Config:     cfg,
		Logger:     logg,
		DB:         &fakeDB{},
		PubSub:     &fakePubSubClient{},
		Repository: repo,
		Registry:   reg,
		PublisherFactory: func(topic string) publisher {
			if topic != testTopic {
				t.Fatalf("unexpected topic %q", topic)
			}
			return pub
		},
	})
	if err != nil {
		t.Fatalf("failed to construct service: %v", err)
	}
	return service
}

func assignmentEvent(tb testing.TB, eventID string, attempts int) models.OutboxEvent {
	tb.Helper()
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventAssignmentCreated,
		AggregateType: enums.AggregateAssignment,
		AggregateID:   uuid.New(),
		Payload:       mustEnvelopePayload(tb, eventID),
		AttemptCount:  attempts,
	}
}

func resolvedAssignment() *registry.ResolvedEvent {
	return &registry.ResolvedEvent{
		Descriptor: registry.EventDescriptor{
			EventType:     enums.EventAssignmentCreated,
			AggregateType: enums.AggregateAssignment,
			Topic:         testTopic,
		},
		Envelope: outbox.PayloadEnvelope{
			EventID:    uuid.NewString(),
			OccurredAt: time.Now(),
		},
		Payload: &payloads.AssignmentCreatedEvent{},
	}
}

func mustEnvelopePayload(tb testing.TB, eventID string) types.JSONB {
	tb.Helper()
	env := outbox.PayloadEnvelope{
		Version:    1,
		EventID:    eventID,
		OccurredAt: time.Now(),
		Data:       json.RawMessage(`{}`),
	}
	payload, err := json.Marshal(env)
	if err != nil {
		tb.Fatalf("marshal envelope: %v", err)
	}
	return types.JSONB(payload)
}

type fakeRepo struct {
	events           []models.OutboxEvent
	published        []uuid.UUID
	failed           []uuid.UUID
	terminal         []uuid.UUID
	terminalAttempts int
}

func (f *fakeRepo) FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	return f.events, nil
}

func (f *fakeRepo) MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error {
	f.published = append(f.published, id)
	return nil
}

func (f *fakeRepo) MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error {
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeRepo) MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error {
	f.terminal = append(f.terminal, id)
	f.terminalAttempts = terminalAttempts
	return nil
}

type fakeDB struct{}

func (f *fakeDB) Ping(context.Context) error {
	return nil
}

func (f *fakeDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error {
	return fn(nil)
}

type fakePubSubClient struct{}

func (f *fakePubSubClient) Ping(context.Context) error {
	return nil
}

func (f *fakePubSubClient) LendingPublisher() *gcppubsub.Publisher {
	return nil
}

func (f *fakePubSubClient) Publisher(name string) *gcppubsub.Publisher {
	return nil
}

type fakePublisher struct {
	results []publishResult
	sent    []*gcppubsub.Message
}

func (f *fakePublisher) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	f.sent = append(f.sent, msg)
	if len(f.results) == 0 {
		return nil
	}
	result := f.results[0]
	f.results = f.results[1:]
	return result
}

type fakePublishResult struct {
	err error
}

func (f fakePublishResult) Get(context.Context) (string, error) {
	return "", f.err
}

type fakeRegistry struct {
	resolved *registry.ResolvedEvent
	err      error
}

func (f *fakeRegistry) Resolve(event models.OutboxEvent) (*registry.ResolvedEvent, error) {
	if f.resolved == nil {
		return nil, f.err
	}
	resolved := *f.resolved
	resolved.Envelope.EventID = event.ID.String()
	return &resolved, f.err
}
