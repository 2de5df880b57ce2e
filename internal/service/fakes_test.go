package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"outreach/internal/model"
	"outreach/internal/repository"
	"outreach/pkg/mq"
)

// In-memory fakes for the store interfaces. Each mirrors the semantics the
// pgx repositories get from the database constraints.

type fakeMessages struct {
	mu     sync.Mutex
	nextID int64
	byKey  map[string]*model.OutboundMessage
	byID   map[int64]*model.OutboundMessage
}

func newFakeMessages() *fakeMessages {
	return &fakeMessages{
		nextID: 1,
		byKey:  make(map[string]*model.OutboundMessage),
		byID:   make(map[int64]*model.OutboundMessage),
	}
}

func (f *fakeMessages) Claim(_ context.Context, m *model.OutboundMessage) (*model.OutboundMessage, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := fmt.Sprintf("%d|%s", m.TenantID, m.DedupeKey)
	if existing, ok := f.byKey[key]; ok {
		cp := *existing
		return &cp, false, nil
	}
	m.ID = f.nextID
	f.nextID++
	m.State = model.MessageQueued
	m.CreatedAt = time.Now()
	cp := *m
	f.byKey[key] = &cp
	f.byID[m.ID] = &cp
	return m, true, nil
}

func (f *fakeMessages) FindByID(_ context.Context, tenantID, id int64) (*model.OutboundMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.byID[id]
	if !ok || m.TenantID != tenantID {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func (f *fakeMessages) MarkSent(_ context.Context, id int64, providerMessageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.byID[id]
	if !ok {
		return fmt.Errorf("message %d not found", id)
	}
	m.State = model.MessageSent
	m.ProviderMessageID = providerMessageID
	return nil
}

func (f *fakeMessages) MarkFailed(_ context.Context, id int64, sendErr string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.byID[id]
	if !ok {
		return fmt.Errorf("message %d not found", id)
	}
	m.State = model.MessageFailed
	m.LastError = sendErr
	return nil
}

func (f *fakeMessages) DeleteQueued(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.byID[id]
	if !ok || m.State != model.MessageQueued {
		return nil
	}
	delete(f.byID, id)
	delete(f.byKey, fmt.Sprintf("%d|%s", m.TenantID, m.DedupeKey))
	return nil
}

func (f *fakeMessages) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, m := range f.byID {
		if m.State == model.MessageSent {
			n++
		}
	}
	return n
}

type fakeEvents struct {
	mu     sync.Mutex
	nextID int64
	events []model.MessageEvent
}

func newFakeEvents() *fakeEvents {
	return &fakeEvents{nextID: 1}
}

func (f *fakeEvents) Insert(_ context.Context, e *model.MessageEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e.ID = f.nextID
	f.nextID++
	f.events = append(f.events, *e)
	return nil
}

func (f *fakeEvents) Exists(_ context.Context, tenantID, messageID int64, eventType string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.events {
		if e.TenantID == tenantID && e.MessageID == messageID && e.Type == eventType {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeEvents) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

type fakeCampaigns struct {
	mu        sync.Mutex
	byID      map[int64]*model.ContactCampaign
	completed map[int64]bool
}

func newFakeCampaigns(campaigns ...*model.ContactCampaign) *fakeCampaigns {
	f := &fakeCampaigns{
		byID:      make(map[int64]*model.ContactCampaign),
		completed: make(map[int64]bool),
	}
	for _, c := range campaigns {
		f.byID[c.ID] = c
	}
	return f
}

func (f *fakeCampaigns) Create(_ context.Context, c *model.ContactCampaign) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := int64(1)
	for existing := range f.byID {
		if existing >= id {
			id = existing + 1
		}
	}
	c.ID = id
	c.CreatedAt = time.Now()
	f.byID[id] = c
	return nil
}

func (f *fakeCampaigns) FindByID(_ context.Context, tenantID, id int64) (*model.ContactCampaign, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byID[id]
	if !ok || c.TenantID != tenantID {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCampaigns) UpdateCurrentNode(_ context.Context, tenantID, id int64, nodeID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byID[id]
	if !ok {
		return fmt.Errorf("campaign %d not found", id)
	}
	c.CurrentNodeID = nodeID
	return nil
}

func (f *fakeCampaigns) MarkCompleted(_ context.Context, tenantID, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed[id] = true
	return nil
}

func (f *fakeCampaigns) currentNode(id int64) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byID[id].CurrentNodeID
}

// fakeActions keeps the transactional contract: inserts made inside a failed
// InTx callback are discarded.
type fakeActions struct {
	mu       sync.Mutex
	nextID   int64
	actions  []model.ScheduledAction
	statuses map[string]string
}

func newFakeActions() *fakeActions {
	return &fakeActions{nextID: 1, statuses: make(map[string]string)}
}

type fakeActionWriter struct {
	parent  *fakeActions
	pending []model.ScheduledAction
}

func (w *fakeActionWriter) Insert(_ context.Context, a *model.ScheduledAction) error {
	w.parent.mu.Lock()
	for _, existing := range w.parent.actions {
		if existing.JobID == a.JobID {
			w.parent.mu.Unlock()
			// Mirrors ON CONFLICT DO NOTHING.
			return nil
		}
	}
	a.ID = w.parent.nextID
	w.parent.nextID++
	w.parent.mu.Unlock()
	a.Status = model.ActionPending
	w.pending = append(w.pending, *a)
	return nil
}

func (f *fakeActions) InTx(_ context.Context, fn func(w repository.ActionWriter) error) error {
	w := &fakeActionWriter{parent: f}
	if err := fn(w); err != nil {
		return err // rollback: pending inserts dropped
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, w.pending...)
	return nil
}

func (f *fakeActions) MarkStatus(_ context.Context, jobID, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[jobID] = status
	for i := range f.actions {
		if f.actions[i].JobID == jobID {
			f.actions[i].Status = status
		}
	}
	return nil
}

func (f *fakeActions) ListPendingForCampaign(_ context.Context, tenantID, campaignID int64) ([]model.ScheduledAction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pending := []model.ScheduledAction{}
	for _, a := range f.actions {
		if a.TenantID == tenantID && a.CampaignID == campaignID && a.Status == model.ActionPending {
			pending = append(pending, a)
		}
	}
	return pending, nil
}

func (f *fakeActions) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.actions)
}

type fakeContacts struct {
	byID map[int64]*model.Contact
}

func newFakeContacts(contacts ...*model.Contact) *fakeContacts {
	f := &fakeContacts{byID: make(map[int64]*model.Contact)}
	for _, c := range contacts {
		f.byID[c.ID] = c
	}
	return f
}

func (f *fakeContacts) FindByID(_ context.Context, tenantID, id int64) (*model.Contact, error) {
	c, ok := f.byID[id]
	if !ok || c.TenantID != tenantID {
		return nil, nil
	}
	return c, nil
}

type fakeIdentities struct {
	identity *model.SenderIdentity
}

func (f *fakeIdentities) FindVerified(_ context.Context, tenantID int64) (*model.SenderIdentity, error) {
	if f.identity == nil || f.identity.TenantID != tenantID {
		return nil, nil
	}
	return f.identity, nil
}

type fakeSuppressions struct {
	suppressed map[string]bool
}

func newFakeSuppressions(addresses ...string) *fakeSuppressions {
	f := &fakeSuppressions{suppressed: make(map[string]bool)}
	for _, a := range addresses {
		f.suppressed[a] = true
	}
	return f
}

func (f *fakeSuppressions) IsUnsubscribed(_ context.Context, tenantID int64, channel, address string) (bool, error) {
	return f.suppressed[address], nil
}

type delayedJob struct {
	jobID      string
	routingKey string
	payload    any
	delay      time.Duration
}

type publishedJob struct {
	routingKey string
	payload    any
}

// fakeQueue reproduces the publisher contract, including ErrJobExists for
// duplicate delayed job ids.
type fakeQueue struct {
	mu          sync.Mutex
	published   []publishedJob
	delayed     []delayedJob
	jobIDs      map[string]bool
	failDelayed error
	failPublish error
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{jobIDs: make(map[string]bool)}
}

func (q *fakeQueue) Publish(routingKey string, payload any) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.failPublish != nil {
		return q.failPublish
	}
	q.published = append(q.published, publishedJob{routingKey: routingKey, payload: payload})
	return nil
}

func (q *fakeQueue) PublishDelayed(_ context.Context, jobID, routingKey string, payload any, delay time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.jobIDs[jobID] {
		return mq.ErrJobExists
	}
	if q.failDelayed != nil {
		return q.failDelayed
	}
	q.jobIDs[jobID] = true
	q.delayed = append(q.delayed, delayedJob{jobID: jobID, routingKey: routingKey, payload: payload, delay: delay})
	return nil
}

func (q *fakeQueue) delayedCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.delayed)
}

type fakeTransport struct {
	mu      sync.Mutex
	calls   int
	fail    error
	lastCID string
}

func (t *fakeTransport) Send(_ context.Context, from, to, subject, html, correlationID string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls++
	t.lastCID = correlationID
	if t.fail != nil {
		return "", t.fail
	}
	return fmt.Sprintf("prov-%d", t.calls), nil
}

func (t *fakeTransport) callCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

var errQueueDown = errors.New("queue connection refused")
