package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rtrvrtg/contact-form-connect/internal/connector"
	"github.com/rtrvrtg/contact-form-connect/internal/core"
)

// Memory is an in-process core.Store. It backs tests and runs without a
// database when none is configured; its contents are lost on exit.
type Memory struct {
	mu         sync.Mutex
	connectors map[string]connector.Entity
	forms      map[string]connector.Form
	bindings   map[bindingKey]core.Binding
	deliveries map[string]core.Delivery
	order      []string // delivery ids in enqueue order
	now        func() time.Time
}

type bindingKey struct {
	formID      string
	connectorID string
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{
		connectors: make(map[string]connector.Entity),
		forms:      make(map[string]connector.Form),
		bindings:   make(map[bindingKey]core.Binding),
		deliveries: make(map[string]core.Delivery),
		now:        time.Now,
	}
}

// Ping implements Pinger.
func (m *Memory) Ping(ctx context.Context) error { return nil }

func (m *Memory) ListConnectors(ctx context.Context) ([]connector.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]connector.Entity, 0, len(m.connectors))
	for _, e := range m.connectors {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Label != out[j].Label {
			return out[i].Label < out[j].Label
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) GetConnector(ctx context.Context, id string) (connector.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.connectors[id]
	if !ok {
		return connector.Entity{}, fmt.Errorf("connector %s: %w", id, core.ErrNotFound)
	}
	return e, nil
}

func (m *Memory) SaveConnector(ctx context.Context, e connector.Entity) (connector.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	m.connectors[e.ID] = e
	return e, nil
}

func (m *Memory) DeleteConnector(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.connectors[id]; !ok {
		return fmt.Errorf("connector %s: %w", id, core.ErrNotFound)
	}
	delete(m.connectors, id)
	for k := range m.bindings {
		if k.connectorID == id {
			delete(m.bindings, k)
		}
	}
	return nil
}

func (m *Memory) GetForm(ctx context.Context, id string) (connector.Form, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.forms[id]
	if !ok {
		return connector.Form{}, fmt.Errorf("form %s: %w", id, core.ErrNotFound)
	}
	return f, nil
}

func (m *Memory) SaveForm(ctx context.Context, f connector.Form) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.forms[f.ID] = f
	return nil
}

func (m *Memory) ListBindings(ctx context.Context, formID string) ([]core.Binding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []core.Binding
	for k, b := range m.bindings {
		if k.formID == formID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ConnectorID < out[j].ConnectorID })
	return out, nil
}

func (m *Memory) GetBinding(ctx context.Context, formID, connectorID string) (core.Binding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bindings[bindingKey{formID, connectorID}]
	if !ok {
		return core.Binding{}, fmt.Errorf("binding %s/%s: %w", formID, connectorID, core.ErrNotFound)
	}
	return b, nil
}

func (m *Memory) SaveBinding(ctx context.Context, b core.Binding) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.forms[b.FormID]; !ok {
		return fmt.Errorf("form %s: %w", b.FormID, core.ErrNotFound)
	}
	if _, ok := m.connectors[b.ConnectorID]; !ok {
		return fmt.Errorf("connector %s: %w", b.ConnectorID, core.ErrNotFound)
	}
	b.UpdatedAt = m.now().UTC()
	m.bindings[bindingKey{b.FormID, b.ConnectorID}] = b
	return nil
}

func (m *Memory) DeleteBinding(ctx context.Context, formID, connectorID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := bindingKey{formID, connectorID}
	if _, ok := m.bindings[k]; !ok {
		return fmt.Errorf("binding %s/%s: %w", formID, connectorID, core.ErrNotFound)
	}
	delete(m.bindings, k)
	return nil
}

func (m *Memory) EnqueueDeliveries(ctx context.Context, ds []core.Delivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, d := range ds {
		if _, exists := m.deliveries[d.ID]; exists {
			return fmt.Errorf("delivery %s: duplicate key", d.ID)
		}
	}
	for _, d := range ds {
		m.deliveries[d.ID] = d
		m.order = append(m.order, d.ID)
	}
	return nil
}

func (m *Memory) ClaimDeliveries(ctx context.Context, limit int) ([]core.Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []core.Delivery
	for _, id := range m.order {
		if len(out) >= limit {
			break
		}
		d := m.deliveries[id]
		if d.Status != core.StatusPending {
			continue
		}
		d.Status = core.StatusRunning
		d.UpdatedAt = m.now().UTC()
		m.deliveries[id] = d
		out = append(out, d)
	}
	return out, nil
}

func (m *Memory) FinishDelivery(ctx context.Context, d core.Delivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.deliveries[d.ID]
	if !ok {
		return fmt.Errorf("delivery %s: %w", d.ID, core.ErrNotFound)
	}
	cur.Status = d.Status
	cur.Attempts = d.Attempts
	cur.LastError = d.LastError
	cur.DeliveredAt = d.DeliveredAt
	cur.UpdatedAt = m.now().UTC()
	m.deliveries[d.ID] = cur
	return nil
}

func (m *Memory) RequeueRunning(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for id, d := range m.deliveries {
		if d.Status == core.StatusRunning {
			d.Status = core.StatusPending
			m.deliveries[id] = d
			n++
		}
	}
	return n, nil
}

// ListDeliveries returns the newest deliveries first. An empty status
// matches every delivery.
func (m *Memory) ListDeliveries(ctx context.Context, status core.DeliveryStatus, limit int) ([]core.Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []core.Delivery
	for i := len(m.order) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		d := m.deliveries[m.order[i]]
		if status == "" || d.Status == status {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *Memory) GetDelivery(ctx context.Context, id string) (core.Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.deliveries[id]
	if !ok {
		return core.Delivery{}, fmt.Errorf("delivery %s: %w", id, core.ErrNotFound)
	}
	return d, nil
}

func (m *Memory) PurgeDeliveries(ctx context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.order[:0]
	n := 0
	for _, id := range m.order {
		d := m.deliveries[id]
		finished := d.Status == core.StatusDelivered || d.Status == core.StatusFailed
		if finished && d.UpdatedAt.Before(cutoff) {
			delete(m.deliveries, id)
			n++
			continue
		}
		kept = append(kept, id)
	}
	m.order = kept
	return n, nil
}
