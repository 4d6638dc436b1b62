package core

import (
	"context"
	"errors"
	"time"

	"github.com/rtrvrtg/contact-form-connect/internal/connector"
)

// ErrNotFound is returned by a Store when the requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrEmptySubmission is returned when a payload flattens to no fields.
var ErrEmptySubmission = errors.New("empty submission")

// ErrNotRetryable is returned when retrying a delivery that has not failed.
var ErrNotRetryable = errors.New("delivery cannot be retried")

// DeliveryStatus is the state of one queued delivery.
type DeliveryStatus string

const (
	StatusPending   DeliveryStatus = "pending"
	StatusRunning   DeliveryStatus = "running"
	StatusDelivered DeliveryStatus = "delivered"
	StatusFailed    DeliveryStatus = "failed"
)

// Valid reports whether s is a known status.
func (s DeliveryStatus) Valid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusDelivered, StatusFailed:
		return true
	}
	return false
}

// Binding attaches a connector to a form with per-form settings.
type Binding struct {
	FormID      string             `json:"formId"`
	ConnectorID string             `json:"connectorId"`
	Settings    connector.Settings `json:"settings"`
	Enabled     bool               `json:"enabled"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}

// Delivery is one message queued for one connector.
type Delivery struct {
	ID          string            `json:"id"`
	FormID      string            `json:"formId"`
	ConnectorID string            `json:"connectorId"`
	Message     connector.Message `json:"message"`
	Status      DeliveryStatus    `json:"status"`
	Attempts    int               `json:"attempts"`
	LastError   string            `json:"lastError,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
	DeliveredAt *time.Time        `json:"deliveredAt,omitempty"`
}

// Store persists connectors, forms, bindings and the delivery queue.
// Lookups of missing rows return an error wrapping ErrNotFound.
type Store interface {
	ListConnectors(ctx context.Context) ([]connector.Entity, error)
	GetConnector(ctx context.Context, id string) (connector.Entity, error)
	// SaveConnector inserts or updates e. An empty ID is assigned.
	SaveConnector(ctx context.Context, e connector.Entity) (connector.Entity, error)
	DeleteConnector(ctx context.Context, id string) error

	GetForm(ctx context.Context, id string) (connector.Form, error)
	SaveForm(ctx context.Context, f connector.Form) error

	ListBindings(ctx context.Context, formID string) ([]Binding, error)
	GetBinding(ctx context.Context, formID, connectorID string) (Binding, error)
	SaveBinding(ctx context.Context, b Binding) error
	DeleteBinding(ctx context.Context, formID, connectorID string) error

	EnqueueDeliveries(ctx context.Context, ds []Delivery) error
	// ClaimDeliveries marks up to limit pending deliveries running, oldest
	// first, and returns them. Concurrent claimers never share a delivery.
	ClaimDeliveries(ctx context.Context, limit int) ([]Delivery, error)
	// FinishDelivery stores the status, attempts, last error and delivery
	// time of d.
	FinishDelivery(ctx context.Context, d Delivery) error
	// RequeueRunning returns deliveries left running by a stopped worker to
	// pending and reports how many there were.
	RequeueRunning(ctx context.Context) (int, error)
	ListDeliveries(ctx context.Context, status DeliveryStatus, limit int) ([]Delivery, error)
	GetDelivery(ctx context.Context, id string) (Delivery, error)
	// PurgeDeliveries deletes delivered and failed deliveries last updated
	// before cutoff and reports how many it deleted.
	PurgeDeliveries(ctx context.Context, cutoff time.Time) (int, error)
}
