package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rtrvrtg/contact-form-connect/internal/connector"
	"github.com/rtrvrtg/contact-form-connect/internal/flatten"
	"github.com/rtrvrtg/contact-form-connect/internal/logging"
	"github.com/rtrvrtg/contact-form-connect/internal/sheet"
)

// Options configures a Service. Zero fields take defaults.
type Options struct {
	// Env is handed to every connector the service builds.
	Env connector.Env

	// Limiter bounds concurrent deliveries.
	Limiter *Limiter

	// Separator and SkipKeys control how submissions are flattened.
	Separator string
	SkipKeys  []string
}

// Service submits contact messages and delivers them to connectors.
type Service struct {
	store     Store
	env       connector.Env
	limiter   *Limiter
	separator string
	skipKeys  []string
	now       func() time.Time
}

// NewService creates a Service backed by store.
func NewService(store Store, opts Options) *Service {
	if opts.Limiter == nil {
		opts.Limiter = NewLimiter(DefaultMaxConcurrentDeliveries, DefaultMaxWaitTime)
	}
	if opts.SkipKeys == nil {
		opts.SkipKeys = flatten.DefaultSkipKeys
	}
	return &Service{
		store:     store,
		env:       opts.Env,
		limiter:   opts.Limiter,
		separator: opts.Separator,
		skipKeys:  opts.SkipKeys,
		now:       time.Now,
	}
}

// Store returns the service's store.
func (s *Service) Store() Store { return s.store }

// Limiter returns the delivery limiter.
func (s *Service) Limiter() *Limiter { return s.limiter }

// Flatten converts a decoded payload into the record delivered for form.
// Field ids are renamed to their form labels.
func (s *Service) Flatten(form connector.Form, payload any) sheet.Record {
	return flatten.Flatten(payload, flatten.Options{
		Separator:    s.separator,
		SkipKeys:     s.skipKeys,
		RemapHeaders: form.Labels(),
		ReduceSingle: true,
	})
}

func (s *Service) fieldSeparator() string {
	if s.separator == "" {
		return flatten.DefaultSeparator
	}
	return s.separator
}

// Submit flattens payload into a message and queues one delivery for each
// enabled connector bound to the form. An empty url falls back to the
// submitter's Referer.
func (s *Service) Submit(ctx context.Context, formID string, payload any, url string) (connector.Message, []Delivery, error) {
	form, err := s.store.GetForm(ctx, formID)
	if err != nil {
		return connector.Message{}, nil, fmt.Errorf("get form %s: %w", formID, err)
	}

	record := s.Flatten(form, payload)
	if len(record) == 0 {
		return connector.Message{}, nil, ErrEmptySubmission
	}
	if errs := ValidateRecord(form, record, s.fieldSeparator()); len(errs) > 0 {
		return connector.Message{}, nil, errs
	}

	bindings, err := s.store.ListBindings(ctx, formID)
	if err != nil {
		return connector.Message{}, nil, fmt.Errorf("list bindings of %s: %w", formID, err)
	}

	submitter := SubmitterFrom(ctx)
	if url == "" {
		url = submitter.Referer
	}

	now := s.now().UTC()
	msg := connector.Message{
		ID:        uuid.NewString(),
		FormID:    formID,
		URL:       url,
		Record:    record,
		CreatedAt: now,
	}

	deliveries := make([]Delivery, 0, len(bindings))
	for _, b := range bindings {
		if !b.Enabled {
			continue
		}
		deliveries = append(deliveries, Delivery{
			ID:          uuid.NewString(),
			FormID:      formID,
			ConnectorID: b.ConnectorID,
			Message:     msg,
			Status:      StatusPending,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}

	if len(deliveries) > 0 {
		if err := s.store.EnqueueDeliveries(ctx, deliveries); err != nil {
			return connector.Message{}, nil, fmt.Errorf("enqueue deliveries: %w", err)
		}
	}

	logging.FromContext(ctx).Info("message submitted",
		"form", formID,
		"message_id", msg.ID,
		"fields", len(record),
		"deliveries", len(deliveries),
		"remote_ip", submitter.IP,
		"user_agent", submitter.UserAgent,
	)
	return msg, deliveries, nil
}

// Deliver sends one delivery's message through its connector.
// Failures that retrying cannot fix are wrapped so IsPermanent reports them.
func (s *Service) Deliver(ctx context.Context, d Delivery) error {
	entity, err := s.store.GetConnector(ctx, d.ConnectorID)
	if err != nil {
		return permanentIf(fmt.Errorf("get connector %s: %w", d.ConnectorID, err))
	}
	form, err := s.store.GetForm(ctx, d.FormID)
	if err != nil {
		return permanentIf(fmt.Errorf("get form %s: %w", d.FormID, err))
	}
	binding, err := s.store.GetBinding(ctx, d.FormID, d.ConnectorID)
	if err != nil {
		return permanentIf(fmt.Errorf("get binding: %w", err))
	}

	conn, err := connector.New(entity, binding.Settings, s.env)
	if err != nil {
		return permanentIf(err)
	}
	if err := conn.Send(ctx, form, binding.Settings, d.Message); err != nil {
		return permanentIf(fmt.Errorf("send via %s: %w", entity.ServiceName, err))
	}
	return nil
}

// PermanentError marks a delivery failure that retrying cannot fix.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }

func (e *PermanentError) Unwrap() error { return e.Err }

// IsPermanent reports whether err should fail a delivery without retrying.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

func permanentIf(err error) error {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, connector.ErrUnknownService),
		errors.Is(err, connector.ErrMissingSetting):
		return &PermanentError{Err: err}
	}
	return err
}

// RowWrite is one row a connector would write.
type RowWrite struct {
	Index  int       `json:"index"`
	Range  string    `json:"range"`
	Values sheet.Row `json:"values"`
}

// PreviewResult is the outcome of reconciling a record without writing it.
type PreviewResult struct {
	FieldMap sheet.FieldMap `json:"fieldMap"`
	Rows     sheet.Table    `json:"rows"`
	Updates  []RowWrite     `json:"updates"`
	Inserts  []RowWrite     `json:"inserts"`
}

// Preview reconciles rec against table and reports the writes, addressed as
// ranges of sheetName.
func (s *Service) Preview(sheetName string, table sheet.Table, rec sheet.Record) PreviewResult {
	trace := sheet.ReconcileTrace(table, rec)

	res := PreviewResult{
		FieldMap: trace.FieldMap,
		Rows:     trace.Rows,
		Updates:  make([]RowWrite, 0, len(trace.Changes.Updates)),
		Inserts:  make([]RowWrite, 0, len(trace.Changes.Inserts)),
	}
	for _, i := range trace.Changes.UpdateIndexes() {
		row := trace.Changes.Updates[i]
		res.Updates = append(res.Updates, RowWrite{
			Index:  i,
			Range:  sheet.RowRange(sheetName, i, len(row)),
			Values: row,
		})
	}
	for k, row := range trace.Changes.Inserts {
		i := len(table) + k
		res.Inserts = append(res.Inserts, RowWrite{
			Index:  i,
			Range:  sheet.RowRange(sheetName, i, len(row)),
			Values: row,
		})
	}
	return res
}
