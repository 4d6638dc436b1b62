// Package core provides the delivery logic of contact-form-connect.
//
// This package holds all domain logic independent of any transport layer.
// It can be used by web handlers, the background worker, or tests without
// modification.
//
// # Architecture
//
//   - Store: persistence of connectors, forms, bindings and the delivery
//     queue. internal/store provides Postgres and in-memory versions.
//   - Service: the entry point for submitting messages, delivering them and
//     previewing spreadsheet reconciliation.
//   - Limiter: bounds how many deliveries run at once.
//
// # Submission
//
// [Service.Submit] flattens a decoded payload (labels of the form's fields
// become column names), stores one [Delivery] per enabled binding and
// returns immediately. Required and typed form fields are checked first by
// [ValidateRecord]:
//
//	msg, deliveries, err := svc.Submit(ctx, "feedback", payload, pageURL)
//
// # Delivery
//
// [Service.StartWorker] polls the queue, sends each delivery through its
// connector under the [Limiter] and records the outcome. A failing delivery
// is retried on later polls until [WorkerConfig.MaxAttempts]; missing
// connectors, forms, bindings or settings fail it at once.
// [Service.StartRetention] deletes finished deliveries past their retention.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - DB001-DB006: Database errors
//   - VAL001-VAL006: Validation errors
//   - CON001-CON004: Connector and external service errors
//   - DLV001-DLV002: Delivery queue errors
//   - REQ001-REQ003: Request errors (not found, cancelled, timeout)
//   - RATE001: Rate limiting
package core
