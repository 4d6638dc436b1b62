package store

import (
	"context"
	"errors"
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rtrvrtg/contact-form-connect/internal/connector"
	"github.com/rtrvrtg/contact-form-connect/internal/core"
	"github.com/rtrvrtg/contact-form-connect/internal/sheet"
)

// testDatabaseEnv names a scratch database for the Postgres store tests.
// Its tables are truncated.
const testDatabaseEnv = "CFC_TEST_DATABASE_URL"

type storeFactory func(t *testing.T) core.Store

func factories() map[string]storeFactory {
	return map[string]storeFactory{
		"memory":   func(t *testing.T) core.Store { return NewMemory() },
		"postgres": newTestPostgres,
	}
}

func newTestPostgres(t *testing.T) core.Store {
	t.Helper()
	url := os.Getenv(testDatabaseEnv)
	if url == "" {
		t.Skipf("%s not set", testDatabaseEnv)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		t.Fatalf("pgxpool.New() error = %v", err)
	}
	t.Cleanup(pool.Close)

	if err := EnsureSchema(ctx, pool); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	if _, err := pool.Exec(ctx, `TRUNCATE deliveries, form_connectors, forms, connectors`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return NewPostgres(pool)
}

func forEachStore(t *testing.T, fn func(t *testing.T, s core.Store)) {
	for name, factory := range factories() {
		t.Run(name, func(t *testing.T) {
			fn(t, factory(t))
		})
	}
}

func seed(t *testing.T, s core.Store) (connector.Form, connector.Entity) {
	t.Helper()
	ctx := context.Background()

	form := connector.Form{
		ID:     "contact",
		Label:  "Contact",
		Fields: []connector.FormField{{Name: "email", Label: "Email"}},
	}
	if err := s.SaveForm(ctx, form); err != nil {
		t.Fatalf("SaveForm() error = %v", err)
	}
	entity, err := s.SaveConnector(ctx, connector.Entity{Label: "Sheet", ServiceName: "google_spreadsheet", Password: "token"})
	if err != nil {
		t.Fatalf("SaveConnector() error = %v", err)
	}
	return form, entity
}

func TestStore_Connectors(t *testing.T) {
	forEachStore(t, func(t *testing.T, s core.Store) {
		ctx := context.Background()
		_, entity := seed(t, s)

		if _, err := uuid.Parse(entity.ID); err != nil {
			t.Errorf("assigned id %q is not a uuid", entity.ID)
		}

		got, err := s.GetConnector(ctx, entity.ID)
		if err != nil {
			t.Fatalf("GetConnector() error = %v", err)
		}
		if got != entity {
			t.Errorf("GetConnector() = %+v, want %+v", got, entity)
		}

		entity.Label = "Renamed"
		if _, err := s.SaveConnector(ctx, entity); err != nil {
			t.Fatalf("SaveConnector(update) error = %v", err)
		}
		list, err := s.ListConnectors(ctx)
		if err != nil {
			t.Fatalf("ListConnectors() error = %v", err)
		}
		if len(list) != 1 || list[0].Label != "Renamed" {
			t.Errorf("ListConnectors() = %+v", list)
		}

		if err := s.DeleteConnector(ctx, entity.ID); err != nil {
			t.Fatalf("DeleteConnector() error = %v", err)
		}
		if _, err := s.GetConnector(ctx, entity.ID); !errors.Is(err, core.ErrNotFound) {
			t.Errorf("GetConnector(deleted) error = %v, want ErrNotFound", err)
		}
		if err := s.DeleteConnector(ctx, entity.ID); !errors.Is(err, core.ErrNotFound) {
			t.Errorf("DeleteConnector(deleted) error = %v, want ErrNotFound", err)
		}
	})
}

func TestStore_Forms(t *testing.T) {
	forEachStore(t, func(t *testing.T, s core.Store) {
		ctx := context.Background()
		form, _ := seed(t, s)

		got, err := s.GetForm(ctx, form.ID)
		if err != nil {
			t.Fatalf("GetForm() error = %v", err)
		}
		if !reflect.DeepEqual(got, form) {
			t.Errorf("GetForm() = %+v, want %+v", got, form)
		}
		if _, err := s.GetForm(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
			t.Errorf("GetForm(missing) error = %v, want ErrNotFound", err)
		}
	})
}

func TestStore_Bindings(t *testing.T) {
	forEachStore(t, func(t *testing.T, s core.Store) {
		ctx := context.Background()
		form, entity := seed(t, s)

		b := core.Binding{
			FormID:      form.ID,
			ConnectorID: entity.ID,
			Settings:    connector.Settings{"doc_id": "doc", "sheet_id": "Responses"},
			Enabled:     true,
		}
		if err := s.SaveBinding(ctx, b); err != nil {
			t.Fatalf("SaveBinding() error = %v", err)
		}

		got, err := s.GetBinding(ctx, form.ID, entity.ID)
		if err != nil {
			t.Fatalf("GetBinding() error = %v", err)
		}
		if !reflect.DeepEqual(got.Settings, b.Settings) || !got.Enabled {
			t.Errorf("GetBinding() = %+v, want settings %v enabled", got, b.Settings)
		}

		list, err := s.ListBindings(ctx, form.ID)
		if err != nil {
			t.Fatalf("ListBindings() error = %v", err)
		}
		if len(list) != 1 {
			t.Errorf("ListBindings() returned %d bindings, want 1", len(list))
		}

		// Deleting the connector drops its bindings.
		if err := s.DeleteConnector(ctx, entity.ID); err != nil {
			t.Fatalf("DeleteConnector() error = %v", err)
		}
		if _, err := s.GetBinding(ctx, form.ID, entity.ID); !errors.Is(err, core.ErrNotFound) {
			t.Errorf("GetBinding() after connector delete error = %v, want ErrNotFound", err)
		}
		if err := s.DeleteBinding(ctx, form.ID, entity.ID); !errors.Is(err, core.ErrNotFound) {
			t.Errorf("DeleteBinding(missing) error = %v, want ErrNotFound", err)
		}
	})
}

func newDelivery(formID, connectorID string, created time.Time) core.Delivery {
	return core.Delivery{
		ID:          uuid.NewString(),
		FormID:      formID,
		ConnectorID: connectorID,
		Message: connector.Message{
			ID:        uuid.NewString(),
			FormID:    formID,
			Record:    sheet.NewRecord(sheet.Field{Name: "Email", Value: "ada@example.com"}),
			CreatedAt: created,
		},
		Status:    core.StatusPending,
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func TestStore_DeliveryQueue(t *testing.T) {
	forEachStore(t, func(t *testing.T, s core.Store) {
		ctx := context.Background()
		form, entity := seed(t, s)

		base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
		var ds []core.Delivery
		for i := 0; i < 3; i++ {
			ds = append(ds, newDelivery(form.ID, entity.ID, base.Add(time.Duration(i)*time.Second)))
		}
		if err := s.EnqueueDeliveries(ctx, ds); err != nil {
			t.Fatalf("EnqueueDeliveries() error = %v", err)
		}

		claimed, err := s.ClaimDeliveries(ctx, 2)
		if err != nil {
			t.Fatalf("ClaimDeliveries() error = %v", err)
		}
		if len(claimed) != 2 || claimed[0].ID != ds[0].ID || claimed[1].ID != ds[1].ID {
			t.Fatalf("ClaimDeliveries() = %v, want the two oldest", ids(claimed))
		}
		for _, d := range claimed {
			if d.Status != core.StatusRunning {
				t.Errorf("claimed %s status = %s, want running", d.ID, d.Status)
			}
		}
		if !reflect.DeepEqual(claimed[0].Message.Record, ds[0].Message.Record) {
			t.Errorf("claimed record = %v, want %v", claimed[0].Message.Record, ds[0].Message.Record)
		}

		again, err := s.ClaimDeliveries(ctx, 10)
		if err != nil {
			t.Fatalf("ClaimDeliveries() error = %v", err)
		}
		if len(again) != 1 || again[0].ID != ds[2].ID {
			t.Errorf("second claim = %v, want [%s]", ids(again), ds[2].ID)
		}

		done := claimed[0]
		done.Status = core.StatusDelivered
		done.Attempts = 1
		at := base.Add(time.Minute)
		done.DeliveredAt = &at
		if err := s.FinishDelivery(ctx, done); err != nil {
			t.Fatalf("FinishDelivery() error = %v", err)
		}

		failed := claimed[1]
		failed.Status = core.StatusFailed
		failed.Attempts = 5
		failed.LastError = "http 404"
		if err := s.FinishDelivery(ctx, failed); err != nil {
			t.Fatalf("FinishDelivery() error = %v", err)
		}

		n, err := s.RequeueRunning(ctx)
		if err != nil {
			t.Fatalf("RequeueRunning() error = %v", err)
		}
		if n != 1 {
			t.Errorf("RequeueRunning() = %d, want 1", n)
		}

		got, err := s.GetDelivery(ctx, failed.ID)
		if err != nil {
			t.Fatalf("GetDelivery() error = %v", err)
		}
		if got.Status != core.StatusFailed || got.Attempts != 5 || got.LastError != "http 404" {
			t.Errorf("GetDelivery() = %+v", got)
		}
		got, err = s.GetDelivery(ctx, done.ID)
		if err != nil {
			t.Fatalf("GetDelivery() error = %v", err)
		}
		if got.DeliveredAt == nil || !got.DeliveredAt.Equal(at) {
			t.Errorf("DeliveredAt = %v, want %v", got.DeliveredAt, at)
		}

		tests := []struct {
			status core.DeliveryStatus
			limit  int
			want   []string
		}{
			{"", 0, []string{ds[2].ID, ds[1].ID, ds[0].ID}},
			{"", 2, []string{ds[2].ID, ds[1].ID}},
			{core.StatusPending, 0, []string{ds[2].ID}},
			{core.StatusDelivered, 0, []string{ds[0].ID}},
			{core.StatusRunning, 0, nil},
		}
		for _, tt := range tests {
			list, err := s.ListDeliveries(ctx, tt.status, tt.limit)
			if err != nil {
				t.Fatalf("ListDeliveries(%q, %d) error = %v", tt.status, tt.limit, err)
			}
			if got := ids(list); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ListDeliveries(%q, %d) = %v, want %v", tt.status, tt.limit, got, tt.want)
			}
		}

		if _, err := s.GetDelivery(ctx, uuid.NewString()); !errors.Is(err, core.ErrNotFound) {
			t.Errorf("GetDelivery(missing) error = %v, want ErrNotFound", err)
		}
	})
}

func ids(ds []core.Delivery) []string {
	var out []string
	for _, d := range ds {
		out = append(out, d.ID)
	}
	return out
}

func TestStore_PurgeDeliveries(t *testing.T) {
	forEachStore(t, func(t *testing.T, s core.Store) {
		ctx := context.Background()
		form, entity := seed(t, s)

		base := time.Now().UTC().Add(-time.Hour)
		var ds []core.Delivery
		for i := 0; i < 3; i++ {
			ds = append(ds, newDelivery(form.ID, entity.ID, base.Add(time.Duration(i)*time.Second)))
		}
		if err := s.EnqueueDeliveries(ctx, ds); err != nil {
			t.Fatalf("EnqueueDeliveries() error = %v", err)
		}
		claimed, err := s.ClaimDeliveries(ctx, 2)
		if err != nil {
			t.Fatalf("ClaimDeliveries() error = %v", err)
		}
		claimed[0].Status = core.StatusDelivered
		claimed[1].Status = core.StatusFailed
		for _, d := range claimed {
			if err := s.FinishDelivery(ctx, d); err != nil {
				t.Fatalf("FinishDelivery() error = %v", err)
			}
		}

		n, err := s.PurgeDeliveries(ctx, base)
		if err != nil {
			t.Fatalf("PurgeDeliveries(past) error = %v", err)
		}
		if n != 0 {
			t.Errorf("PurgeDeliveries(past) = %d, want 0", n)
		}

		n, err = s.PurgeDeliveries(ctx, time.Now().UTC().Add(time.Hour))
		if err != nil {
			t.Fatalf("PurgeDeliveries(future) error = %v", err)
		}
		if n != 2 {
			t.Errorf("PurgeDeliveries(future) = %d, want 2", n)
		}

		left, err := s.ListDeliveries(ctx, "", 0)
		if err != nil {
			t.Fatalf("ListDeliveries() error = %v", err)
		}
		if got := ids(left); !reflect.DeepEqual(got, []string{ds[2].ID}) {
			t.Errorf("remaining = %v, want only the pending delivery", got)
		}
	})
}
