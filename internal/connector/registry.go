package connector

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rtrvrtg/contact-form-connect/internal/transport"
)

// ErrUnknownService is returned by New when no factory is registered for the
// entity's service name.
var ErrUnknownService = errors.New("unknown service")

// Env carries process-wide dependencies into connectors.
type Env struct {
	// Observer receives diagnostic events. Nil discards them.
	Observer Observer

	// HTTP is the base configuration of outbound clients. Connectors set
	// BaseURL and Auth from their entity.
	HTTP transport.Config

	// SheetsBaseURL is used when a google_spreadsheet entity has no endpoint.
	SheetsBaseURL string
}

// Emitter returns an emitter for service bound to the env's observer.
func (e Env) Emitter(service string) Emitter {
	return Emitter{Observer: e.Observer, Service: service}
}

// Factory builds an uninitialised connector for an entity.
type Factory func(entity Entity, env Env) Connector

var (
	registry   = make(map[string]Factory)
	registryMu sync.RWMutex
)

// Register adds a service factory.
// Panics if the service name is already registered.
func Register(service string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[service]; exists {
		panic(fmt.Sprintf("connector service already registered: %s", service))
	}
	registry[service] = f
}

// Lookup returns the factory for a service.
func Lookup(service string) (Factory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	f, ok := registry[service]
	return f, ok
}

// Services returns the registered service names, sorted.
func Services() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New builds the connector for entity and initialises it with settings.
func New(entity Entity, settings Settings, env Env) (Connector, error) {
	f, ok := Lookup(entity.ServiceName)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownService, entity.ServiceName)
	}
	if env.Observer == nil {
		env.Observer = NopObserver{}
	}

	c := f(entity, env)
	if err := c.Init(settings); err != nil {
		return nil, fmt.Errorf("init %s connector: %w", entity.ServiceName, err)
	}
	return c, nil
}

// SettingsForm returns the settings form of a service without an entity.
func SettingsForm(service string, current Settings) ([]SettingField, error) {
	f, ok := Lookup(service)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownService, service)
	}
	return f(Entity{ServiceName: service}, Env{Observer: NopObserver{}}).SettingsForm(current), nil
}

// unregister removes a service. Used by tests.
func unregister(service string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(registry, service)
}
