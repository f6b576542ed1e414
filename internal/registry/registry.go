package registry

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/eshaffer321/cc-transaction-logger/internal/adapters/extractors"
	"github.com/eshaffer321/cc-transaction-logger/internal/adapters/extractors/foodpanda"
	"github.com/eshaffer321/cc-transaction-logger/internal/adapters/extractors/grab"
	"github.com/eshaffer321/cc-transaction-logger/internal/adapters/extractors/greengsm"
	"github.com/eshaffer321/cc-transaction-logger/internal/adapters/extractors/metrobank"
)

// Registry maps merchant keys to their extractors
type Registry struct {
	extractors map[string]extractors.MerchantExtractor
	mu         sync.RWMutex
	logger     *slog.Logger
}

// New creates an empty registry
func New(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		extractors: make(map[string]extractors.MerchantExtractor),
		logger:     logger,
	}
}

// NewDefault creates a registry holding every supported merchant
func NewDefault(logger *slog.Logger) *Registry {
	r, err := NewWithSenders(logger, nil)
	if err != nil {
		// Built-in extractors have fixed, distinct keys and senders.
		panic(err)
	}
	return r
}

// NewWithSenders creates a registry holding every supported merchant, with
// sender addresses overridden per merchant key.
func NewWithSenders(logger *slog.Logger, senders map[string]string) (*Registry, error) {
	sender := func(name, fallback string) string {
		if s := strings.TrimSpace(senders[name]); s != "" {
			return s
		}
		return fallback
	}

	r := New(logger)
	for _, e := range []extractors.MerchantExtractor{
		grab.NewWithSender(sender(grab.Name, grab.DefaultSender), logger),
		foodpanda.NewWithSender(sender(foodpanda.Name, foodpanda.DefaultSender), logger),
		metrobank.NewWithSender(sender(metrobank.Name, metrobank.DefaultSender), logger),
		greengsm.NewWithSender(sender(greengsm.Name, greengsm.DefaultSender), logger),
	} {
		if err := r.Register(e); err != nil {
			return nil, err
		}
	}

	for name := range senders {
		if _, err := r.Get(name); err != nil {
			return nil, fmt.Errorf("sender override: %w", err)
		}
	}
	return r, nil
}

// Register adds an extractor under its Name. Keys and sender addresses must
// both be unique.
func (r *Registry) Register(e extractors.MerchantExtractor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := e.Name()
	if name == "" {
		return fmt.Errorf("extractor has no name")
	}
	if _, exists := r.extractors[name]; exists {
		return fmt.Errorf("merchant %s already registered", name)
	}

	sender := e.MerchantEmail()
	if sender == "" {
		return fmt.Errorf("merchant %s has no sender address", name)
	}
	for other, existing := range r.extractors {
		if strings.EqualFold(existing.MerchantEmail(), sender) {
			return fmt.Errorf("sender %s already registered for merchant %s", sender, other)
		}
	}

	r.extractors[name] = e
	r.logger.Debug("registered merchant",
		slog.String("merchant", name),
		slog.String("sender", sender),
	)

	return nil
}

// Get returns the extractor for a merchant key. Keys are case-sensitive.
func (r *Registry) Get(name string) (extractors.MerchantExtractor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, exists := r.extractors[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", extractors.ErrUnknownMerchant, name)
	}

	return e, nil
}

// BySender returns the extractor whose sender address matches, ignoring case.
func (r *Registry) BySender(sender string) (extractors.MerchantExtractor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.extractors {
		if strings.EqualFold(e.MerchantEmail(), sender) {
			return e, true
		}
	}
	return nil, false
}

// List returns all registered merchant keys in sorted order
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.extractors))
	for name := range r.extractors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetAll returns all registered extractors ordered by key
func (r *Registry) GetAll() []extractors.MerchantExtractor {
	names := r.List()

	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]extractors.MerchantExtractor, 0, len(names))
	for _, name := range names {
		all = append(all, r.extractors[name])
	}
	return all
}
