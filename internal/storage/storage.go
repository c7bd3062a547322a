package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bdougie/framematch/internal/metrics"
	"github.com/bdougie/framematch/internal/models"
)

const batchSize = 10 // Number of events to batch write

// EventLogName is the file the event log is written to inside the output directory
const EventLogName = "events.json"

// Storage defines the interface for recording match and sample events
type Storage interface {
	// AddEvent records a single event
	AddEvent(ctx context.Context, event models.Event) error

	// Flush ensures all pending events are saved
	Flush() error
}

// EventLog appends events to a JSON array on disk in batches
type EventLog struct {
	events []models.Event
	mu     sync.Mutex
	path   string
}

// NewEventLog creates an event log writing to outputDir/events.json
func NewEventLog(outputDir string) *EventLog {
	return &EventLog{
		path: filepath.Join(outputDir, EventLogName),
	}
}

// Path returns the file the log is written to
func (s *EventLog) Path() string { return s.path }

// AddEvent adds an event to the batch and flushes if the batch is full
func (s *EventLog) AddEvent(ctx context.Context, event models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)

	// Write to disk when batch is full
	if len(s.events) >= batchSize {
		if err := s.flush(); err != nil {
			return fmt.Errorf("flush event log: %w", err)
		}
	}
	return nil
}

// Flush writes all pending events to disk
func (s *EventLog) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flush()
}

func (s *EventLog) flush() error {
	if len(s.events) == 0 {
		return nil
	}

	var existing []models.Event
	if data, err := os.ReadFile(s.path); err == nil {
		if err := json.Unmarshal(data, &existing); err != nil {
			return fmt.Errorf("failed to unmarshal existing events: %w", err)
		}
	}

	all := append(existing, s.events...)

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for events: %w", err)
	}

	file, err := os.Create(s.path)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := json.NewEncoder(file).Encode(all); err != nil {
		return err
	}

	s.events = nil // Clear the batch
	return nil
}

// Named pairs an event consumer with the label used in logs and metrics
type Named struct {
	Name    string
	Storage Storage
}

// Multi fans events out to several consumers. A failing consumer does not
// stop the others.
type Multi struct {
	consumers []Named
	metrics   *metrics.Metrics
}

// NewMulti combines consumers; m may be nil
func NewMulti(m *metrics.Metrics, consumers ...Named) *Multi {
	return &Multi{consumers: consumers, metrics: m}
}

// AddEvent delivers the event to every consumer and joins their errors
func (mu *Multi) AddEvent(ctx context.Context, event models.Event) error {
	var errs []error
	for _, c := range mu.consumers {
		if err := c.Storage.AddEvent(ctx, event); err != nil {
			mu.fail(c.Name)
			errs = append(errs, fmt.Errorf("%s: %w", c.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Flush flushes every consumer and joins their errors
func (mu *Multi) Flush() error {
	var errs []error
	for _, c := range mu.consumers {
		if err := c.Storage.Flush(); err != nil {
			mu.fail(c.Name)
			errs = append(errs, fmt.Errorf("%s: %w", c.Name, err))
		}
	}
	return errors.Join(errs...)
}

func (mu *Multi) fail(name string) {
	if mu.metrics != nil {
		mu.metrics.ConsumerFailures.WithLabelValues(name).Inc()
	}
}
