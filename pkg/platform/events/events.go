// Package events models the append-only contract event log.
//
// Components emit events while an invocation runs; the invocation runner
// hands them to a Recorder inside the storage transaction (when one is
// configured) and to a Sink only after the transaction committed. Events of
// an aborted invocation are never delivered.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"desci/pkg/domain"
)

// Topic tags used by the ledger components.
const (
	TopicPaymentMade     = "PAYMENT_MADE"
	TopicStudyRegistered = "STUDY_REGISTERED"
)

// Event is one entry in the contract event log. Topics is the topic tuple
// (tag first); Data is the JSON-encoded payload tuple.
type Event struct {
	ID         uuid.UUID       `json:"id"`
	Contract   string          `json:"contract"`
	Topics     []string        `json:"topics"`
	Data       json.RawMessage `json:"data"`
	Invocation uuid.UUID       `json:"invocation_id"`
	Operation  string          `json:"operation"`
	Sequence   int             `json:"sequence"`
	EmittedAt  time.Time       `json:"emitted_at"`
}

// Tag returns the first topic element.
func (e Event) Tag() string {
	if len(e.Topics) == 0 {
		return ""
	}
	return e.Topics[0]
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v any) error {
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Tag(), err)
	}
	return nil
}

// PaymentMade is the payload of (PAYMENT_MADE, report_id).
type PaymentMade struct {
	Contributor domain.AccountID `json:"contributor"`
	Amount      domain.Amount    `json:"amount"`
}

// StudyRegistered is the payload of (STUDY_REGISTERED, study_hash).
type StudyRegistered struct {
	Owner           domain.AccountID `json:"owner"`
	Timestamp       uint64           `json:"timestamp"`
	LabIdentifier   domain.Tag       `json:"lab_identifier"`
	AttestationHash domain.Hash      `json:"attestation_hash"`
}

// Sink receives events after the invocation that produced them committed.
type Sink interface {
	Publish(ctx context.Context, events []Event) error
}

// Recorder persists events inside the invocation's storage transaction.
type Recorder interface {
	Record(ctx context.Context, events []Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, events []Event) error

func (f SinkFunc) Publish(ctx context.Context, events []Event) error {
	return f(ctx, events)
}

// MultiSink publishes to every sink and joins their errors.
type MultiSink []Sink

func (m MultiSink) Publish(ctx context.Context, events []Event) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Publish(ctx, events); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogSink writes each event as a structured log line.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a sink backed by logger.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Publish(ctx context.Context, events []Event) error {
	for _, e := range events {
		s.logger.InfoContext(ctx, "contract event",
			"event_id", e.ID,
			"contract", e.Contract,
			"topics", e.Topics,
			"data", string(e.Data),
			"operation", e.Operation,
			"sequence", e.Sequence,
		)
	}
	return nil
}
