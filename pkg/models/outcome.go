package models

import "time"

type OutcomeKind string

const (
	OutcomePersisted        OutcomeKind = "persisted"
	OutcomeDecodeFailed     OutcomeKind = "decode_failed"
	OutcomeValidationFailed OutcomeKind = "validation_failed"
	OutcomeSinkFailed       OutcomeKind = "sink_failed"
	// OutcomeNotProcessed marks a message whose pipeline never started,
	// typically because the batch deadline expired first.
	OutcomeNotProcessed OutcomeKind = "not_processed"
)

type Outcome struct {
	Kind      OutcomeKind `json:"kind"`
	Reason    string      `json:"reason,omitempty"`
	Stage     string      `json:"stage,omitempty"`
	RecordKey string      `json:"record_key,omitempty"`
}

func (o Outcome) Persisted() bool {
	return o.Kind == OutcomePersisted
}

func Persisted(key string) Outcome {
	return Outcome{Kind: OutcomePersisted, RecordKey: key}
}

func Failed(kind OutcomeKind, stage, reason string) Outcome {
	return Outcome{Kind: kind, Stage: stage, Reason: reason}
}

type ReportEntry struct {
	Message TransportMessage `json:"message"`
	Outcome Outcome          `json:"outcome"`
}

// BatchReport holds one entry per input message, in input order.
type BatchReport struct {
	BatchID    string        `json:"batch_id"`
	Entries    []ReportEntry `json:"entries"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
}

type BatchCounts struct {
	Persisted    int
	Failed       int
	NotProcessed int
}

func (r *BatchReport) Counts() BatchCounts {
	var c BatchCounts
	for _, e := range r.Entries {
		switch e.Outcome.Kind {
		case OutcomePersisted:
			c.Persisted++
		case OutcomeNotProcessed:
			c.NotProcessed++
		default:
			c.Failed++
		}
	}
	return c
}

// Split separates persisted entries from the ones that must stay on the
// queue.
func (r *BatchReport) Split() (persisted, remaining []ReportEntry) {
	for _, e := range r.Entries {
		if e.Outcome.Persisted() {
			persisted = append(persisted, e)
		} else {
			remaining = append(remaining, e)
		}
	}
	return persisted, remaining
}
