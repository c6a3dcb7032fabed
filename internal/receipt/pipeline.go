package receipt

import (
	"context"
	"errors"
	"fmt"

	"github.com/zombor/receipt-pipeline/internal/logger"
	"github.com/zombor/receipt-pipeline/internal/scanning"
)

// State is the progress of one pipeline invocation
type State string

const (
	StateReceived State = "received"
	StateAnalyzed State = "analyzed"
	StateStored   State = "stored"
	StateNotified State = "notified"
	StateDone     State = "done"
	StateFailed   State = "failed"
)

// ObjectEvent identifies a newly stored object
type ObjectEvent struct {
	Bucket string
	Key    string
}

// Result reports where an invocation ended up. Receipt is set once the
// document has been analyzed.
type Result struct {
	State   State
	Receipt *Receipt
}

// Inserter persists a receipt
type Inserter interface {
	Insert(ctx context.Context, receipt *Receipt) error
}

// ReceiptNotifier announces a stored receipt. It must not fail.
type ReceiptNotifier interface {
	Notify(ctx context.Context, receipt *Receipt)
}

// Pipeline drives one stored object through analysis, storage and notification
type Pipeline struct {
	analyzer   scanning.Analyzer
	normalizer *Normalizer
	store      Inserter
	notifier   ReceiptNotifier
}

// NewPipeline creates a Pipeline from already constructed collaborators
func NewPipeline(analyzer scanning.Analyzer, normalizer *Normalizer, store Inserter, notifier ReceiptNotifier) *Pipeline {
	return &Pipeline{
		analyzer:   analyzer,
		normalizer: normalizer,
		store:      store,
		notifier:   notifier,
	}
}

// Process runs a single attempt for ev. Analysis and storage failures abort
// with the error; a notification failure is logged by the notifier and the
// invocation still finishes in StateDone.
func (p *Pipeline) Process(ctx context.Context, ev ObjectEvent) (*Result, error) {
	ctx = logger.WithObject(ctx, ev.Bucket, ev.Key)
	log := logger.FromContext(ctx)
	res := &Result{}
	advance := func(s State) {
		res.State = s
		log.Debug("Pipeline state", "state", s)
	}

	advance(StateReceived)
	log.Info("Processing receipt")

	fs, err := p.analyzer.Analyze(ctx, ev.Bucket, ev.Key)
	if err != nil {
		advance(StateFailed)
		err = fmt.Errorf("%w: %s/%s: %w", ErrAnalysis, ev.Bucket, ev.Key, err)
		log.Error("Failed to analyze receipt", "error", err)
		return res, err
	}
	advance(StateAnalyzed)

	receipt, dropped := p.normalizer.Normalize(ev.Bucket, ev.Key, fs)
	res.Receipt = receipt
	if dropped > 0 {
		log.Warn("Dropped line items without a name", "receipt_id", receipt.ID, "dropped", dropped)
	}

	if err := p.store.Insert(ctx, receipt); err != nil {
		advance(StateFailed)
		log.Error("Failed to store receipt", "receipt_id", receipt.ID, "error", err)
		return res, err
	}
	advance(StateStored)
	log.Info("Receipt stored", "receipt_id", receipt.ID, "items", len(receipt.Items))

	// Notification failures are the notifier's to log; they never fail the invocation
	p.notifier.Notify(ctx, receipt)
	advance(StateNotified)

	advance(StateDone)
	return res, nil
}

// Dispatch processes each event as its own invocation, in order. Every event
// is attempted; the returned error joins the failures.
func (p *Pipeline) Dispatch(ctx context.Context, events []ObjectEvent) error {
	var errs []error
	for _, ev := range events {
		if _, err := p.Process(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
