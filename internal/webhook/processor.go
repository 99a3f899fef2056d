// Package webhook turns notification batches into pool reports.
package webhook

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"liquidity-watch/internal/classifier"
	"liquidity-watch/internal/domain"
	"liquidity-watch/internal/liquidity"
	"liquidity-watch/internal/observability"
)

// Error kinds surfaced to callers.
var (
	// ErrMalformedRequest means the payload could not be decoded.
	ErrMalformedRequest = errors.New("malformed request")
	// ErrFault means processing failed after decoding; the rest of the batch
	// was not processed.
	ErrFault = errors.New("processing fault")
)

// Assessor evaluates lock concentration for a liquidity-token mint.
type Assessor interface {
	Assess(ctx context.Context, mint string) domain.LockAssessment
}

// Sink receives every pool report.
type Sink interface {
	Name() string
	Record(ctx context.Context, report *domain.PoolReport) error
}

// BatchResult summarizes one processed batch.
type BatchResult struct {
	Received         int                  `json:"received"`
	Pools            int                  `json:"pools"`
	Evaluated        int                  `json:"evaluated"`
	Locked           int                  `json:"locked"`
	PoolInstructions int                  `json:"pool_instructions"` // initialize_pool, informational only
	Reports          []*domain.PoolReport `json:"-"`
}

// Stats are cumulative counters since start-up.
type Stats struct {
	Batches       uint64    `json:"batches"`
	Notifications uint64    `json:"notifications"`
	Pools         uint64    `json:"pools"`
	Evaluated     uint64    `json:"evaluated"`
	Locked        uint64    `json:"locked"`
	Faults        uint64    `json:"faults"`
	LastBatchAt   time.Time `json:"last_batch_at,omitempty"`
}

// Processor runs classify, estimate, gate and assess for each notification.
// Notifications and candidate mints are handled sequentially.
type Processor struct {
	classifier *classifier.Classifier
	estimator  *liquidity.Estimator
	assessor   Assessor
	sinks      []Sink
	logger     *zap.Logger
	now        func() time.Time

	batches       atomic.Uint64
	notifications atomic.Uint64
	pools         atomic.Uint64
	evaluated     atomic.Uint64
	locked        atomic.Uint64
	faults        atomic.Uint64
	lastMu        sync.Mutex
	lastBatchAt   time.Time
}

// NewProcessor creates a processor. sinks may be empty.
func NewProcessor(c *classifier.Classifier, e *liquidity.Estimator, a Assessor, sinks []Sink, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		classifier: c,
		estimator:  e,
		assessor:   a,
		sinks:      sinks,
		logger:     logger,
		now:        time.Now,
	}
}

// ProcessBatch processes notifications in order. A sink failure or panic
// stops the batch and returns an error wrapping ErrFault together with the
// partial result.
func (p *Processor) ProcessBatch(ctx context.Context, batch []domain.Notification) (res BatchResult, err error) {
	start := p.now()
	res.Received = len(batch)

	defer func() {
		if r := recover(); r != nil {
			err = errors.Wrapf(ErrFault, "panic: %v", r)
		}
		if err != nil {
			p.faults.Add(1)
			p.logger.Error("batch aborted",
				zap.Int("received", res.Received),
				zap.Int("pools", res.Pools),
				zap.Error(err))
		}
	}()

	observability.RecordNotifications(len(batch))
	p.notifications.Add(uint64(len(batch)))

	for _, n := range batch {
		for _, ix := range n.PoolInitializations() {
			res.PoolInstructions++
			observability.RecordPoolInstruction()
			p.logger.Info("pool initialized",
				zap.String("signature", n.Signature),
				zap.String("program", ix.ProgramID))
		}

		ev, ok := p.classifier.Classify(n)
		if !ok {
			continue
		}

		report := p.evaluate(ctx, ev)
		res.Pools++
		if report.Status == domain.ReportEvaluated {
			res.Evaluated++
		}
		if report.AnyLocked() {
			res.Locked++
		}

		for _, s := range p.sinks {
			if err := s.Record(ctx, report); err != nil {
				observability.RecordSinkError(s.Name())
				return res, errors.Wrapf(ErrFault, "sink %s: %v", s.Name(), err)
			}
		}
		res.Reports = append(res.Reports, report)
	}

	finished := p.now()
	observability.RecordBatch(finished.Sub(start).Seconds(), finished.Unix())
	p.record(res, finished)
	return res, nil
}

// evaluate builds the report for one pool-creation event.
func (p *Processor) evaluate(ctx context.Context, ev *domain.PoolEvent) *domain.PoolReport {
	usd := p.estimator.Estimate(ev)
	report := domain.NewPoolReport(ev, usd, p.now().UnixMilli())

	if !p.estimator.MeetsThreshold(usd) {
		p.logger.Info("pool below liquidity threshold", zap.String("summary", report.Summary()))
		observability.RecordPool(string(report.Status), usd)
		return report
	}

	report.Status = domain.ReportEvaluated
	report.Assessments = make([]domain.LockAssessment, 0, len(ev.CandidateMints))
	for _, mint := range ev.CandidateMints {
		report.Assessments = append(report.Assessments, p.assessor.Assess(ctx, mint))
	}

	p.logger.Info("pool evaluated",
		zap.String("summary", report.Summary()),
		zap.Strings("candidates", ev.CandidateMints),
		zap.Bool("locked", report.AnyLocked()))
	observability.RecordPool(string(report.Status), usd)
	return report
}

func (p *Processor) record(res BatchResult, at time.Time) {
	p.batches.Add(1)
	p.pools.Add(uint64(res.Pools))
	p.evaluated.Add(uint64(res.Evaluated))
	p.locked.Add(uint64(res.Locked))

	p.lastMu.Lock()
	p.lastBatchAt = at
	p.lastMu.Unlock()
}

// Stats returns cumulative counters.
func (p *Processor) Stats() Stats {
	p.lastMu.Lock()
	last := p.lastBatchAt
	p.lastMu.Unlock()

	return Stats{
		Batches:       p.batches.Load(),
		Notifications: p.notifications.Load(),
		Pools:         p.pools.Load(),
		Evaluated:     p.evaluated.Load(),
		Locked:        p.locked.Load(),
		Faults:        p.faults.Load(),
		LastBatchAt:   last,
	}
}
