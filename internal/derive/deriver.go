// Package derive turns case disbursements into payout records. Derivation
// happens exactly once per case: a per-case lock serializes concurrent
// status updates and the storage layer's unique case index backstops
// anything the lock cannot see, such as a second process.
package derive

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"casetrack/internal/core"
)

// Store is the payout persistence the deriver needs. The bool reports
// whether a row was written or an existing payout for the case was kept.
type Store interface {
	CreatePayout(ctx context.Context, p core.Payout) (int64, bool, error)
}

// Event describes a freshly derived payout for downstream consumers.
type Event struct {
	PayoutID  int64            `json:"payout_id"`
	EventID   uuid.UUID        `json:"event_id"`
	CaseType  core.ProductType `json:"case_type"`
	CaseID    int64            `json:"case_id"`
	Month     core.MonthKey    `json:"month"`
	Net       decimal.Decimal  `json:"net"`
	Timestamp time.Time        `json:"timestamp"`
}

// Publisher forwards derivation events. Publishing is best effort: a
// failed publish never rolls back the payout.
type Publisher interface {
	PublishPayoutDerived(ctx context.Context, e Event) error
}

type Deriver struct {
	store          Store
	publisher      Publisher // nil when messaging is not configured
	defaultPercent decimal.Decimal

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewDeriver(store Store, publisher Publisher, defaultPercent decimal.Decimal) *Deriver {
	return &Deriver{
		store:          store,
		publisher:      publisher,
		defaultPercent: defaultPercent,
		locks:          make(map[string]*sync.Mutex),
	}
}

func (d *Deriver) caseLock(product core.ProductType, id int64) *sync.Mutex {
	key := fmt.Sprintf("%s/%d", product, id)
	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.locks[key]
	if !ok {
		l = &sync.Mutex{}
		d.locks[key] = l
	}
	return l
}

// OnStatusChange derives a payout when a case transitions into Disbursed.
// Any other transition, including Disbursed to Disbursed, is a no-op. The
// returned payout is nil when nothing was derived.
func (d *Deriver) OnStatusChange(ctx context.Context, prev core.CaseStatus, c core.LoanCase) (*core.Payout, error) {
	if c.Status != core.StatusDisbursed || prev == core.StatusDisbursed {
		return nil, nil
	}

	l := d.caseLock(c.Product, c.ID)
	l.Lock()
	defer l.Unlock()

	percent := c.PayoutPercent
	if percent.IsZero() && c.PayoutAmount.IsZero() {
		percent = d.defaultPercent
	}
	breakdown := core.ComputePayout(c.Amount, percent, c.PayoutAmount)

	month := core.MonthKeyOf(time.Now())
	if c.DisbursementDate != nil {
		month = core.MonthKeyOf(*c.DisbursementDate)
	}

	payout := core.Payout{
		CaseType:       c.Product,
		CaseID:         c.ID,
		EventID:        uuid.New(),
		Month:          month,
		Branch:         c.Branch,
		CustomerName:   c.CustomerName,
		Principal:      c.Amount,
		PayoutPercent:  percent,
		Gross:          breakdown.Gross,
		GST:            breakdown.GST,
		TDS:            breakdown.TDS,
		Net:            breakdown.Net,
		ReferralAmount: c.ReferralAmount,
		Status:         core.PayoutPending,
	}

	id, inserted, err := d.store.CreatePayout(ctx, payout)
	if err != nil {
		return nil, fmt.Errorf("derive payout for %s case %d: %w", c.Product, c.ID, err)
	}
	if !inserted {
		slog.InfoContext(ctx, "Payout already derived, skipping",
			"case_type", c.Product,
			"case_id", c.ID)
		return nil, nil
	}
	payout.ID = id

	if d.publisher != nil {
		e := Event{
			PayoutID:  id,
			EventID:   payout.EventID,
			CaseType:  c.Product,
			CaseID:    c.ID,
			Month:     month,
			Net:       payout.Net,
			Timestamp: time.Now().UTC(),
		}
		if err := d.publisher.PublishPayoutDerived(ctx, e); err != nil {
			slog.ErrorContext(ctx, "Failed to publish payout event",
				"payout_id", id,
				"error", err)
		}
	}

	slog.InfoContext(ctx, "Payout derived",
		"payout_id", id,
		"case_type", c.Product,
		"case_id", c.ID,
		"net", payout.Net.String())
	return &payout, nil
}
