// Package worker maintains the on-disk payout register: a CSV file of all
// payouts that accountants pick up without touching the API. Rows arrive
// via payout events; a startup rebuild recovers from missed messages.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"casetrack/internal/amqp"
	"casetrack/internal/core"
	"casetrack/internal/export"
)

// PayoutReader is the slice of the repository the register worker needs.
type PayoutReader interface {
	GetPayout(ctx context.Context, id int64) (core.Payout, error)
	ListPayouts(ctx context.Context) ([]core.Payout, error)
}

// RegisterWorker appends derived payouts to the register file.
type RegisterWorker struct {
	storage PayoutReader
	path    string

	mu sync.Mutex
}

func NewRegisterWorker(storage PayoutReader, path string) *RegisterWorker {
	return &RegisterWorker{storage: storage, path: path}
}

// HandlePayoutEvent processes one payout event from AMQP. The payout is
// re-read from the database so the register always carries the stored
// figures, not whatever the message happened to contain.
func (w *RegisterWorker) HandlePayoutEvent(ctx context.Context, msg *amqp.PayoutDerivedMessage) error {
	slog.InfoContext(ctx, "Processing payout event",
		"payout_id", msg.PayoutID,
		"event_id", msg.EventID)

	payout, err := w.storage.GetPayout(ctx, msg.PayoutID)
	if err != nil {
		return fmt.Errorf("get payout from storage: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := os.Stat(w.path); err != nil {
		// No register yet, start a fresh one with the header.
		return w.rebuildLocked(ctx)
	}

	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open register: %w", err)
	}
	defer f.Close()

	if err := export.WritePayoutRow(f, payout); err != nil {
		return fmt.Errorf("append register row: %w", err)
	}

	slog.InfoContext(ctx, "Payout appended to register",
		"payout_id", payout.ID,
		"net", payout.Net.String(),
		"path", w.path)
	return nil
}

// StartupCheck rebuilds the register from the database. Run once at worker
// startup so rows from missed events or worker downtime are recovered.
func (w *RegisterWorker) StartupCheck(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rebuildLocked(ctx)
}

// rebuildLocked rewrites the whole register atomically. Callers hold w.mu.
func (w *RegisterWorker) rebuildLocked(ctx context.Context) error {
	payouts, err := w.storage.ListPayouts(ctx)
	if err != nil {
		return fmt.Errorf("list payouts: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(w.path), 0755); err != nil {
		return fmt.Errorf("create register directory: %w", err)
	}

	tmp := w.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create register: %w", err)
	}
	if err := export.Payouts(f, payouts); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write register: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close register: %w", err)
	}
	if err := os.Rename(tmp, w.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace register: %w", err)
	}

	slog.InfoContext(ctx, "Payout register rebuilt",
		"count", len(payouts),
		"path", w.path)
	return nil
}
