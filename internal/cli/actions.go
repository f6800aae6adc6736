package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"ledger/internal/amqp"
	"ledger/internal/core"
	"ledger/internal/ledger"
	"ledger/internal/render"
)

var errMissingDate = fmt.Errorf("%w: date is missing", core.ErrInvalidDate)

// ChangeConsumer delivers ledger change events, one handler call each.
type ChangeConsumer interface {
	ConsumeChanges(ctx context.Context, handler func(*amqp.ChangeMessage) error) error
}

// Actions implements the ledgerctl commands against a loaded store.
type Actions struct {
	Store    *ledger.Store
	Renderer *render.Renderer
	Out      io.Writer
	Color    bool
}

// List prints the limit most recent transactions with totals.
// A limit below one prints everything.
func (a *Actions) List(limit int) {
	a.Renderer.Table(a.Out, a.Store.Snapshot(), render.TableOptions{Limit: limit, Color: a.Color})
}

// Totals prints net balance, income and expenses.
func (a *Actions) Totals() {
	a.Renderer.Totals(a.Out, a.Store.Snapshot())
}

// Add validates and records one transaction. A persistence failure is
// reported but the transaction stays recorded for this process.
func (a *Actions) Add(ctx context.Context, c ledger.Candidate) (core.Transaction, error) {
	tx, err := a.Store.Add(ctx, c)
	if errors.Is(err, core.ErrInvalidInput) {
		return tx, err
	}
	fmt.Fprintf(a.Out, "Added #%d %s %s on %s\n",
		tx.ID, tx.Name, a.Renderer.Currency().FormatSigned(tx), render.DateLabel(tx.Date))
	return tx, err
}

// Delete removes the transaction with id; an unknown id only prints a note.
func (a *Actions) Delete(ctx context.Context, id int64) error {
	removed, err := a.Store.Delete(ctx, id)
	if !removed {
		fmt.Fprintf(a.Out, "No transaction #%d\n", id)
		return nil
	}
	fmt.Fprintf(a.Out, "Deleted #%d\n", id)
	return err
}

// Export writes the ledger as an xlsx workbook at path.
func (a *Actions) Export(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := a.Renderer.WriteWorkbook(f, a.Store.Snapshot()); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "Exported %d transactions to %s\n", len(a.Store.List()), path)
	return nil
}

// Import adds every row of the workbook at path as a new transaction.
// Invalid rows are skipped and listed; the count of added rows is returned.
func (a *Actions) Import(ctx context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	cands, err := render.ReadWorkbook(f)
	if err != nil {
		return 0, err
	}

	added := 0
	var persistErr error
	for i, c := range cands {
		// An empty cell would otherwise be stamped with today's date.
		if strings.TrimSpace(c.Date) == "" {
			fmt.Fprintf(a.Out, "Skipped row %d (%q): %v\n", i+2, c.Name, errMissingDate)
			continue
		}
		_, err := a.Store.Add(ctx, c)
		switch {
		case errors.Is(err, core.ErrInvalidInput):
			fmt.Fprintf(a.Out, "Skipped row %d (%q): %v\n", i+2, c.Name, err)
			continue
		case err != nil:
			persistErr = err
		}
		added++
	}
	fmt.Fprintf(a.Out, "Imported %d of %d rows from %s\n", added, len(cands), path)
	return added, persistErr
}

// Watch prints change events until ctx is done.
func (a *Actions) Watch(ctx context.Context, consumer ChangeConsumer) error {
	err := consumer.ConsumeChanges(ctx, func(msg *amqp.ChangeMessage) error {
		line := fmt.Sprintf("%s v%d %s", msg.Timestamp.Format("2006-01-02 15:04:05"), msg.Version, msg.Op)
		if msg.ID != 0 {
			line += fmt.Sprintf(" #%d", msg.ID)
		}
		fmt.Fprintf(a.Out, "%s (%d transactions)\n", line, msg.TransactionCount)
		return nil
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
