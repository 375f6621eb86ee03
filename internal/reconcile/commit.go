package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/evanofslack/cddns/internal/config"
	"github.com/evanofslack/cddns/internal/inventory"
	"github.com/evanofslack/cddns/internal/metrics"
	"github.com/evanofslack/cddns/internal/provider"
	"github.com/evanofslack/cddns/internal/state"
	"go.uber.org/multierr"
)

// Confirmer asks the user a yes or no question.
type Confirmer interface {
	Confirm(ctx context.Context, question string, defaultYes bool) (bool, error)
}

// Controller applies corrective actions to the result of a check.
type Controller struct {
	cfg          config.Config
	engine       *Engine
	dnsProvider  provider.Provider
	confirmer    Confirmer
	stateManager state.Manager
	metrics      *metrics.Metrics
	now          func() time.Time
}

func NewController(cfg config.Config, engine *Engine, dp provider.Provider, confirmer Confirmer, sm state.Manager, metrics *metrics.Metrics) *Controller {
	return &Controller{
		cfg:          cfg,
		engine:       engine,
		dnsProvider:  dp,
		confirmer:    confirmer,
		stateManager: sm,
		metrics:      metrics,
		now:          time.Now,
	}
}

// Commit checks, updates mismatches, then prunes invalid entries.
func (c *Controller) Commit(ctx context.Context) (Summary, error) {
	return c.Run(ctx, Ops{Update: true, Prune: true})
}

// Run checks and then applies the selected steps. Records left mismatched or
// invalid are logged as a warning, not returned as an error.
func (c *Controller) Run(ctx context.Context, ops Ops) (Summary, error) {
	start := c.now()
	summary, err := c.run(ctx, ops)
	c.metrics.IncCommitRun(err == nil)
	c.metrics.SetCommitDuration(c.now().Sub(start))
	return summary, err
}

func (c *Controller) run(ctx context.Context, ops Ops) (Summary, error) {
	result, err := c.engine.Check(ctx)
	if err != nil {
		return Summary{}, err
	}
	c.trackAddresses(ctx, result)

	summary := Summary{
		Matched:    len(result.Matches),
		Mismatched: len(result.Mismatches),
		Invalid:    len(result.Invalid),
	}

	if ops.Update && len(result.Mismatches) > 0 {
		fixed, failures, err := c.update(ctx, result)
		if err != nil {
			return summary, err
		}
		summary.Updated = len(fixed)
		summary.Mismatched -= len(fixed)
		summary.Failures = failures
	}

	if ops.Prune && len(result.Invalid) > 0 {
		inv, err := c.Prune(ctx, result)
		if err != nil {
			return summary, err
		}
		if inv != nil {
			remaining := 0
			for _, pair := range result.Invalid {
				if inv.Contains(pair.Zone, pair.Record) {
					remaining++
				}
			}
			summary.Pruned = summary.Invalid - remaining
			summary.Invalid = remaining
		}
	}

	if ops.Update {
		if summary.Mismatched > 0 {
			slog.Warn(fmt.Sprintf("%d mismatched records remain", summary.Mismatched))
		} else {
			slog.Info("Inventory records are up to date")
		}
	}
	if ops.Prune {
		if summary.Invalid > 0 {
			slog.Warn(fmt.Sprintf("%d invalid records remain", summary.Invalid))
		} else {
			slog.Info("Inventory contains no invalid records")
		}
	}
	slog.Info("Commit summary",
		"matched", summary.Matched,
		"updated", summary.Updated,
		"mismatched", summary.Mismatched,
		"pruned", summary.Pruned,
		"invalid", summary.Invalid,
	)
	return summary, nil
}

// Update patches every mismatched record with the address resolved for its
// family and returns the IDs that were fixed. A failed patch is logged and
// does not stop the batch.
func (c *Controller) Update(ctx context.Context, result Result) (map[string]struct{}, error) {
	fixed, _, err := c.update(ctx, result)
	return fixed, err
}

func (c *Controller) update(ctx context.Context, result Result) (map[string]struct{}, []OperationResult, error) {
	fixed := make(map[string]struct{})
	if len(result.Mismatches) == 0 {
		return fixed, nil, nil
	}

	ok, err := c.confirm(ctx, fmt.Sprintf("Update %d mismatched records?", len(result.Mismatches)))
	if err != nil {
		return fixed, nil, err
	}
	if !ok {
		slog.Info("Skipping update of mismatched records")
		return fixed, nil, nil
	}

	token, err := c.cfg.RequireToken()
	if err != nil {
		return fixed, nil, err
	}

	slog.Info(fmt.Sprintf("Updating %d records", len(result.Mismatches)))
	var (
		errs     error
		failures []OperationResult
		patched  []provider.Record
	)
	for _, record := range result.Mismatches {
		if err := ctx.Err(); err != nil {
			return fixed, failures, err
		}
		addr, ok := result.AddressFor(record.Type)
		if !ok {
			err := fmt.Errorf("%w: %s record %s", ErrUnsupportedType, record.Type, record.Name)
			errs = multierr.Append(errs, err)
			failures = append(failures, OperationResult{Record: record, Op: "update", Error: err.Error()})
			slog.Error("Failed to update record", "name", record.Name, "id", record.ID, "error", err)
			continue
		}

		content := addr.String()
		if err := c.dnsProvider.UpdateRecord(ctx, token, record.ZoneID, record.ID, content); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("update %s: %w", record.Name, err))
			failures = append(failures, OperationResult{Record: record, Op: "update", Error: err.Error()})
			slog.Error("Failed to update record", "name", record.Name, "id", record.ID, "error", err)
			continue
		}

		slog.Info("Updated record", "name", record.Name, "id", record.ID, "content", content)
		fixed[record.ID] = struct{}{}
		record.Content = content
		patched = append(patched, record)
	}

	if errs != nil {
		slog.Debug("Update failures", "count", len(multierr.Errors(errs)), "error", errs)
	}
	c.recordPatches(ctx, patched)
	return fixed, failures, nil
}

// Prune removes every invalid pair from the inventory on disk and saves it
// if anything was removed. It returns the inventory as saved, or nil when
// nothing was attempted.
func (c *Controller) Prune(ctx context.Context, result Result) (*inventory.Inventory, error) {
	if len(result.Invalid) == 0 {
		return nil, nil
	}

	inv, err := inventory.Load(c.cfg.InventoryPath)
	if err != nil {
		return nil, err
	}

	ok, err := c.confirm(ctx, fmt.Sprintf("Prune %d invalid records?", len(result.Invalid)))
	if err != nil {
		return nil, err
	}
	if !ok {
		slog.Info("Skipping prune of invalid records")
		return inv, nil
	}

	removed := 0
	for _, pair := range result.Invalid {
		if !inv.Remove(pair.Zone, pair.Record) {
			slog.Error("Failed to prune record, not in inventory", "zone", pair.Zone, "record", pair.Record)
			continue
		}
		slog.Info("Pruned record", "zone", pair.Zone, "record", pair.Record)
		removed++
	}
	if removed == 0 {
		return inv, nil
	}

	var annotator inventory.Annotator
	if result.Snapshot != nil {
		annotator = inventory.SnapshotAnnotator{Snapshot: result.Snapshot}
	}
	err = inv.Save(c.cfg.InventoryPath, annotator)
	c.metrics.IncInventoryWrite(err == nil)
	if err != nil {
		return nil, err
	}
	return inv, nil
}

func (c *Controller) confirm(ctx context.Context, question string) (bool, error) {
	if c.cfg.Force {
		return true, nil
	}
	if c.confirmer == nil {
		return false, errors.New("confirmation required but no prompt available, use --force")
	}
	return c.confirmer.Confirm(ctx, question, true)
}

// trackAddresses logs public address changes since the previous check and
// remembers the new ones.
func (c *Controller) trackAddresses(ctx context.Context, result Result) {
	if !result.IPv4.IsValid() && !result.IPv6.IsValid() {
		return
	}
	st, err := c.stateManager.LoadState(ctx)
	if err != nil {
		slog.Warn("Could not load sync state", "error", err)
		return
	}

	current := st.Addresses
	if result.IPv4.IsValid() {
		current.V4 = result.IPv4.String()
	}
	if result.IPv6.IsValid() {
		current.V6 = result.IPv6.String()
	}
	current.LastSeen = c.now().Unix()

	for family, change := range current.Changes(st.Addresses) {
		slog.Info("Public address changed", "family", family, "from", change[0], "to", change[1])
	}

	st.Addresses = current
	if err := c.stateManager.SaveState(ctx, st); err != nil {
		slog.Warn("Could not save sync state", "error", err)
	}
}

func (c *Controller) recordPatches(ctx context.Context, patched []provider.Record) {
	if len(patched) == 0 {
		return
	}
	st, err := c.stateManager.LoadState(ctx)
	if err != nil {
		slog.Warn("Could not load sync state", "error", err)
		return
	}
	if st.Records == nil {
		st.Records = make(map[string]state.RecordState)
	}
	now := c.now().Unix()
	for _, r := range patched {
		st.Records[r.ID] = state.RecordState{
			Zone:        r.ZoneName,
			Name:        r.Name,
			Content:     r.Content,
			LastPatched: now,
		}
	}
	if err := c.stateManager.SaveState(ctx, st); err != nil {
		slog.Warn("Could not save sync state", "error", err)
	}
}
