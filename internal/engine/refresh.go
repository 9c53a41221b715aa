package engine

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"time"

	"github.com/terrane-io/terrane/internal/ir"
	"github.com/terrane-io/terrane/internal/logging"
	"github.com/terrane-io/terrane/internal/provider"
	"github.com/terrane-io/terrane/internal/state"
)

// DriftReport summarizes divergence between recorded state and the
// provider's view of the world.
type DriftReport struct {
	Checked int
	Changed []string
	Missing []string
}

// Refresh reads every applied resource back from the provider and
// reconciles the state store with reality: changed attributes are
// re-recorded, vanished resources are dropped from state so the next
// plan recreates them.
func Refresh(ctx context.Context, records map[string]*ir.StateRecord, prov provider.Interface, store state.Store) (*DriftReport, error) {
	report := &DriftReport{}

	ids := make([]string, 0, len(records))
	for id := range records {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		rec := records[id]
		if rec.Status != ir.StatusApplied || rec.ProviderID == "" {
			continue
		}
		report.Checked++

		attrs, err := prov.Read(ctx, rec.Kind, rec.ProviderID)
		if errors.Is(err, provider.ErrNotFound) {
			logging.Warn("resource vanished", "declaration", id, "providerId", rec.ProviderID)
			if err := store.Delete(ctx, id); err != nil {
				return nil, fmt.Errorf("dropping vanished resource %s from state: %w", id, err)
			}
			delete(records, id)
			report.Missing = append(report.Missing, id)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", id, err)
		}

		if !reflect.DeepEqual(attrs, rec.Attributes) {
			updated := *rec
			updated.Attributes = attrs
			updated.UpdatedAt = time.Now().UTC()
			if err := store.Save(ctx, id, &updated); err != nil {
				return nil, fmt.Errorf("recording drift for %s: %w", id, err)
			}
			records[id] = &updated
			report.Changed = append(report.Changed, id)
		}
	}

	return report, nil
}
