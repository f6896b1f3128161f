package pipeline

import (
	"context"
	"fmt"

	"github.com/conveyr/conveyr/pkg/dataset"
)

// replay applies the action log to one batch. Entries run in order; a join
// marker stashes its datasets and the next named action receives one
// secondary batch per dataset, materialized with the current batch's index
// so the secondary data lines up with the primary rows. Each action's
// return value becomes the batch for the next entry.
func replay(ctx context.Context, b dataset.Batch, log *Log, reg *Registry) (dataset.Batch, error) {
	var pendingJoin []dataset.Dataset

	for _, a := range log.entries {
		if a.IsJoin() {
			pendingJoin = a.Join
			continue
		}

		fn, err := reg.Resolve(a.Name)
		if err != nil {
			return nil, err
		}

		call := Call{Name: a.Name, Args: a.Args, Kwargs: a.Kwargs}
		if pendingJoin != nil {
			joined := make([]dataset.Batch, 0, len(pendingJoin))
			for _, jds := range pendingJoin {
				jb, err := jds.CreateBatch(ctx, b.Index())
				if err != nil {
					return nil, fmt.Errorf("materialize join batch for action %q: %w", a.Name, err)
				}
				joined = append(joined, jb)
			}
			call.Joined = joined
			pendingJoin = nil
		}

		b, err = fn(ctx, b, call)
		if err != nil {
			return nil, fmt.Errorf("action %q: %w", a.Name, err)
		}
	}

	return b, nil
}
