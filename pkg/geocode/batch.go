package geocode

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// BatchGeocode resolves queries concurrently, bounded by the configured
// concurrency. Results come back in input order. A query that errors,
// transport failures included, comes back unmatched rather than failing the
// remaining queries; only cancellation aborts the batch.
func (g *geocoder) BatchGeocode(ctx context.Context, queries []Query) ([]Result, error) {
	if len(queries) == 0 {
		return nil, nil
	}

	results := make([]Result, len(queries))
	grp, ctx := errgroup.WithContext(ctx)
	grp.SetLimit(g.concurrency)

	for i, q := range queries {
		grp.Go(func() error {
			r, err := g.Geocode(ctx, q)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				zap.L().Warn("geocode query failed",
					zap.String("name", q.Name),
					zap.String("city", q.City),
					zap.Error(err))
				return nil
			}
			results[i] = *r
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
