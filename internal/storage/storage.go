package storage

import (
	"context"
	"errors"

	"routeScope/internal/model"
)

// RouteSink persists ranked route snapshots.
type RouteSink interface {
	PutSnapshots(ctx context.Context, snapshots []model.RouteSnapshot) error
}

// MultiSink writes to every sink and joins their errors.
type MultiSink []RouteSink

// PutSnapshots implements RouteSink.
func (m MultiSink) PutSnapshots(ctx context.Context, snapshots []model.RouteSnapshot) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.PutSnapshots(ctx, snapshots); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
