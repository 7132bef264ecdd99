package sink

import (
	"context"
	"errors"
)

// MultiSink fans a report out to every sink. All sinks are attempted even
// when earlier ones fail; errors are joined.
type MultiSink []Sink

// NewMultiSink combines sinks, skipping nils
func NewMultiSink(sinks ...Sink) MultiSink {
	out := make(MultiSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

// Report delivers the report to every sink
func (m MultiSink) Report(ctx context.Context, r Report) error {
	var errs []error
	for _, s := range m {
		if err := s.Report(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ Sink = (MultiSink)(nil)
