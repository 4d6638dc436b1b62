package core

import "context"

type submitterKey struct{}

// Submitter describes who posted a submission. It is logged with the
// submission and Referer stands in for a missing page URL.
type Submitter struct {
	IP        string
	UserAgent string
	Referer   string
}

// WithSubmitter returns ctx carrying s.
func WithSubmitter(ctx context.Context, s Submitter) context.Context {
	return context.WithValue(ctx, submitterKey{}, s)
}

// SubmitterFrom returns the Submitter stored in ctx, or the zero value.
func SubmitterFrom(ctx context.Context) Submitter {
	s, _ := ctx.Value(submitterKey{}).(Submitter)
	return s
}
