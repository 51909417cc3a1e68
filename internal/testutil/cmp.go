package testutil

import (
	"github.com/google/go-cmp/cmp"

	"github.com/arrowarc/chingest/pkg/record"
)

var defaultCmpOptions = []cmp.Option{
	// Values have unexported fields; NaNs compare equal.
	cmp.Comparer(func(x, y record.Value) bool { return x.Equal(y) }),
}

func Equal(x, y interface{}, opts ...cmp.Option) bool {
	opts = append(opts[:len(opts):len(opts)], defaultCmpOptions...)
	return cmp.Equal(x, y, opts...)
}

func Diff(x, y interface{}, opts ...cmp.Option) string {
	opts = append(opts[:len(opts):len(opts)], defaultCmpOptions...)
	return cmp.Diff(x, y, opts...)
}
