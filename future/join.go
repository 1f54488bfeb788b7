package future

import "sync/atomic"

// All joins fs into a future of their values, in input order.
//
// The first rejection rejects the aggregate as soon as it is known. The
// remaining futures are left alone; All never cancels anything.
// An empty input resolves to an empty slice.
func All(exec Executor, fs []*Future) *Future {
	out := New(exec)
	results := make([]any, len(fs))
	if len(fs) == 0 {
		out.Resolve(results)
		return out
	}

	var remaining atomic.Int64
	remaining.Store(int64(len(fs)))
	for i, f := range fs {
		f.Then(func(v any, err error) {
			if err != nil {
				out.Reject(err)
				return
			}
			results[i] = v
			if remaining.Add(-1) == 0 {
				out.Resolve(results)
			}
		})
	}
	return out
}

// Race settles with the first of fs to settle. An empty input never
// settles.
func Race(exec Executor, fs []*Future) *Future {
	out := New(exec)
	for _, f := range fs {
		Follow(out, f)
	}
	return out
}
