package saga

import "github.com/on-the-ground/saga_ive_go/shared/helper"

// As converts the outcome of a yield or of an await to T. A failure is
// passed through; a nil value becomes the zero T.
//
//	n, err := saga.As[int](co.Yield(saga.Delay(time.Millisecond, 1)))
func As[T any](v any, err error) (T, error) {
	return helper.GetTypedValueOf[T](func() (any, error) {
		return v, err
	})
}
