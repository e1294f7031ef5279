package pointers

import "time"

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T { return &v }

func Float64(v float64) *float64 { return &v }
func String(v string) *string    { return &v }
func Time(v time.Time) *time.Time { return &v }

// Deref returns *p or the zero value.
func Deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

// EqualFloat treats two nils as equal and nil as different from 0.
func EqualFloat(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
