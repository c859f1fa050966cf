package differ

// MigrationPair holds the previous and the next version of something.
type MigrationPair[T any] struct {
	Previous T
	Next     T
}

// NewPair builds a pair.
func NewPair[T any](previous, next T) MigrationPair[T] {
	return MigrationPair[T]{Previous: previous, Next: next}
}

// Map applies f to both sides.
func Map[T, U any](p MigrationPair[T], f func(T) U) MigrationPair[U] {
	return MigrationPair[U]{Previous: f(p.Previous), Next: f(p.Next)}
}
