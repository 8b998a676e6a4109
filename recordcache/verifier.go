package recordcache

import "context"

// Verifier checks stored cache entries against fresh computations.
type Verifier struct {
	store *Store
}

// NewVerifier returns a Verifier reading through store.
func NewVerifier(store *Store) *Verifier {
	return &Verifier{store: store}
}

// Verify returns the fields of rec that were checked, or a *MismatchError
// naming the first field whose stored value differs from its computation.
func (v *Verifier) Verify(ctx context.Context, rec Record) ([]string, error) {
	return v.store.Verify(ctx, rec)
}
