package adaptor

import "github.com/smif-sim/smif/internal/domain"

// IdentityAdaptor passes values through unchanged. It satisfies Adaptor
// for dimensions or specs that already match between source and sink, so
// callers can always go through the Adaptor interface uniformly rather
// than special-casing the no-op case.
type IdentityAdaptor struct{}

func (IdentityAdaptor) Convert(source domain.DataArray, sink domain.Spec) (domain.DataArray, error) {
	return domain.NewDataArray(sink, source.Values())
}
