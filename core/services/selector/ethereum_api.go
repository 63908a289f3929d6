package selector

import (
	"context"

	"github.com/nodefleet/multistream/core/services/upstream"
)

// EthereumApi is a single call handle a caller walks FilteredApis'
// sequence to obtain. It binds a specific upstream's ingress reader.
type EthereumApi struct {
	Upstream upstream.Upstream
}

// Call dispatches through the bound upstream's ingress reader.
func (a EthereumApi) Call(ctx context.Context, method string, params []interface{}) ([]byte, error) {
	reader, err := a.Upstream.IngressReader()
	if err != nil {
		return nil, err
	}
	return reader.Call(ctx, method, params)
}
