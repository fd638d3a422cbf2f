package geneva

import (
	"fmt"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
)

// bearerRoundTripper intercepts config service requests and adds a Bearer
// token Authorization header from the credential.
type bearerRoundTripper struct {
	baseTransport http.RoundTripper
	credential    azcore.TokenCredential
	scope         string
}

// RoundTrip clones the request and adds the Authorization header. Token
// caching and refresh are handled by the credential.
func (rt *bearerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	token, err := rt.credential.GetToken(req.Context(), policy.TokenRequestOptions{
		Scopes: []string{rt.scope},
	})
	if err != nil {
		return nil, fmt.Errorf("acquiring token for %s: %w", rt.scope, err)
	}

	req2 := req.Clone(req.Context())
	if req2.Header == nil {
		req2.Header = make(http.Header)
	}

	req2.Header.Set("Authorization", "Bearer "+token.Token)

	return rt.baseTransport.RoundTrip(req2)
}
