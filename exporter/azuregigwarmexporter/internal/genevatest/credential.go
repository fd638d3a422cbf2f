package genevatest

import (
	"context"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
)

// StaticCredential is a TokenCredential handing out a fixed token.
type StaticCredential string

// GetToken implements azcore.TokenCredential.
func (c StaticCredential) GetToken(_ context.Context, _ policy.TokenRequestOptions) (azcore.AccessToken, error) {
	return azcore.AccessToken{
		Token:     string(c),
		ExpiresOn: time.Now().Add(time.Hour),
	}, nil
}
