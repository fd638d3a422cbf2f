package geneva

import (
	"crypto/tls"
	"fmt"
	"os"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"golang.org/x/crypto/pkcs12"
)

// defaultMSIResource is the resource tokens are requested for when managed
// identity auth does not name one.
const defaultMSIResource = "https://monitor.azure.com"

// credentials holds whichever credential material the configured auth method
// produced: a client certificate for mTLS or a token credential for bearer
// auth.
type credentials struct {
	certificate *tls.Certificate
	token       azcore.TokenCredential
	scope       string
}

// newCredentials builds the credential material for cfg. The config must
// have passed Validate.
func newCredentials(cfg Config) (*credentials, error) {
	switch cfg.Auth.Method {
	case AuthMethodCertificate:
		cert, err := loadPKCS12Certificate(cfg.Auth.Cert.Path, cfg.Auth.Cert.Password)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidCertConfig, err.Error())
		}
		return &credentials{certificate: cert}, nil
	case AuthMethodWorkloadIdentity:
		cred, err := tokenCredential(cfg, func() (azcore.TokenCredential, error) {
			return azidentity.NewWorkloadIdentityCredential(nil)
		})
		if err != nil {
			return nil, fmt.Errorf("building workload identity credential: %w", err)
		}
		return &credentials{token: cred, scope: tokenScope(cfg.Auth.WorkloadIdentity.Resource)}, nil
	case AuthMethodManagedIdentity:
		cred, err := tokenCredential(cfg, func() (azcore.TokenCredential, error) {
			return azidentity.NewManagedIdentityCredential(nil)
		})
		if err != nil {
			return nil, fmt.Errorf("building managed identity credential: %w", err)
		}
		resource := cfg.MSIResource
		if resource == "" {
			resource = defaultMSIResource
		}
		return &credentials{token: cred, scope: tokenScope(resource)}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrInvalidAuthMethod, int32(cfg.Auth.Method))
	}
}

// tokenCredential prefers an injected credential over building a real one.
func tokenCredential(cfg Config, build func() (azcore.TokenCredential, error)) (azcore.TokenCredential, error) {
	if cfg.tokenCredential != nil {
		return cfg.tokenCredential, nil
	}
	return build()
}

// loadPKCS12Certificate reads a .p12/.pfx bundle and turns it into a TLS
// client certificate.
func loadPKCS12Certificate(certPath, password string) (*tls.Certificate, error) {
	data, err := os.ReadFile(certPath)
	if err != nil {
		return nil, fmt.Errorf("reading certificate bundle: %w", err)
	}
	key, cert, err := pkcs12.Decode(data, password)
	if err != nil {
		return nil, fmt.Errorf("decoding certificate bundle: %w", err)
	}
	return &tls.Certificate{
		Certificate: [][]byte{cert.Raw},
		PrivateKey:  key,
		Leaf:        cert,
	}, nil
}

// tokenScope converts an Entra resource into the scope form GetToken expects.
func tokenScope(resource string) string {
	return strings.TrimSuffix(resource, "/") + "/.default"
}
