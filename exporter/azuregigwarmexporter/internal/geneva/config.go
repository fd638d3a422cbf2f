package geneva

import (
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
)

// AuthMethod selects how the client authenticates to Geneva.
type AuthMethod int32

const (
	// AuthMethodManagedIdentity authenticates with the machine's managed identity.
	AuthMethodManagedIdentity AuthMethod = iota
	// AuthMethodCertificate authenticates with a PKCS#12 client certificate.
	AuthMethodCertificate
	// AuthMethodWorkloadIdentity authenticates with a federated workload identity.
	AuthMethodWorkloadIdentity
)

// String returns the configuration spelling of the auth method.
func (m AuthMethod) String() string {
	switch m {
	case AuthMethodManagedIdentity:
		return "msi"
	case AuthMethodCertificate:
		return "certificate"
	case AuthMethodWorkloadIdentity:
		return "workload_identity"
	default:
		return "unknown"
	}
}

// CertAuth carries the credentials for certificate authentication.
type CertAuth struct {
	// Path of the PKCS#12 (.p12/.pfx) bundle holding the client certificate
	// and private key.
	Path string
	// Password protecting the bundle. Empty when the bundle is unprotected.
	Password string
}

// WorkloadIdentityAuth carries the parameters for workload identity
// authentication.
type WorkloadIdentityAuth struct {
	// Resource tokens are requested for.
	Resource string
}

// AuthConfig selects and parameterizes the authentication method. Method is
// the discriminant; only the payload matching it is consulted.
type AuthConfig struct {
	Method           AuthMethod
	Cert             CertAuth
	WorkloadIdentity WorkloadIdentityAuth
}

// Config describes a Geneva account and the identity used to upload into it.
type Config struct {
	Endpoint           string
	Environment        string
	Account            string
	Namespace          string
	Region             string
	ConfigMajorVersion uint32
	Tenant             string
	RoleName           string
	RoleInstance       string

	// MSIResource optionally overrides the resource tokens are requested for
	// under managed identity auth.
	MSIResource string

	Auth AuthConfig

	tokenCredential azcore.TokenCredential
}

// utility testing function
func (c *Config) SetTokenCredential(cred azcore.TokenCredential) {
	c.tokenCredential = cred
}

// SetCert stores the certificate path and password in the certificate auth
// payload. The auth method and every other field are left untouched; callers
// select the certificate method separately. Calling on a nil Config is a
// no-op.
func (c *Config) SetCert(path, password string) {
	if c == nil {
		return
	}
	c.Auth.Cert.Path = path
	c.Auth.Cert.Password = password
}

// SetWorkloadIdentity stores the token resource in the workload identity auth
// payload. The auth method and every other field are left untouched; callers
// select the workload identity method separately. Calling on a nil Config is
// a no-op.
func (c *Config) SetWorkloadIdentity(resource string) {
	if c == nil {
		return
	}
	c.Auth.WorkloadIdentity.Resource = resource
}

// Validate reports the first missing or inconsistent field.
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return ErrMissingEndpoint
	}
	if c.Environment == "" {
		return ErrMissingEnvironment
	}
	if c.Account == "" {
		return ErrMissingAccount
	}
	if c.Namespace == "" {
		return ErrMissingNamespace
	}
	if c.Region == "" {
		return ErrMissingRegion
	}
	if c.Tenant == "" {
		return ErrMissingTenant
	}
	if c.RoleName == "" {
		return ErrMissingRoleName
	}
	if c.RoleInstance == "" {
		return ErrMissingRoleInstance
	}
	switch c.Auth.Method {
	case AuthMethodManagedIdentity:
	case AuthMethodCertificate:
		if c.Auth.Cert.Path == "" {
			return fmt.Errorf("%w: certificate auth needs a non-empty path", ErrInvalidCertConfig)
		}
	case AuthMethodWorkloadIdentity:
		if c.Auth.WorkloadIdentity.Resource == "" {
			return fmt.Errorf("%w: workload identity auth needs a non-empty resource", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: %d", ErrInvalidAuthMethod, int32(c.Auth.Method))
	}
	return nil
}

// identity renders the agent identity used in config service requests.
func (c *Config) identity() string {
	return fmt.Sprintf("Tenant=%s/Role=%s/RoleInstance=%s", c.Tenant, c.RoleName, c.RoleInstance)
}
