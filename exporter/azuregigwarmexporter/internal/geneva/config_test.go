package geneva

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Endpoint:           "https://gcs.ppe.monitoring.core.windows.net",
		Environment:        "loadtest",
		Account:            "testbed",
		Namespace:          "perftest",
		Region:             "local",
		ConfigMajorVersion: 1,
		Tenant:             "test-tenant",
		RoleName:           "testbed-role",
		RoleInstance:       "instance-01",
	}
}

func TestSetCert(t *testing.T) {
	cfg := validConfig()
	cfg.Auth.Method = AuthMethodCertificate
	cfg.Auth.WorkloadIdentity.Resource = "https://left.alone"

	want := cfg
	want.Auth.Cert.Path = "/etc/geneva/client.p12"
	want.Auth.Cert.Password = "hunter2"

	cfg.SetCert("/etc/geneva/client.p12", "hunter2")

	// Only the certificate payload changed; method, the workload identity
	// payload and every account field kept their values.
	require.Equal(t, want, cfg)
}

func TestSetCertOverwrites(t *testing.T) {
	var cfg Config
	cfg.SetCert("/old.p12", "old")
	cfg.SetCert("/new.p12", "")

	assert.Equal(t, "/new.p12", cfg.Auth.Cert.Path)
	assert.Equal(t, "", cfg.Auth.Cert.Password)
}

func TestSetWorkloadIdentity(t *testing.T) {
	cfg := validConfig()
	cfg.Auth.Method = AuthMethodWorkloadIdentity
	cfg.Auth.Cert = CertAuth{Path: "/left.p12", Password: "alone"}

	want := cfg
	want.Auth.WorkloadIdentity.Resource = "https://monitor.azure.com"

	cfg.SetWorkloadIdentity("https://monitor.azure.com")

	require.Equal(t, want, cfg)
}

func TestSettersNilConfig(t *testing.T) {
	var cfg *Config

	require.NotPanics(t, func() {
		cfg.SetCert("/etc/geneva/client.p12", "hunter2")
		cfg.SetWorkloadIdentity("https://monitor.azure.com")
	})
}

func TestSettersDoNotSelectMethod(t *testing.T) {
	cfg := validConfig()
	cfg.Auth.Method = AuthMethodManagedIdentity

	cfg.SetCert("/etc/geneva/client.p12", "")
	assert.Equal(t, AuthMethodManagedIdentity, cfg.Auth.Method)

	cfg.SetWorkloadIdentity("https://monitor.azure.com")
	assert.Equal(t, AuthMethodManagedIdentity, cfg.Auth.Method)
}

func TestAuthMethodString(t *testing.T) {
	tests := map[AuthMethod]string{
		AuthMethodManagedIdentity:  "msi",
		AuthMethodCertificate:      "certificate",
		AuthMethodWorkloadIdentity: "workload_identity",
		AuthMethod(42):             "unknown",
	}
	for method, want := range tests {
		assert.Equal(t, want, method.String())
	}
}

func TestConfigValidate(t *testing.T) {
	tests := map[string]struct {
		mutate  func(*Config)
		wantErr error
	}{
		"valid msi": {
			mutate: func(*Config) {},
		},
		"valid certificate": {
			mutate: func(c *Config) {
				c.Auth.Method = AuthMethodCertificate
				c.SetCert("/etc/geneva/client.p12", "hunter2")
			},
		},
		"valid workload identity": {
			mutate: func(c *Config) {
				c.Auth.Method = AuthMethodWorkloadIdentity
				c.SetWorkloadIdentity("https://monitor.azure.com")
			},
		},
		"missing endpoint": {
			mutate:  func(c *Config) { c.Endpoint = "" },
			wantErr: ErrMissingEndpoint,
		},
		"missing environment": {
			mutate:  func(c *Config) { c.Environment = "" },
			wantErr: ErrMissingEnvironment,
		},
		"missing account": {
			mutate:  func(c *Config) { c.Account = "" },
			wantErr: ErrMissingAccount,
		},
		"missing namespace": {
			mutate:  func(c *Config) { c.Namespace = "" },
			wantErr: ErrMissingNamespace,
		},
		"missing region": {
			mutate:  func(c *Config) { c.Region = "" },
			wantErr: ErrMissingRegion,
		},
		"missing tenant": {
			mutate:  func(c *Config) { c.Tenant = "" },
			wantErr: ErrMissingTenant,
		},
		"missing role name": {
			mutate:  func(c *Config) { c.RoleName = "" },
			wantErr: ErrMissingRoleName,
		},
		"missing role instance": {
			mutate:  func(c *Config) { c.RoleInstance = "" },
			wantErr: ErrMissingRoleInstance,
		},
		"certificate without path": {
			mutate:  func(c *Config) { c.Auth.Method = AuthMethodCertificate },
			wantErr: ErrInvalidCertConfig,
		},
		"workload identity without resource": {
			mutate:  func(c *Config) { c.Auth.Method = AuthMethodWorkloadIdentity },
			wantErr: ErrInvalidConfig,
		},
		"unknown auth method": {
			mutate:  func(c *Config) { c.Auth.Method = AuthMethod(7) },
			wantErr: ErrInvalidAuthMethod,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := validConfig()
			test.mutate(&cfg)

			err := cfg.Validate()
			if test.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			if !errors.Is(err, test.wantErr) {
				t.Fatalf("Expected error '%v', but got '%v'", test.wantErr, err)
			}
		})
	}
}

func TestIdentity(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, "Tenant=test-tenant/Role=testbed-role/RoleInstance=instance-01", cfg.identity())
}
