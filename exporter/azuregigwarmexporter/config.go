// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package azuregigwarmexporter // import "github.com/lalitb/otel-azuregigwarm-exporter/exporter/azuregigwarmexporter"

import (
	"errors"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/collector/component"
	"go.opentelemetry.io/collector/config/configopaque"
	"go.opentelemetry.io/collector/config/configretry"
	"go.opentelemetry.io/collector/exporter/exporterhelper"

	"github.com/lalitb/otel-azuregigwarm-exporter/exporter/azuregigwarmexporter/internal/geneva"
)

// AuthMethod represents the authentication method for Geneva Warm.
type AuthMethod int

const (
	// MSI uses Managed Service Identity.
	MSI AuthMethod = iota
	// Certificate uses certificate-based authentication.
	Certificate
	// WorkloadIdentity uses Workload Identity authentication.
	WorkloadIdentity
)

// String returns the string representation of AuthMethod.
func (a AuthMethod) String() string {
	switch a {
	case MSI:
		return "msi"
	case Certificate:
		return "certificate"
	case WorkloadIdentity:
		return "workload_identity"
	default:
		return "unknown"
	}
}

// UnmarshalText lets auth_method accept the method names as well as the
// numeric values the original configuration format used.
func (a *AuthMethod) UnmarshalText(text []byte) error {
	switch string(text) {
	case "msi", "0":
		*a = MSI
	case "certificate", "1":
		*a = Certificate
	case "workload_identity", "2":
		*a = WorkloadIdentity
	default:
		return fmt.Errorf("invalid auth_method: %q", string(text))
	}
	return nil
}

// Config defines configuration for the Azure Geneva Warm exporter.
//
// The exporter sends OTLP log and trace data to Azure Geneva (Warm path).
type Config struct {
	// Geneva-specific configuration (required)
	Endpoint           string     `mapstructure:"endpoint"`
	Environment        string     `mapstructure:"environment"`
	Account            string     `mapstructure:"account"`
	Namespace          string     `mapstructure:"namespace"`
	Region             string     `mapstructure:"region"`
	ConfigMajorVersion uint32     `mapstructure:"config_major_version"`
	AuthMethod         AuthMethod `mapstructure:"auth_method"`
	Tenant             string     `mapstructure:"tenant"`
	RoleName           string     `mapstructure:"role_name"`
	RoleInstance       string     `mapstructure:"role_instance"`

	// Certificate auth parameters (required only when AuthMethod == Certificate)
	CertPath     string              `mapstructure:"cert_path"`
	CertPassword configopaque.String `mapstructure:"cert_password"`

	// Workload Identity auth parameters (required only when AuthMethod == WorkloadIdentity)
	WorkloadIdentityResource string `mapstructure:"workload_identity_resource"`

	// QueueConfig configures the sending queue for the exporter
	QueueConfig exporterhelper.QueueBatchConfig `mapstructure:"sending_queue"`

	// RetryConfig configures retry behavior for failed exports
	RetryConfig configretry.BackOffConfig `mapstructure:"retry_on_failure"`

	// BatchRetryConfig configures retry behavior for individual batch uploads
	BatchRetryConfig BatchRetryConfig `mapstructure:"batch_retry"`

	tokenCredential azcore.TokenCredential

	// prevent unkeyed literal initialization
	_ struct{}
}

// BatchRetryConfig configures retry behavior for individual batch uploads
// within a single export request. Failed batches are retried without
// re-encoding and re-uploading the batches that succeeded.
type BatchRetryConfig struct {
	// Enabled indicates whether batch-level retry is enabled (default: true)
	Enabled bool `mapstructure:"enabled"`
	// MaxRetries is the maximum number of retry attempts per batch (default: 3)
	MaxRetries int `mapstructure:"max_retries"`
	// InitialInterval is the initial backoff interval (default: 100ms)
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	// MaxInterval is the maximum backoff interval (default: 5s)
	MaxInterval time.Duration `mapstructure:"max_interval"`
	// Multiplier is the backoff multiplier (default: 2.0)
	Multiplier float64 `mapstructure:"multiplier"`
}

// NewDefaultBatchRetryConfig creates a BatchRetryConfig with default values.
func NewDefaultBatchRetryConfig() BatchRetryConfig {
	return BatchRetryConfig{
		Enabled:         true,
		MaxRetries:      3,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		Multiplier:      2.0,
	}
}

// backOff builds the per-batch retry policy, normalizing out-of-range values
// to the defaults.
func (c BatchRetryConfig) backOff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.InitialInterval
	if bo.InitialInterval <= 0 {
		bo.InitialInterval = 100 * time.Millisecond
	}
	bo.MaxInterval = c.MaxInterval
	if bo.MaxInterval <= 0 {
		bo.MaxInterval = 5 * time.Second
	}
	bo.Multiplier = c.Multiplier
	if bo.Multiplier <= 0 {
		bo.Multiplier = 2.0
	}
	bo.RandomizationFactor = 0.1
	bo.MaxElapsedTime = 0
	bo.Reset()
	return bo
}

var _ component.Config = (*Config)(nil)

// Validate checks if the exporter configuration is valid.
func (cfg *Config) Validate() error {
	if cfg.Endpoint == "" {
		return errors.New(`requires a non-empty "endpoint"`)
	}
	if cfg.Environment == "" {
		return errors.New(`requires a non-empty "environment"`)
	}
	if cfg.Account == "" {
		return errors.New(`requires a non-empty "account"`)
	}
	if cfg.Namespace == "" {
		return errors.New(`requires a non-empty "namespace"`)
	}
	if cfg.Region == "" {
		return errors.New(`requires a non-empty "region"`)
	}
	if cfg.Tenant == "" {
		return errors.New(`requires a non-empty "tenant"`)
	}
	if cfg.RoleName == "" {
		return errors.New(`requires a non-empty "role_name"`)
	}
	if cfg.RoleInstance == "" {
		return errors.New(`requires a non-empty "role_instance"`)
	}
	if cfg.AuthMethod != MSI && cfg.AuthMethod != Certificate && cfg.AuthMethod != WorkloadIdentity {
		return fmt.Errorf(`invalid auth_method: %d (must be 0 for MSI, 1 for Certificate, or 2 for WorkloadIdentity)`, cfg.AuthMethod)
	}
	if cfg.AuthMethod == Certificate {
		if cfg.CertPath == "" {
			return errors.New(`requires a non-empty "cert_path" when auth_method == certificate`)
		}
		// cert_password can be empty if the cert is not password protected, so no hard check here.
	}
	if cfg.AuthMethod == WorkloadIdentity {
		if cfg.WorkloadIdentityResource == "" {
			return errors.New(`requires a non-empty "workload_identity_resource" when auth_method == workload_identity`)
		}
	}
	return nil
}

// utility testing function
func (cfg *Config) SetTokenCredential(cred azcore.TokenCredential) {
	cfg.tokenCredential = cred
}

// clientMethod maps the configured auth method onto the client's.
func (a AuthMethod) clientMethod() geneva.AuthMethod {
	switch a {
	case Certificate:
		return geneva.AuthMethodCertificate
	case WorkloadIdentity:
		return geneva.AuthMethodWorkloadIdentity
	default:
		return geneva.AuthMethodManagedIdentity
	}
}

// clientConfig maps the exporter configuration onto the Geneva client
// configuration. The auth method is selected first; the credential payload
// for the selected method is filled in afterwards.
func (cfg *Config) clientConfig() geneva.Config {
	gcfg := geneva.Config{
		Endpoint:           cfg.Endpoint,
		Environment:        cfg.Environment,
		Account:            cfg.Account,
		Namespace:          cfg.Namespace,
		Region:             cfg.Region,
		ConfigMajorVersion: cfg.ConfigMajorVersion,
		Tenant:             cfg.Tenant,
		RoleName:           cfg.RoleName,
		RoleInstance:       cfg.RoleInstance,
	}
	gcfg.Auth.Method = cfg.AuthMethod.clientMethod()

	switch cfg.AuthMethod {
	case Certificate:
		gcfg.SetCert(cfg.CertPath, string(cfg.CertPassword))
	case WorkloadIdentity:
		gcfg.SetWorkloadIdentity(cfg.WorkloadIdentityResource)
	}

	if cfg.tokenCredential != nil {
		gcfg.SetTokenCredential(cfg.tokenCredential)
	}

	return gcfg
}
