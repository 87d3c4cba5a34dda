// Package batch implements the provider interface for AWS Batch.
package batch

// Config configures an AWS Batch provider.
//
// Authentication priority (AWS SDK v2 default chain):
//  1. Explicit AccessKeyID/SecretAccessKey (if provided)
//  2. Environment variables (AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY)
//  3. Shared credentials file (~/.aws/credentials)
//  4. Shared config file (~/.aws/config) with profile
//  5. EC2 instance metadata / ECS task role / EKS IRSA
//
// Region handling: if Region is empty and not set via environment/profile,
// defaults to us-east-1. When Endpoint is set (moto, localstack) no default
// region is applied.
type Config struct {
	// Region is the AWS region.
	Region string

	// Endpoint is a custom endpoint URL, used for local emulators.
	// Leave empty for AWS.
	Endpoint string

	// Profile is the AWS profile name to use from shared config.
	Profile string

	// AccessKeyID is an explicit access key. If set, SecretAccessKey must also be set.
	AccessKeyID string

	// SecretAccessKey is an explicit secret key. Required if AccessKeyID is set.
	SecretAccessKey string

	// PageSize is the page size for ListJobs and DescribeJobQueues calls.
	// Zero uses DefaultPageSize. Values over MaxPageSize are clamped.
	PageSize int
}

// DefaultPageSize is the default page size for list operations.
const DefaultPageSize = 100

// MaxPageSize is the largest page size that can still be hydrated by a
// single DescribeJobs call.
const MaxPageSize = 100

// DefaultAWSRegion is the fallback region when none is configured.
const DefaultAWSRegion = "us-east-1"

// Validate checks that the configuration is consistent.
func (c *Config) Validate() error {
	if (c.AccessKeyID != "") != (c.SecretAccessKey != "") {
		return &ConfigError{
			Field:   "AccessKeyID/SecretAccessKey",
			Message: "both access key ID and secret access key must be provided together",
		}
	}
	if c.PageSize < 0 {
		return &ConfigError{Field: "PageSize", Message: "page size must not be negative"}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "batch config: " + e.Field + ": " + e.Message
}
