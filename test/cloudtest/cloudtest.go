// Package cloudtest provides helpers for cloud integration tests using moto.
//
// These helpers enable testing against a local AWS Batch endpoint without
// requiring real AWS credentials. Tests using this package should be tagged
// with //go:build cloudintegration.
//
// Usage:
//
//	func TestMyBatchFunction(t *testing.T) {
//	    cloudtest.SkipIfUnavailable(t)
//	    queue := cloudtest.CreateJobQueue(t, ctx)
//	    def := cloudtest.RegisterJobDefinition(t, ctx)
//	    cloudtest.SubmitJob(t, ctx, queue.Name, def, "my-job")
//	    // ... test code ...
//	}
package cloudtest

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/batch"
	"github.com/aws/aws-sdk-go-v2/service/batch/types"

	batchprov "github.com/3leaps/gosheets/pkg/provider/batch"
)

const (
	// DefaultEndpoint is the default moto server endpoint.
	// Port 5555 avoids conflict with macOS AirTunes on 5000.
	DefaultEndpoint = "http://localhost:5555"

	// DefaultRegion is the default AWS region for tests.
	DefaultRegion = "us-east-1"

	// TestAccessKeyID is the access key used for moto (accepts any).
	TestAccessKeyID = "testing"

	// TestSecretAccessKey is the secret key used for moto (accepts any).
	TestSecretAccessKey = "testing"
)

var (
	// Endpoint is the moto server endpoint, configurable via MOTO_ENDPOINT env var.
	Endpoint = getEnvOrDefault("MOTO_ENDPOINT", DefaultEndpoint)

	// Region is the AWS region for tests, configurable via MOTO_REGION env var.
	Region = getEnvOrDefault("MOTO_REGION", DefaultRegion)

	// client caches the Batch client for reuse across tests.
	client     *batch.Client
	clientOnce sync.Once
	clientErr  error
)

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// Available checks if the moto server is reachable.
func Available() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, Endpoint+"/moto-api/", nil)
	if err != nil {
		return false
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	return resp.StatusCode == http.StatusOK
}

// SkipIfUnavailable skips the test if moto server is not available.
func SkipIfUnavailable(t *testing.T) {
	t.Helper()
	if !Available() {
		t.Skipf("moto server not available at %s (start with: moto_server -p 5555)", Endpoint)
	}
}

// Reset clears all moto state. Call this between tests for isolation.
func Reset(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, Endpoint+"/moto-api/reset", nil)
	if err != nil {
		return fmt.Errorf("create reset request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("reset request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("reset returned status %d", resp.StatusCode)
	}

	return nil
}

// ResetT resets moto state, failing the test on error.
func ResetT(t *testing.T, ctx context.Context) {
	t.Helper()
	if err := Reset(ctx); err != nil {
		t.Fatalf("failed to reset moto: %v", err)
	}
}

// ProviderConfig returns a provider configuration pointed at moto.
func ProviderConfig() batchprov.Config {
	return batchprov.Config{
		Region:          Region,
		Endpoint:        Endpoint,
		AccessKeyID:     TestAccessKeyID,
		SecretAccessKey: TestSecretAccessKey,
	}
}

// Client returns a shared Batch client configured for moto.
func Client() (*batch.Client, error) {
	clientOnce.Do(func() {
		ctx := context.Background()
		cfg, err := config.LoadDefaultConfig(ctx,
			config.WithRegion(Region),
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				TestAccessKeyID,
				TestSecretAccessKey,
				"",
			)),
		)
		if err != nil {
			clientErr = fmt.Errorf("load config: %w", err)
			return
		}

		client = batch.NewFromConfig(cfg, func(o *batch.Options) {
			o.BaseEndpoint = aws.String(Endpoint)
		})
	})

	return client, clientErr
}

// ClientT returns the Batch client, failing the test on error.
func ClientT(t *testing.T) *batch.Client {
	t.Helper()
	c, err := Client()
	if err != nil {
		t.Fatalf("failed to create Batch client: %v", err)
	}
	return c
}

// Queue identifies a job queue created for a test.
type Queue struct {
	Name string
	ARN  string
}

// uniqueName derives a resource name from the test name.
func uniqueName(t *testing.T, suffix string) string {
	name := strings.ToLower(t.Name())
	name = strings.NewReplacer("/", "-", "_", "-", " ", "-").Replace(name)
	// Batch names are limited to 128 characters.
	if len(name) > 80 {
		name = name[:80]
	}
	return fmt.Sprintf("%s-%s-%d", name, suffix, time.Now().UnixNano()%100000)
}

// CreateJobQueue creates an unmanaged compute environment and a job queue
// backed by it.
func CreateJobQueue(t *testing.T, ctx context.Context) Queue {
	t.Helper()

	c := ClientT(t)

	ce, err := c.CreateComputeEnvironment(ctx, &batch.CreateComputeEnvironmentInput{
		ComputeEnvironmentName: aws.String(uniqueName(t, "ce")),
		Type:                   types.CETypeUnmanaged,
		State:                  types.CEStateEnabled,
	})
	if err != nil {
		t.Fatalf("failed to create compute environment: %v", err)
	}

	name := uniqueName(t, "queue")
	q, err := c.CreateJobQueue(ctx, &batch.CreateJobQueueInput{
		JobQueueName: aws.String(name),
		Priority:     aws.Int32(1),
		State:        types.JQStateEnabled,
		ComputeEnvironmentOrder: []types.ComputeEnvironmentOrder{
			{ComputeEnvironment: ce.ComputeEnvironmentArn, Order: aws.Int32(1)},
		},
	})
	if err != nil {
		t.Fatalf("failed to create job queue %s: %v", name, err)
	}

	return Queue{Name: name, ARN: aws.ToString(q.JobQueueArn)}
}

// RegisterJobDefinition registers a small container job definition and
// returns its ARN.
func RegisterJobDefinition(t *testing.T, ctx context.Context) string {
	t.Helper()

	c := ClientT(t)

	out, err := c.RegisterJobDefinition(ctx, &batch.RegisterJobDefinitionInput{
		JobDefinitionName: aws.String(uniqueName(t, "def")),
		Type:              types.JobDefinitionTypeContainer,
		ContainerProperties: &types.ContainerProperties{
			Image:   aws.String("busybox:latest"),
			Command: []string{"echo", "hello"},
			ResourceRequirements: []types.ResourceRequirement{
				{Type: types.ResourceTypeVcpu, Value: aws.String("1")},
				{Type: types.ResourceTypeMemory, Value: aws.String("512")},
			},
		},
	})
	if err != nil {
		t.Fatalf("failed to register job definition: %v", err)
	}
	return aws.ToString(out.JobDefinitionArn)
}

// SubmitJob submits a job and returns its id.
func SubmitJob(t *testing.T, ctx context.Context, queue, definition, name string) string {
	t.Helper()

	c := ClientT(t)

	out, err := c.SubmitJob(ctx, &batch.SubmitJobInput{
		JobName:       aws.String(name),
		JobQueue:      aws.String(queue),
		JobDefinition: aws.String(definition),
	})
	if err != nil {
		t.Fatalf("failed to submit job %s: %v", name, err)
	}
	return aws.ToString(out.JobId)
}

// SubmitJobs submits one job per name and returns their ids in order.
func SubmitJobs(t *testing.T, ctx context.Context, queue, definition string, names []string) []string {
	t.Helper()

	ids := make([]string, len(names))
	for i, name := range names {
		ids[i] = SubmitJob(t, ctx, queue, definition, name)
	}
	return ids
}
