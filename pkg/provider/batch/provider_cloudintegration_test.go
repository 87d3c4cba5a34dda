//go:build cloudintegration

package batch_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/gosheets/pkg/provider"
	"github.com/3leaps/gosheets/pkg/provider/batch"
	"github.com/3leaps/gosheets/test/cloudtest"
)

func TestProvider_CloudIntegration(t *testing.T) {
	cloudtest.SkipIfUnavailable(t)
	ctx := context.Background()
	cloudtest.ResetT(t, ctx)

	queue := cloudtest.CreateJobQueue(t, ctx)
	def := cloudtest.RegisterJobDefinition(t, ctx)
	id := cloudtest.SubmitJob(t, ctx, queue.Name, def, "integration-job")

	p, err := batch.New(ctx, cloudtest.ProviderConfig())
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	t.Run("lists queues", func(t *testing.T) {
		page, err := p.ListQueues(ctx, provider.ListOptions{})
		require.NoError(t, err)
		assert.Contains(t, page.Queues, queue.Name)
	})

	t.Run("describes submitted job", func(t *testing.T) {
		records, err := p.DescribeJobs(ctx, []string{id})
		require.NoError(t, err)
		require.Len(t, records, 1)

		rec := records[0]
		assert.Equal(t, id, rec.JobID)
		assert.Equal(t, "integration-job", rec.JobName)
		assert.Contains(t, rec.JobQueue, queue.Name)
		assert.NotEmpty(t, rec.Status)
		assert.NotNil(t, rec.CreatedAt)
	})

	t.Run("describe with no ids", func(t *testing.T) {
		records, err := p.DescribeJobs(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, records)
	})
}
