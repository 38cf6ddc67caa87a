package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJobsCLIGuards(t *testing.T) {
	_, err := NewJobsCLI("")
	require.Error(t, err)

	var c *JobsCLI
	_, err = c.TriggerIntegrityScan(context.Background(), 7)
	require.Error(t, err)
	_, err = c.InspectQueue(context.Background())
	require.Error(t, err)
	_, err = c.ListArchived(context.Background(), 0)
	require.Error(t, err)

	_, err = (&JobsCLI{}).TriggerVerify(context.Background(), 1)
	require.Error(t, err)
}

func TestRunJobsRejectsBadInput(t *testing.T) {
	var out bytes.Buffer
	ctx := context.Background()
	require.Error(t, RunJobs(ctx, "127.0.0.1:0", nil, &out))
	require.ErrorContains(t, RunJobs(ctx, "127.0.0.1:0", []string{"explode"}, &out), "unknown command")
	require.ErrorContains(t, RunJobs(ctx, "127.0.0.1:0", []string{"verify", "abc"}, &out), "invalid grn id")
	require.Error(t, RunJobs(ctx, "127.0.0.1:0", []string{"verify"}, &out))
}
