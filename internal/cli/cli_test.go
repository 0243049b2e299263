package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jzx17/roundrobin/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer

	root := NewRootCmd()
	root.SetArgs(args)
	root.SetOut(&stdout)
	root.SetErr(&stderr)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := root.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rrsched.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRun_PositionalArgs(t *testing.T) {
	stdout, stderr, err := execute(t, "run", "3", "2", "1", "2", "1", "--quantum", "5ms", "--body", "block")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "The total wait time is "))
	assert.True(t, strings.HasPrefix(lines[1], "The total run time is "))
	assert.True(t, strings.HasPrefix(lines[2], "The average wait time is "))
	assert.True(t, strings.HasPrefix(lines[3], "The average run time is "))
	for _, line := range lines {
		assert.True(t, strings.HasSuffix(line, " seconds."), line)
	}

	assert.Contains(t, stderr, "resuming worker")
	assert.Contains(t, stderr, "run_id=")
}

func TestRun_ConfigFileWithOverrides(t *testing.T) {
	path := writeConfig(t, `
queue_capacity: 1
quanta: [1, 1]
quantum: 1h
body: sleep
sleep_interval: 1ms
log_format: json
`)

	stdout, stderr, err := execute(t, "run", "--config", path, "--quantum", "5ms", "--log-level", "debug")
	require.NoError(t, err)
	assert.Contains(t, stdout, "The average run time is")
	assert.Contains(t, stderr, `"msg":"resuming worker"`)
	assert.Contains(t, stderr, `"level":"DEBUG"`)
}

func TestRun_InvalidArgs(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "no workers", args: []string{"run"}},
		{name: "quanta count mismatch", args: []string{"run", "2", "1", "1"}},
		{name: "non-numeric", args: []string{"run", "x", "1", "1"}},
		{name: "zero quantum", args: []string{"run", "1", "1", "1", "--quantum", "0s"}},
		{name: "unknown policy", args: []string{"run", "1", "1", "1", "--error-policy", "retry"}},
		{name: "unknown body", args: []string{"run", "1", "1", "1", "--body", "io"}},
		{name: "negative retries", args: []string{"run", "1", "1", "1", "--retry-attempts", "-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, _, err := execute(t, tt.args...)
			assert.ErrorIs(t, err, types.ErrInvalidConfig)
			assert.Empty(t, stdout)
		})
	}
}

func TestRun_WithRetries(t *testing.T) {
	stdout, _, err := execute(t, "run", "2", "2", "1", "1",
		"--quantum", "5ms", "--body", "sleep", "--sleep-interval", "1ms",
		"--retry-attempts", "3", "--retry-delay", "1ms")
	require.NoError(t, err)
	assert.Contains(t, stdout, "The average wait time is")
}

func TestConfigCmd_RetryFlags(t *testing.T) {
	stdout, _, err := execute(t, "config", "1", "1", "1", "--retry-attempts", "4", "--retry-delay", "250ms")
	require.NoError(t, err)
	assert.Contains(t, stdout, "retry_attempts: 4")
	assert.Contains(t, stdout, "retry_delay: 250ms")
}

func TestRun_MissingConfigFile(t *testing.T) {
	_, _, err := execute(t, "run", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestRun_MetricsEndpoint(t *testing.T) {
	stdout, stderr, err := execute(t, "run", "1", "1", "2",
		"--quantum", "5ms", "--body", "block", "--metrics-addr", "127.0.0.1:0")
	require.NoError(t, err)
	assert.Contains(t, stdout, "The total run time is")
	assert.Contains(t, stderr, "metrics endpoint listening")
}

func TestRun_MetricsEndpointBindFailure(t *testing.T) {
	_, _, err := execute(t, "run", "1", "1", "1", "--quantum", "1h", "--metrics-addr", "256.0.0.1:bad")
	assert.Error(t, err)
}

func TestConfigCmd(t *testing.T) {
	path := writeConfig(t, "queue_capacity: 2\nquanta: [3, 1]\n")

	stdout, _, err := execute(t, "config", "--config", path, "--error-policy", "fail-fast")
	require.NoError(t, err)
	assert.Contains(t, stdout, "queue_capacity: 2")
	assert.Contains(t, stdout, "error_policy: fail-fast")
	assert.Contains(t, stdout, "body: spin")
}

func TestConfigCmd_Debug(t *testing.T) {
	stdout, _, err := execute(t, "config", "1", "1", "1", "--debug")
	require.NoError(t, err)
	assert.Contains(t, stdout, "log_level: debug")
}

func TestPrintReport(t *testing.T) {
	var buf bytes.Buffer
	printReport(&buf, types.Report{
		Workers:         2,
		TotalWaitTime:   4 * time.Second,
		TotalRunTime:    3 * time.Second,
		AverageWaitTime: 2 * time.Second,
		AverageRunTime:  1500 * time.Millisecond,
	})

	expected := "The total wait time is 4.000000 seconds.\n" +
		"The total run time is 3.000000 seconds.\n" +
		"The average wait time is 2.000000 seconds.\n" +
		"The average run time is 1.500000 seconds.\n"
	assert.Equal(t, expected, buf.String())
}
