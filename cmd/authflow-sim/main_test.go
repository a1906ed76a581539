package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/authflow/deeplink"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("REDIS_ADDR", "")
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestRunEveryScenarioOnMiniredis(t *testing.T) {
	out, err := execute(t, "run", "--flows", "12", "--concurrency", "4", "--log-level", "error")
	require.NoError(t, err, out)

	for _, name := range scenarioNames() {
		assert.Contains(t, out, name+" ", "missing stats for %s", name)
	}
	assert.Equal(t, len(scenarios), strings.Count(out, "flows=2 failures=0"))
	assert.Contains(t, out, "authflow_flow_succeeded_total")
}

func TestRunRejectsUnknownScenario(t *testing.T) {
	_, err := execute(t, "run", "--scenario", "carrier-pigeon")
	assert.ErrorContains(t, err, "unknown scenario")
}

func TestPercentile(t *testing.T) {
	samples := []time.Duration{10, 9, 8, 7, 6, 5, 4, 3, 2, 1}
	s := computeStats(time.Second, samples, 1)
	assert.Equal(t, 10, s.flows)
	assert.Equal(t, time.Duration(5), s.p50)
	assert.Equal(t, time.Duration(9), s.p95)
	assert.Equal(t, time.Duration(9), s.p99)
	assert.Equal(t, int64(1), s.failures)
	assert.Zero(t, percentile(nil, 50))
}

func TestDescribePayload(t *testing.T) {
	client := deeplink.ClientConfig{Scheme: "authflow"}

	got := describePayload("authflow://validate?code=123456&context=signup", client)
	assert.Contains(t, got, "route=validate_auth_code code=123456 persist=true")
	assert.Contains(t, got, "launch=")

	assert.Equal(t, "https://example.com: unrecognized", describePayload("https://example.com", client))
}

func TestParseCommand(t *testing.T) {
	out, err := execute(t, "parse", "authflow://login")
	require.NoError(t, err)
	assert.Equal(t, "authflow://login: route=login\n", out)
}
