package report

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/osbench/pkg/bench"
	"github.com/cuemby/osbench/pkg/types"
)

func testConfig() *types.Config {
	return &types.Config{
		Endpoint:          "obs.example.com",
		Protocol:          "https",
		KeepAlive:         true,
		TestCase:          types.CasePut,
		ThreadsPerUser:    4,
		Threads:           8,
		RequestsPerThread: 100,
		ObjectSizeMin:     4096,
		ObjectSizeMax:     4096,
		PartSize:          5 * 1024 * 1024,
		UserList: []types.UserCredential{
			{Username: "alice"}, {Username: "bob"},
		},
	}
}

func TestRenderCounts(t *testing.T) {
	agg := bench.Snapshot{
		Success:        790,
		Fail404:        8,
		FailValidation: 2,
		SuccessBytes:   790 * 4096,
		TotalLatencyUs: 800 * 2000,
		MinLatencyUs:   500,
		MaxLatencyUs:   90000,
	}

	out := Render(testConfig(), agg, 10*time.Second)

	assert.Contains(t, out, "Test Case        : PUT (201)")
	assert.Contains(t, out, "Total Requests   : 800")
	assert.Contains(t, out, "  Success        : 790")
	assert.Contains(t, out, "  Fail 404       : 8")
	assert.Contains(t, out, "  Fail validation: 2")
	assert.Contains(t, out, "Success Rate     : 98.75 %")
	assert.Contains(t, out, "Cumulative TPS   : 80.00")
	assert.Contains(t, out, "min 0.50 / avg 2.00 / max 90.00")
}

func TestRenderEmptyRun(t *testing.T) {
	agg := bench.Snapshot{MinLatencyUs: math.MaxInt64}
	out := Render(testConfig(), agg, time.Second)

	assert.Contains(t, out, "Total Requests   : 0")
	assert.Contains(t, out, "Success Rate     : 0.00 %")
	assert.Contains(t, out, "min 0.00 / avg 0.00 / max 0.00")
}

func TestRenderMixedCase(t *testing.T) {
	cfg := testConfig()
	cfg.TestCase = types.CaseMix
	cfg.UseMixMode = true
	cfg.MixOps = []int{types.CasePut, types.CaseGet, types.CaseDelete}
	cfg.MixLoopCount = 2

	out := Render(cfg, bench.Snapshot{MinLatencyUs: math.MaxInt64}, time.Second)
	assert.Contains(t, out, "MIX [PUT,GET,DELETE] x 2 loops")
}

func TestWriteBrief(t *testing.T) {
	path := filepath.Join(t.TempDir(), "brief.txt")
	require.NoError(t, WriteBrief(path, testConfig(), bench.Snapshot{MinLatencyUs: math.MaxInt64}, time.Second))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Object Storage Benchmark Report")
}
