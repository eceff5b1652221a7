package supervisor

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/osbench/pkg/bench"
	"github.com/cuemby/osbench/pkg/log"
	"github.com/cuemby/osbench/pkg/obs/memobs"
	"github.com/cuemby/osbench/pkg/types"
)

func TestMain(m *testing.M) {
	log.Init(log.Config{Level: log.OffLevel})
	os.Exit(m.Run())
}

func testConfig() *types.Config {
	return &types.Config{
		Endpoint:             "memory",
		Protocol:             "http",
		Users:                2,
		ThreadsPerUser:       2,
		Threads:              4,
		RequestsPerThread:    5,
		TestCase:             types.CasePut,
		PartSize:             5 * 1024 * 1024,
		ObjectSizeMin:        4096,
		ObjectSizeMax:        4096,
		EnableDataValidation: true,
		UserList: []types.UserCredential{
			{Username: "alice", AK: "AKA", SK: "ska", OriginalAK: "AKA"},
			{Username: "bob", AK: "AKB", SK: "skb", OriginalAK: "AKB"},
		},
	}
}

func TestRunEndToEnd(t *testing.T) {
	cfg := testConfig()
	cfg.EnableDetailLog = true
	dir := t.TempDir()

	sup := NewWithClient(cfg, memobs.New(), dir)
	require.NoError(t, sup.Run(context.Background()))

	agg := aggregateOf(sup)
	assert.Equal(t, int64(20), agg.Success)
	assert.Equal(t, int64(20*4096), agg.SuccessBytes)
	assert.Equal(t, int64(0), agg.FailValidation)

	brief, err := os.ReadFile(filepath.Join(dir, "brief.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(brief), "Total Requests   : 20")

	realtime, err := os.ReadFile(filepath.Join(dir, "realtime.txt"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(realtime), "RunTime(s),"))

	// One detail CSV per worker.
	for id := 0; id < 4; id++ {
		_, err := os.Stat(filepath.Join(dir, "detail_"+strconv.Itoa(id)+"_part0.csv"))
		assert.NoError(t, err, "worker %d detail file", id)
	}
}

func TestBuildWorkersBucketBinding(t *testing.T) {
	cfg := testConfig()
	cfg.BucketNamePrefix = "bench"

	sup := NewWithClient(cfg, memobs.New(), t.TempDir())
	workers, err := sup.buildWorkers()
	require.NoError(t, err)
	require.Len(t, workers, 4)

	assert.Equal(t, "aka.bench", workers[0].Bucket)
	assert.Equal(t, "aka.bench", workers[1].Bucket)
	assert.Equal(t, "akb.bench", workers[2].Bucket)
	assert.Equal(t, 3, workers[3].ID)
}

func TestRunShutdownFlagStopsWorkers(t *testing.T) {
	cfg := testConfig()
	cfg.RequestsPerThread = 1 << 40

	sup := NewWithClient(cfg, memobs.New(), t.TempDir())

	done := make(chan error, 1)
	go func() { done <- sup.Run(context.Background()) }()

	time.Sleep(100 * time.Millisecond)
	sup.Shutdown()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop after shutdown")
	}
	assert.Greater(t, aggregateOf(sup).Total(), int64(0))
}

func TestRunMaterializesUploadFile(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig()
	cfg.TestCase = types.CaseResumable
	cfg.RequestsPerThread = 1
	cfg.UploadFilePath = filepath.Join(dir, "source.bin")

	sup := NewWithClient(cfg, memobs.New(), dir)
	require.NoError(t, sup.Run(context.Background()))

	st, err := os.Stat(cfg.UploadFilePath)
	require.NoError(t, err)
	assert.Equal(t, int64(4096), st.Size())
	assert.Equal(t, int64(4), aggregateOf(sup).Success)
}

func TestMockEndpointSelectsMemoryClient(t *testing.T) {
	cfg := testConfig()
	cfg.Endpoint = "mock://"

	sup := NewWithClient(cfg, nil, t.TempDir())
	require.NoError(t, sup.buildClient())

	mc, ok := sup.client.(*memobs.Client)
	require.True(t, ok)
	assert.True(t, mc.ServeVirtual)
}

func aggregateOf(s *Supervisor) bench.Snapshot {
	return bench.Aggregate(s.workers)
}
