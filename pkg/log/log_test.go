package log

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, InfoLevel, ParseLevel("INFO"))
	assert.Equal(t, WarnLevel, ParseLevel("warn"))
	assert.Equal(t, ErrorLevel, ParseLevel("ERROR"))
	assert.Equal(t, OffLevel, ParseLevel("OFF"))
	assert.Equal(t, InfoLevel, ParseLevel("bogus"))
}

func TestInitJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: InfoLevel, JSONOutput: true, Output: &buf})

	Logger.Info().Str("k", "v").Msg("hello")
	out := buf.String()
	assert.Contains(t, out, `"k":"v"`)
	assert.Contains(t, out, "hello")
}

func TestOffLevelSilences(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: OffLevel, JSONOutput: true, Output: &buf})

	Logger.Error().Msg("should not appear")
	assert.Empty(t, buf.String())
}

func TestWithWorkerContext(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: DebugLevel, JSONOutput: true, Output: &buf})

	wl := WithWorker(7, "alice")
	wl.Info().Msg("op done")
	line := buf.String()
	assert.True(t, strings.Contains(line, `"worker_id":7`))
	assert.True(t, strings.Contains(line, `"user":"alice"`))
}
