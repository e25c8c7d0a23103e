package log

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevels(t *testing.T) {
	var buf bytes.Buffer
	SetSink(&buf)
	defer func() {
		SetSink(os.Stdout)
		SetLevel(Notice)
	}()

	logger := New("test")

	SetLevel(Notice)
	logger.Debug("hidden debug")
	logger.Noticef("visible %d", 1)
	assert.False(t, strings.Contains(buf.String(), "hidden debug"))
	assert.True(t, strings.Contains(buf.String(), "visible 1"))
	assert.True(t, strings.Contains(buf.String(), "[test]"))
	assert.False(t, Enabled(Info))

	buf.Reset()
	SetLevel(Debug)
	logger.Debugf("frame %d", 3)
	assert.True(t, strings.Contains(buf.String(), "frame 3"))
	assert.True(t, Enabled(Debug))
}
