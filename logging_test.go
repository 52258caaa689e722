package voxmesh

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultLogger_LevelsAndPrefix(t *testing.T) {
	var out, errOut bytes.Buffer
	l := NewLoggerTo("voxmesh", false, &out, &errOut)

	l.Debugf("hidden %d", 1)
	assert.Empty(t, out.String())

	l.SetDebug(true)
	assert.True(t, l.DebugEnabled())
	l.Debugf("frame %d", 7)
	l.Infof("loaded %s", "model.vox")
	l.Warnf("slow")
	l.Errorf("boom")

	assert.Contains(t, out.String(), "[voxmesh] DEBUG: frame 7")
	assert.Contains(t, out.String(), "[voxmesh] INFO: loaded model.vox")
	assert.Contains(t, errOut.String(), "[voxmesh] WARN: slow")
	assert.Contains(t, errOut.String(), "[voxmesh] ERROR: boom")
	assert.NotContains(t, out.String(), "boom")
}

func TestDefaultLogger_NoPrefix(t *testing.T) {
	var out bytes.Buffer
	l := NewLoggerTo("", false, &out, &out)
	l.Infof("hello")
	assert.Contains(t, out.String(), "INFO: hello")
	assert.NotContains(t, out.String(), "[")
}

func TestLoggerOrNop(t *testing.T) {
	l := LoggerOrNop(nil)
	assert.NotNil(t, l)
	assert.False(t, l.DebugEnabled())
	l.Errorf("ignored")

	d := NewDefaultLogger("x", true)
	assert.Same(t, d, LoggerOrNop(d))
}
