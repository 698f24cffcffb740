package log

import (
	"bytes"
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"moff.io/wemove/pkg/log/meta"
)

func TestContextLoggingPrefixesMetadata(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)

	ctx := meta.Begin(context.Background())
	meta.WithValue(ctx, "session", "s1")
	meta.WithValue(ctx, "action", "log")
	Infoc(ctx, "estimated gas %d", 21000)

	assert.Contains(t, buf.String(), "[action=log] [session=s1] estimated gas 21000")
}

func TestLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)

	SetLevel(1)
	buf.Reset()
	Debugf("hidden %v", 1)
	assert.Empty(t, buf.String())
	SetLevel(0)
	buf.Reset()
	Debugf("shown %v", 1)
	assert.Contains(t, buf.String(), "shown 1")
	SetLevel(1)
}
