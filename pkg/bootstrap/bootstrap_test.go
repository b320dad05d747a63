package bootstrap

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iamnithishraja/klinic-sub000/pkg/logger"
)

type closer struct {
	err    error
	closed bool
}

func (c *closer) Close() error {
	c.closed = true
	return c.err
}

func TestCloseQuietlyLogsFailures(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Output: &buf, Format: "json"})

	ok := &closer{}
	CloseQuietly(context.Background(), logg, "redis", ok)
	assert.True(t, ok.closed)
	assert.Empty(t, buf.String())

	CloseQuietly(context.Background(), logg, "pubsub", &closer{err: errors.New("still open")})
	assert.Contains(t, buf.String(), "failed to close pubsub")

	CloseQuietly(context.Background(), logg, "none", nil)
}

func TestCleanTreatsCancellationAsGraceful(t *testing.T) {
	assert.NoError(t, clean(nil))
	assert.NoError(t, clean(context.Canceled))
	assert.NoError(t, clean(fmt.Errorf("consume: %w", context.Canceled)))

	boom := errors.New("boom")
	assert.ErrorIs(t, clean(boom), boom)
	assert.ErrorIs(t, clean(context.DeadlineExceeded), context.DeadlineExceeded)
}
