package context_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	context_ "github.com/mkrupp/studentportal/internal/infra/context"
)

func TestRequestValues(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	_, ok := context_.TraceIDFromContext(ctx)
	assert.False(t, ok)

	_, ok = context_.AccountIDFromContext(ctx)
	assert.False(t, ok)

	ctx = context_.WithTraceID(ctx, "trace-1")
	ctx = context_.WithAccountID(ctx, "account-1")

	traceID, ok := context_.TraceIDFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "trace-1", traceID)

	accountID, ok := context_.AccountIDFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "account-1", accountID)
}
