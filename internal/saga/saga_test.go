package saga

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRollback_ReverseOrderContinuesPastFailures(t *testing.T) {
	s := New(nil)
	var order []string
	s.Push("first", func(context.Context) error { order = append(order, "first"); return nil })
	s.Push("second", func(context.Context) error { order = append(order, "second"); return errors.New("boom") })
	s.Push("third", func(context.Context) error { order = append(order, "third"); return nil })

	err := s.Rollback(context.Background())
	assert.EqualError(t, err, "boom")
	assert.Equal(t, []string{"third", "second", "first"}, order)
	assert.Zero(t, s.Len())
	assert.NoError(t, s.Rollback(context.Background()))
}

func TestRollback_IgnoresCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := New(nil)
	var sawErr error
	s.Push("undo", func(ctx context.Context) error { sawErr = ctx.Err(); return nil })
	assert.NoError(t, s.Rollback(ctx))
	assert.NoError(t, sawErr)
}
