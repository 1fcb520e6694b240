package domain

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaginate(t *testing.T) {
	all := []int{1, 2, 3, 4, 5}

	res := Paginate(all, ListFilter{Limit: 2, Offset: 1})
	assert.Equal(t, []int{2, 3}, res.Items)
	assert.Equal(t, int64(5), res.TotalCount)

	res = Paginate(all, ListFilter{Limit: 10, Offset: 4})
	assert.Equal(t, []int{5}, res.Items)

	res = Paginate(all, ListFilter{Offset: 9})
	assert.Empty(t, res.Items)
	assert.Equal(t, DefaultLimit, res.Limit)
}

func TestHookRegistry_StopsAtFirstError(t *testing.T) {
	reg := NewHookRegistry[*string]()
	var calls []string
	reg.OnBeforeCreate(func(ctx context.Context, s *string) error {
		calls = append(calls, "first")
		*s = "normalized"
		return nil
	})
	reg.OnBeforeCreate(func(ctx context.Context, s *string) error {
		calls = append(calls, "second")
		return errors.New("rejected")
	})
	reg.OnBeforeCreate(func(ctx context.Context, s *string) error {
		calls = append(calls, "third")
		return nil
	})

	v := "raw"
	err := reg.Run(context.Background(), BeforeCreate, &v)
	require.EqualError(t, err, "rejected")
	assert.Equal(t, []string{"first", "second"}, calls)
	assert.Equal(t, "normalized", v)
	assert.NoError(t, reg.Run(context.Background(), AfterCreate, &v))
}
