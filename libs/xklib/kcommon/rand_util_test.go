package kcommon

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewSeededRand_Deterministic(t *testing.T) {
	ctx := context.Background()
	r1, s1 := NewSeededRand(ctx, 42)
	r2, s2 := NewSeededRand(ctx, 42)
	assert.Equal(t, int64(42), s1)
	assert.Equal(t, s1, s2)
	for i := 0; i < 20; i++ {
		assert.Equal(t, r1.Intn(1000), r2.Intn(1000))
	}
}

func TestNewSeededRand_ZeroPicksSeed(t *testing.T) {
	_, seed := NewSeededRand(context.Background(), 0)
	assert.NotEqual(t, int64(0), seed)
}

func TestRandomString(t *testing.T) {
	s := RandomString(context.Background(), 12)
	assert.Len(t, s, 12)
	v := RandomInt(context.Background(), 3)
	assert.True(t, v >= 0 && v < 3)
}
