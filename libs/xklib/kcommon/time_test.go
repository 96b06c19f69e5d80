package kcommon

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunWithTimeProvider(t *testing.T) {
	mock := NewMockTimeProvider().SetTimeMs(1000)
	RunWithTimeProvider(mock, func() {
		assert.Equal(t, int64(1000), GetWallTimeMs())
		mock.AddTimeMs(250)
		assert.Equal(t, int64(1250), GetMonoTimeMs())
	})
	assert.NotEqual(t, int64(1250), GetWallTimeMs())
}
