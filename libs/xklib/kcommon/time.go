package kcommon

import (
	"time"
)

var currentTimeProvider TimeProvider = NewSystemTimeProvider()

// TimeProvider: all "now" readings go through here so tests can pin the clock.
type TimeProvider interface {
	GetWallTimeMs() int64
	GetMonoTimeMs() int64
}

// RunWithTimeProvider swaps the provider for the duration of fn. Not goroutine safe, tests only.
func RunWithTimeProvider(tp TimeProvider, fn func()) {
	old := currentTimeProvider
	currentTimeProvider = tp
	defer func() {
		currentTimeProvider = old
	}()
	fn()
}

func GetWallTimeMs() int64 {
	return currentTimeProvider.GetWallTimeMs()
}

func GetMonoTimeMs() int64 {
	return currentTimeProvider.GetMonoTimeMs()
}

type SystemTimeProvider struct {
	startTime time.Time
}

func NewSystemTimeProvider() *SystemTimeProvider {
	return &SystemTimeProvider{startTime: time.Now()}
}

func (provider *SystemTimeProvider) GetWallTimeMs() int64 {
	return time.Now().UnixMilli()
}

// GetMonoTimeMs: ms since process start, immune to wall clock jumps.
func (provider *SystemTimeProvider) GetMonoTimeMs() int64 {
	return time.Since(provider.startTime).Milliseconds()
}

// MockTimeProvider: time only moves when the test says so.
type MockTimeProvider struct {
	WallTime int64
	MonoTime int64
}

func NewMockTimeProvider() *MockTimeProvider {
	return &MockTimeProvider{}
}

func (provider *MockTimeProvider) GetWallTimeMs() int64 {
	return provider.WallTime
}

func (provider *MockTimeProvider) GetMonoTimeMs() int64 {
	return provider.MonoTime
}

func (provider *MockTimeProvider) SetTimeMs(timeMs int64) *MockTimeProvider {
	provider.MonoTime = timeMs
	provider.WallTime = timeMs
	return provider
}

func (provider *MockTimeProvider) AddTimeMs(diffMs int64) *MockTimeProvider {
	provider.MonoTime += diffMs
	provider.WallTime += diffMs
	return provider
}
