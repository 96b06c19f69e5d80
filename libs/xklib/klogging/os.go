package klogging

import "os"

var currentOsProvider OsProvider = &SystemOsProvider{}

// OsProvider lets tests intercept the os.Exit triggered by Fatal level logs.
type OsProvider interface {
	Exit(code int)
}

func OsExit(code int) {
	currentOsProvider.Exit(code)
}

type SystemOsProvider struct{}

func (provider *SystemOsProvider) Exit(code int) {
	os.Exit(code)
}

type MockOsProvider struct {
	ExitCb func(code int)
}

func NewMockOsProvider() *MockOsProvider {
	return &MockOsProvider{}
}

func (provider *MockOsProvider) SetAsDefault() *MockOsProvider {
	currentOsProvider = provider
	return provider
}

func (provider *MockOsProvider) Exit(code int) {
	if provider.ExitCb != nil {
		provider.ExitCb(code)
	}
}
