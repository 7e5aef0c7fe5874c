// Package mocks provides mock implementations of the client ports for tests.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for the
// port interfaces. The mocks are generated using go:generate directives and
// provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	storage := mocks.NewMockStateStorage(ctrl)
//	storage.EXPECT().Get(gomock.Any(), "jwtToken").Return("t1", true, nil)
package mocks

// Generate mock for StateStorage interface from internal/ports package.
// This creates MockStateStorage with methods for all StateStorage interface methods:
// Get, Set, Delete, Watch
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=state_storage_mock.go github.com/AI-Team-Dev/jobportal/internal/ports StateStorage

// Generate mock for Notifier interface from internal/ports package.
// This creates MockNotifier with methods for all Notifier interface methods:
// Notify
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=notifier_mock.go github.com/AI-Team-Dev/jobportal/internal/ports Notifier
