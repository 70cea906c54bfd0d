package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

// MockDetectionCache is a mock implementation of port.DetectionCache.
type MockDetectionCache struct {
	mock.Mock
}

func (m *MockDetectionCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).([]byte), args.Bool(1), args.Error(2)
}

func (m *MockDetectionCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	args := m.Called(ctx, key, value, ttl)
	return args.Error(0)
}
