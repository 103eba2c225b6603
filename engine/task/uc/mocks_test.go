package uc

import (
	"context"

	"github.com/dallosh/analysis/engine/core"
	"github.com/dallosh/analysis/engine/settings"
	"github.com/dallosh/analysis/engine/task"
	"github.com/stretchr/testify/mock"
)

// MockRepository implements task.Repository for testing
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, t *task.Task) error {
	return m.Called(ctx, t).Error(0)
}

func (m *MockRepository) Get(ctx context.Context, uid core.ID) (*task.Task, error) {
	args := m.Called(ctx, uid)
	t, _ := args.Get(0).(*task.Task)
	return t, args.Error(1)
}

func (m *MockRepository) GetByFileID(ctx context.Context, fileID string) (*task.Task, error) {
	args := m.Called(ctx, fileID)
	t, _ := args.Get(0).(*task.Task)
	return t, args.Error(1)
}

func (m *MockRepository) List(ctx context.Context, opts task.ListOptions) ([]*task.Task, int64, error) {
	args := m.Called(ctx, opts)
	list, _ := args.Get(0).([]*task.Task)
	total, _ := args.Get(1).(int64)
	return list, total, args.Error(2)
}

func (m *MockRepository) Update(ctx context.Context, uid core.ID, patch task.Patch, actor string) (*task.Task, error) {
	args := m.Called(ctx, uid, patch, actor)
	t, _ := args.Get(0).(*task.Task)
	return t, args.Error(1)
}

func (m *MockRepository) Delete(ctx context.Context, uid core.ID) error {
	return m.Called(ctx, uid).Error(0)
}

// MockSettings implements settings.Reader for testing
type MockSettings struct {
	mock.Mock
}

func (m *MockSettings) Get(ctx context.Context) (*settings.Settings, error) {
	args := m.Called(ctx)
	s, _ := args.Get(0).(*settings.Settings)
	return s, args.Error(1)
}

// MockPublisher implements Publisher for testing
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, routingKey string, payload any) error {
	return m.Called(ctx, routingKey, payload).Error(0)
}

// MockFileStore implements FileStore for testing
type MockFileStore struct {
	mock.Mock
}

func (m *MockFileStore) DeleteDerived(ctx context.Context, path string) error {
	return m.Called(ctx, path).Error(0)
}

func (m *MockFileStore) DeleteDataset(ctx context.Context, fileID, path string) error {
	return m.Called(ctx, fileID, path).Error(0)
}
