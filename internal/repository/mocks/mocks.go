package mocks

import (
	"context"

	"github.com/rpggio/annotask/internal/domain/activity"
	"github.com/rpggio/annotask/internal/domain/assignment"
	"github.com/stretchr/testify/mock"
)

// ActivityRepository is a mock for activity.Repository.
type ActivityRepository struct {
	mock.Mock
}

func (m *ActivityRepository) Log(ctx context.Context, entry *activity.ActivityEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *ActivityRepository) List(ctx context.Context, opts activity.ListActivityOptions) ([]activity.ActivityEntry, error) {
	args := m.Called(ctx, opts)
	if list, ok := args.Get(0).([]activity.ActivityEntry); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

// Settings is a mock for assignment.Settings.
type Settings struct {
	mock.Mock
}

func (m *Settings) BatchSize(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *Settings) SetBatchSize(ctx context.Context, n int) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

// Store is a mock for assignment.Store. Transactions run fn against Tx when
// the expectation returns a nil error.
type Store struct {
	mock.Mock
	Tx assignment.Tx
}

func (m *Store) Update(ctx context.Context, fn func(tx assignment.Tx) error) error {
	args := m.Called(ctx)
	if err := args.Error(0); err != nil {
		return err
	}
	return fn(m.Tx)
}

func (m *Store) View(ctx context.Context, fn func(tx assignment.Tx) error) error {
	args := m.Called(ctx)
	if err := args.Error(0); err != nil {
		return err
	}
	return fn(m.Tx)
}

// ActivityLogger is a mock for assignment.ActivityLogger.
type ActivityLogger struct {
	mock.Mock
}

func (m *ActivityLogger) LogActivity(ctx context.Context, entry *activity.ActivityEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}
