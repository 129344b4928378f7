package http

import (
	"context"

	"github.com/errwatch/issue-lifecycle-service/internal/service"
	"github.com/errwatch/issue-lifecycle-service/pkg/api"
	"github.com/stretchr/testify/mock"
)

type GroupServiceMock struct {
	mock.Mock
}

var _ service.GroupService = (*GroupServiceMock)(nil)

func (m *GroupServiceMock) Mutate(ctx context.Context, actor service.Actor, projectID int64, sel service.Selection, mut service.Mutation) (*api.MutateResponse, error) {
	args := m.Called(ctx, actor, projectID, sel, mut)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*api.MutateResponse), args.Error(1)
}

func (m *GroupServiceMock) Delete(ctx context.Context, actor service.Actor, projectID int64, sel service.Selection) ([]int64, error) {
	args := m.Called(ctx, actor, projectID, sel)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]int64), args.Error(1)
}
