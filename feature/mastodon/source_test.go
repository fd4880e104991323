package mastodon

import (
	"context"
	"errors"
	"testing"

	"timeline-cache/core/model"
	"timeline-cache/core/platform/mastodon"
	"timeline-cache/feature/timeline"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockService struct {
	mock.Mock
}

func (m *mockService) HomeTimeline(ctx context.Context, q mastodon.PageQuery) ([]mastodon.Status, error) {
	args := m.Called(ctx, q)
	return args.Get(0).([]mastodon.Status), args.Error(1)
}

func (m *mockService) ListTimeline(ctx context.Context, listID string, q mastodon.PageQuery) ([]mastodon.Status, error) {
	args := m.Called(ctx, listID, q)
	return args.Get(0).([]mastodon.Status), args.Error(1)
}

func (m *mockService) AccountStatuses(ctx context.Context, accountID string, q mastodon.PageQuery) ([]mastodon.Status, error) {
	args := m.Called(ctx, accountID, q)
	return args.Get(0).([]mastodon.Status), args.Error(1)
}

func (m *mockService) Notifications(ctx context.Context, types []string, q mastodon.PageQuery) ([]mastodon.Notification, error) {
	args := m.Called(ctx, types, q)
	return args.Get(0).([]mastodon.Notification), args.Error(1)
}

func (m *mockService) Status(ctx context.Context, id string) (*mastodon.Status, error) {
	args := m.Called(ctx, id)
	st, _ := args.Get(0).(*mastodon.Status)
	return st, args.Error(1)
}

func (m *mockService) StatusContext(ctx context.Context, id string) (*mastodon.Context, error) {
	args := m.Called(ctx, id)
	c, _ := args.Get(0).(*mastodon.Context)
	return c, args.Error(1)
}

func cached(id string) *model.StatusRecord {
	st := status(id, account("u1", "u1"), epoch)
	return &model.StatusRecord{StatusKey: model.NewKey(id, instance), Content: model.MastodonStatus{Status: &st}}
}

func TestHomeSource_Cursors(t *testing.T) {
	svc := new(mockService)
	src := NewHomeSource(svc, acc1)
	assert.Equal(t, model.BucketRef{Account: acc1, Name: model.BucketHome}, src.Bucket())
	assert.Equal(t, timeline.RefreshMerge, src.RefreshMode())

	page := []mastodon.Status{status("5", account("u1", "u1"), epoch)}
	svc.On("HomeTimeline", mock.Anything, mastodon.PageQuery{Limit: 20, SinceID: "9"}).Return(page, nil).Once()
	svc.On("HomeTimeline", mock.Anything, mastodon.PageQuery{Limit: 20, MinID: "9"}).Return([]mastodon.Status{}, nil).Once()
	svc.On("HomeTimeline", mock.Anything, mastodon.PageQuery{Limit: 20, MaxID: "1"}).Return(page, nil).Once()

	req := timeline.Request{PageSize: 20, FirstStatus: cached("9"), LastStatus: cached("1")}
	for _, dir := range []timeline.Direction{timeline.Refresh, timeline.Prepend, timeline.Append} {
		req.Direction = dir
		resp, err := src.Load(context.Background(), req)
		require.NoError(t, err, dir.String())
		assert.False(t, resp.EndOfStream)
	}
	svc.AssertExpectations(t)
}

func TestUserSource_RefreshIgnoresCursor(t *testing.T) {
	svc := new(mockService)
	user := model.NewKey("u1", instance)
	src := NewUserSource(svc, acc1, user)
	assert.Equal(t, timeline.RefreshReplace, src.RefreshMode())

	svc.On("AccountStatuses", mock.Anything, "u1", mastodon.PageQuery{Limit: 10}).Return([]mastodon.Status{}, nil)
	resp, err := src.Load(context.Background(), timeline.Request{Direction: timeline.Refresh, PageSize: 10, FirstStatus: cached("9")})
	require.NoError(t, err)
	assert.True(t, resp.Batch.IsEmpty())
}

func TestNotificationSource_Mentions(t *testing.T) {
	svc := new(mockService)
	src := NewNotificationSource(svc, acc1, "mentions")
	assert.Equal(t, model.NotificationBucket("mentions"), src.Bucket().Name)

	svc.On("Notifications", mock.Anything, []string{mastodon.NotificationMention}, mastodon.PageQuery{Limit: 5}).
		Return([]mastodon.Notification{}, errors.New("boom"))
	_, err := src.Load(context.Background(), timeline.Request{Direction: timeline.Refresh, PageSize: 5})
	assert.EqualError(t, err, "boom")
}

func TestContextSource(t *testing.T) {
	svc := new(mockService)
	focal := model.NewKey("F", instance)
	src := NewContextSource(svc, acc1, focal)
	assert.Equal(t, focal, src.Seed())

	resp, err := src.Load(context.Background(), timeline.Request{Direction: timeline.Append})
	require.NoError(t, err)
	assert.True(t, resp.EndOfStream)

	f := status("F", account("u1", "u1"), epoch)
	a := status("A", account("u1", "u1"), epoch)
	svc.On("Status", mock.Anything, "F").Return(&f, nil)
	svc.On("StatusContext", mock.Anything, "F").Return(&mastodon.Context{Ancestors: []mastodon.Status{a}}, nil)

	resp, err = src.Load(context.Background(), timeline.Request{Direction: timeline.Refresh})
	require.NoError(t, err)
	require.Len(t, resp.Batch.Entries, 2)
	assert.Equal(t, "A", resp.Batch.Entries[0].StatusKey.ID)
	assert.EqualValues(t, 0, resp.Batch.Entries[0].SortID)
	assert.EqualValues(t, -1, resp.Batch.Entries[1].SortID)
}

func TestStatusOnlySource_NotFound(t *testing.T) {
	svc := new(mockService)
	src := NewStatusOnlySource(svc, acc1, model.NewKey("404", instance))
	svc.On("Status", mock.Anything, "404").Return(nil, nil)

	_, err := src.Load(context.Background(), timeline.Request{Direction: timeline.Refresh})
	assert.Error(t, err)
}
