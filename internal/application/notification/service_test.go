package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/abytech-hub/notification-core/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockNotificationStore struct{ mock.Mock }

func (m *mockNotificationStore) Put(ctx context.Context, n *domain.Notification) error {
	return m.Called(ctx, n).Error(0)
}
func (m *mockNotificationStore) Get(ctx context.Context, notificationID string) (*domain.Notification, error) {
	args := m.Called(ctx, notificationID)
	if n, _ := args.Get(0).(*domain.Notification); n != nil {
		return n, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockNotificationStore) ListForRecipient(ctx context.Context, rc domain.Recipient, q domain.NotificationQuery) ([]domain.Notification, int, error) {
	args := m.Called(ctx, rc, q)
	return args.Get(0).([]domain.Notification), args.Int(1), args.Error(2)
}
func (m *mockNotificationStore) MarkRead(ctx context.Context, notificationID string, rc domain.Recipient) (bool, error) {
	args := m.Called(ctx, notificationID, rc)
	return args.Bool(0), args.Error(1)
}
func (m *mockNotificationStore) ListUnreadIDs(ctx context.Context, rc domain.Recipient) ([]string, error) {
	args := m.Called(ctx, rc)
	return args.Get(0).([]string), args.Error(1)
}
func (m *mockNotificationStore) CountUnread(ctx context.Context, rc domain.Recipient) (int, error) {
	args := m.Called(ctx, rc)
	return args.Int(0), args.Error(1)
}

type mockPusher struct{ mock.Mock }

func (m *mockPusher) SendToUser(ctx context.Context, r domain.Recipient, p domain.PushPayload) (domain.SendReport, error) {
	args := m.Called(ctx, r, p)
	return args.Get(0).(domain.SendReport), args.Error(1)
}

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) PublishNotificationCreated(ctx context.Context, n *domain.Notification) error {
	return m.Called(ctx, n).Error(0)
}

type emitted struct {
	rc    domain.Recipient
	event string
	data  interface{}
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []emitted
}

func (e *recordingEmitter) Emit(rc domain.Recipient, event string, data interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, emitted{rc, event, data})
}

// --- helpers ---

var (
	u1 = domain.Recipient{ID: "u1", Type: domain.RecipientAdmin}
	u2 = domain.Recipient{ID: "u2", Type: domain.RecipientAdmin}
)

func notificationFor(rcs ...domain.Recipient) *domain.Notification {
	n := &domain.Notification{NotificationID: "n1", Title: "Invoice Ready"}
	for _, rc := range rcs {
		n.Recipients = append(n.Recipients, domain.NotificationRecipient{ID: rc.ID, Type: rc.Type})
	}
	return n
}

// --- tests ---

func TestCreate_PersistsEmitsPushesPublishes(t *testing.T) {
	repo := new(mockNotificationStore)
	repo.On("Put", mock.Anything, mock.AnythingOfType("*domain.Notification")).Return(nil)
	pusher := new(mockPusher)
	link := "/billing/42"
	pusher.On("SendToUser", mock.Anything, u1, domain.PushPayload{Title: "Invoice Ready", Body: "Pay now", URL: link}).
		Return(domain.SendReport{Sent: 1}, nil)
	pusher.On("SendToUser", mock.Anything, u2, domain.PushPayload{Title: "Invoice Ready", Body: "Pay now"}).
		Return(domain.SendReport{}, errors.New("push down"))
	pub := new(mockPublisher)
	pub.On("PublishNotificationCreated", mock.Anything, mock.Anything).Return(nil)
	em := &recordingEmitter{}

	svc := NewService(ServiceDeps{Repo: repo, Emitter: em, Pusher: pusher, Publisher: pub})
	sender := domain.Recipient{ID: "boss", Type: domain.RecipientAdmin}
	n, err := svc.Create(context.Background(), &sender, domain.CreateNotificationRequest{
		Recipients: []domain.NotificationRecipient{
			{ID: "u1", Type: domain.RecipientAdmin, Read: true, Link: &link},
			{ID: "u2", Type: domain.RecipientAdmin},
			{ID: "u1", Type: domain.RecipientAdmin},
		},
		Title:   " Invoice Ready ",
		Message: "Pay now",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, n.NotificationID)
	assert.Equal(t, "Invoice Ready", n.Title)
	require.Len(t, n.Recipients, 2)
	assert.False(t, n.Recipients[0].Read)
	require.NotNil(t, n.SenderID)
	assert.Equal(t, "boss", *n.SenderID)

	require.Len(t, em.events, 2)
	assert.Equal(t, domain.EventNewNotification, em.events[0].event)
	flat := em.events[0].data.(domain.Notification)
	require.NotNil(t, flat.Read)
	assert.False(t, *flat.Read)
	assert.Equal(t, &link, flat.Link)

	pusher.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestCreate_NoRecipients(t *testing.T) {
	repo := new(mockNotificationStore)
	svc := NewService(ServiceDeps{Repo: repo, Emitter: &recordingEmitter{}})
	_, err := svc.Create(context.Background(), nil, domain.CreateNotificationRequest{Title: "t"})
	assert.ErrorIs(t, err, domain.ErrBadRequest)
	repo.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
}

func TestCreate_PutFails(t *testing.T) {
	repo := new(mockNotificationStore)
	repo.On("Put", mock.Anything, mock.Anything).Return(errors.New("throttled"))
	em := &recordingEmitter{}
	_, err := NewService(ServiceDeps{Repo: repo, Emitter: em}).Create(context.Background(), nil, domain.CreateNotificationRequest{
		Recipients: []domain.NotificationRecipient{{ID: "u1", Type: domain.RecipientAdmin}},
		Title:      "t",
	})
	assert.Error(t, err)
	assert.Empty(t, em.events)
}

func TestList_Meta(t *testing.T) {
	repo := new(mockNotificationStore)
	q := domain.NotificationQuery{Page: 2, Limit: 10, Search: "invoice"}
	repo.On("ListForRecipient", mock.Anything, u1, q).Return([]domain.Notification{{NotificationID: "n1"}}, 11, nil)

	page, err := NewService(ServiceDeps{Repo: repo, Emitter: &recordingEmitter{}}).List(context.Background(), u1, q)
	require.NoError(t, err)
	assert.Equal(t, domain.PageMeta{Total: 11, TotalPages: 2, Page: 2, Limit: 10}, page.Meta)
	assert.Len(t, page.Data, 1)
}

func TestList_NormalizesQuery(t *testing.T) {
	repo := new(mockNotificationStore)
	repo.On("ListForRecipient", mock.Anything, u1, domain.NotificationQuery{Page: 1, Limit: domain.DefaultPageLimit}).
		Return([]domain.Notification{}, 0, nil)

	page, err := NewService(ServiceDeps{Repo: repo, Emitter: &recordingEmitter{}}).List(context.Background(), u1, domain.NotificationQuery{})
	require.NoError(t, err)
	assert.Zero(t, page.Meta.TotalPages)
}

func TestMarkAsRead_EmitsOnTransitionOnly(t *testing.T) {
	repo := new(mockNotificationStore)
	repo.On("Get", mock.Anything, "n1").Return(notificationFor(u1), nil)
	repo.On("MarkRead", mock.Anything, "n1", u1).Return(true, nil).Once()
	repo.On("MarkRead", mock.Anything, "n1", u1).Return(false, nil).Once()
	em := &recordingEmitter{}
	svc := NewService(ServiceDeps{Repo: repo, Emitter: em})

	changed, err := svc.MarkAsRead(context.Background(), "n1", u1)
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = svc.MarkAsRead(context.Background(), "n1", u1)
	require.NoError(t, err)
	assert.False(t, changed)

	require.Len(t, em.events, 1)
	assert.Equal(t, domain.EventNotificationRead, em.events[0].event)
	assert.Equal(t, domain.NotificationRead{NotificationID: "n1", RecipientID: "u1", RecipientType: domain.RecipientAdmin}, em.events[0].data)
}

func TestMarkAsRead_NotARecipient(t *testing.T) {
	repo := new(mockNotificationStore)
	repo.On("Get", mock.Anything, "n1").Return(notificationFor(u2), nil)

	_, err := NewService(ServiceDeps{Repo: repo, Emitter: &recordingEmitter{}}).MarkAsRead(context.Background(), "n1", u1)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	repo.AssertNotCalled(t, "MarkRead", mock.Anything, mock.Anything, mock.Anything)
}

func TestMarkAsRead_Missing(t *testing.T) {
	repo := new(mockNotificationStore)
	repo.On("Get", mock.Anything, "nope").Return(nil, domain.ErrNotFound)

	_, err := NewService(ServiceDeps{Repo: repo, Emitter: &recordingEmitter{}}).MarkAsRead(context.Background(), "nope", u1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMarkAllAsRead(t *testing.T) {
	repo := new(mockNotificationStore)
	repo.On("ListUnreadIDs", mock.Anything, u1).Return([]string{"n3", "n2", "n1"}, nil)
	repo.On("MarkRead", mock.Anything, "n3", u1).Return(true, nil)
	repo.On("MarkRead", mock.Anything, "n2", u1).Return(false, nil)
	repo.On("MarkRead", mock.Anything, "n1", u1).Return(true, nil)
	em := &recordingEmitter{}

	n, err := NewService(ServiceDeps{Repo: repo, Emitter: em}).MarkAllAsRead(context.Background(), u1)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, em.events, 2)
}

func TestUnreadCount(t *testing.T) {
	repo := new(mockNotificationStore)
	repo.On("CountUnread", mock.Anything, u1).Return(7, nil)

	n, err := NewService(ServiceDeps{Repo: repo, Emitter: &recordingEmitter{}}).UnreadCount(context.Background(), u1)
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}

func TestCreate_UsesClock(t *testing.T) {
	repo := new(mockNotificationStore)
	repo.On("Put", mock.Anything, mock.Anything).Return(nil)
	svc := NewService(ServiceDeps{Repo: repo, Emitter: &recordingEmitter{}}).(*service)
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	n, err := svc.Create(context.Background(), nil, domain.CreateNotificationRequest{
		Recipients: []domain.NotificationRecipient{{ID: "u1", Type: domain.RecipientUser}},
		Title:      "t",
	})
	require.NoError(t, err)
	assert.Equal(t, fixed, n.CreatedAt)
	assert.Nil(t, n.SenderID)
}
