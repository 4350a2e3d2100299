package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/momchat/internal/datamodels/report"
)

type fakePublisher struct {
	mu   sync.Mutex
	err  error
	sent []*ReportMessage
}

func (p *fakePublisher) PublishReport(_ context.Context, m *ReportMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, m)
	return nil
}

func TestBlock(t *testing.T) {
	store := newMemStore()
	svc := NewBlockService(memUsers{store}, memBlocks{store})
	ctx := context.Background()
	a := store.addUser("Mom#1111")
	store.addUser("Mom#2222")

	msg, err := svc.Block(ctx, a.ID, "Mom#2222")
	require.NoError(t, err)
	assert.Equal(t, "Successfully blocked Mom#2222.", msg)

	_, err = svc.Block(ctx, a.ID, "Mom#2222")
	assert.Equal(t, KindConflict, KindOf(err))
	assert.EqualError(t, err, "You have already blocked this user.")

	_, err = svc.Block(ctx, a.ID, "Mom#1111")
	assert.Equal(t, KindForbidden, KindOf(err))

	_, err = svc.Block(ctx, a.ID, "Mom#9999")
	assert.Equal(t, KindNotFound, KindOf(err))

	list, err := svc.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func newReportFixture(t *testing.T) (*engine, *ReportService, *fakePublisher) {
	t.Helper()
	e := newEngine(t)
	pub := &fakePublisher{}
	svc := NewReportService(memUsers{e.store}, memMessages{e.store}, memReports{e.store}, pub, e.monitor, nil)
	return e, svc, pub
}

func TestSubmitReport(t *testing.T) {
	e, svc, pub := newReportFixture(t)
	ctx := context.Background()
	a := e.store.addUser("Mom#1111")
	b := e.store.addUser("Mom#2222")
	m, err := e.messages.SendMessage(ctx, b, a.AnonymousTag, "rude")
	require.NoError(t, err)

	rep, err := svc.Submit(ctx, a.ID, ReportInput{ReportedUserTag: "Mom#2222", Reason: " spam ", MessageID: &m.ID})
	require.NoError(t, err)
	assert.Equal(t, report.StatusPending, rep.Status)
	assert.Equal(t, "spam", rep.Reason)
	require.NotNil(t, rep.MessageID)
	assert.Equal(t, m.ID, *rep.MessageID)

	require.Len(t, pub.sent, 1)
	assert.Equal(t, rep.ID, pub.sent[0].ReportID)
	assert.Equal(t, b.ID, pub.sent[0].ReportedUserID)
	assert.Equal(t, int64(1), e.monitor.ReportsQueued)
}

func TestSubmitReportReasonLimitCountsCharacters(t *testing.T) {
	e, svc, _ := newReportFixture(t)
	ctx := context.Background()
	a := e.store.addUser("Mom#1111")
	b := e.store.addUser("Mom#2222")

	rep, err := svc.Submit(ctx, a.ID, ReportInput{ReportedUserTag: b.AnonymousTag, Reason: strings.Repeat("妈", maxReasonLen)})
	require.NoError(t, err)
	assert.Equal(t, maxReasonLen, len([]rune(rep.Reason)))

	_, err = svc.Submit(ctx, a.ID, ReportInput{ReportedUserTag: b.AnonymousTag, Reason: strings.Repeat("妈", maxReasonLen+1)})
	assert.Equal(t, KindInvalidArgument, KindOf(err))
	assert.EqualError(t, err, "Reason is too long")
}

func TestSubmitReportValidation(t *testing.T) {
	e, svc, pub := newReportFixture(t)
	ctx := context.Background()
	a := e.store.addUser("Mom#1111")
	b := e.store.addUser("Mom#2222")
	c := e.store.addUser("Mom#3333")
	m, err := e.messages.SendMessage(ctx, c, a.AnonymousTag, "from c")
	require.NoError(t, err)

	_, err = svc.Submit(ctx, a.ID, ReportInput{ReportedUserTag: b.AnonymousTag, Reason: "  "})
	assert.Equal(t, KindInvalidArgument, KindOf(err))

	_, err = svc.Submit(ctx, a.ID, ReportInput{ReportedUserTag: "Mom#0000", Reason: "x"})
	assert.Equal(t, KindNotFound, KindOf(err))

	missing := "missing"
	_, err = svc.Submit(ctx, a.ID, ReportInput{ReportedUserTag: b.AnonymousTag, Reason: "x", MessageID: &missing})
	assert.Equal(t, KindNotFound, KindOf(err))

	// 消息不是被举报人发的
	_, err = svc.Submit(ctx, a.ID, ReportInput{ReportedUserTag: b.AnonymousTag, Reason: "x", MessageID: &m.ID})
	assert.Equal(t, KindForbidden, KindOf(err))

	assert.Empty(t, pub.sent)
}

func TestSubmitReportSurvivesPublishFailure(t *testing.T) {
	e, svc, pub := newReportFixture(t)
	pub.err = errors.New("broker down")
	a := e.store.addUser("Mom#1111")
	e.store.addUser("Mom#2222")

	rep, err := svc.Submit(context.Background(), a.ID, ReportInput{ReportedUserTag: "Mom#2222", Reason: "spam"})
	require.NoError(t, err)

	stored, err := memReports{e.store}.GetByID(context.Background(), rep.ID)
	require.NoError(t, err)
	assert.Equal(t, report.StatusPending, stored.Status)
	assert.Equal(t, int64(1), e.monitor.PublishErrors)
}

func TestReportStatusTransitions(t *testing.T) {
	e, svc, _ := newReportFixture(t)
	ctx := context.Background()
	a := e.store.addUser("Mom#1111")
	e.store.addUser("Mom#2222")
	rep, err := svc.Submit(ctx, a.ID, ReportInput{ReportedUserTag: "Mom#2222", Reason: "spam"})
	require.NoError(t, err)

	got, err := svc.MarkReviewing(ctx, rep.ID)
	require.NoError(t, err)
	assert.Equal(t, report.StatusReviewing, got.Status)

	got, err = svc.UpdateStatus(ctx, rep.ID, report.StatusResolved)
	require.NoError(t, err)
	assert.Equal(t, report.StatusResolved, got.Status)

	// 已处理的举报不会被 worker 改回 reviewing
	got, err = svc.MarkReviewing(ctx, rep.ID)
	require.NoError(t, err)
	assert.Equal(t, report.StatusResolved, got.Status)

	_, err = svc.UpdateStatus(ctx, rep.ID, "closed")
	assert.Equal(t, KindInvalidArgument, KindOf(err))
	_, err = svc.UpdateStatus(ctx, "missing", report.StatusDismissed)
	assert.Equal(t, KindNotFound, KindOf(err))

	list, err := svc.List(ctx, report.StatusResolved, 10)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	_, err = svc.List(ctx, "bogus", 10)
	assert.Equal(t, KindInvalidArgument, KindOf(err))
}

func TestErrorKinds(t *testing.T) {
	assert.Equal(t, 404, KindNotFound.HTTPStatus())
	assert.Equal(t, 403, KindForbidden.HTTPStatus())
	assert.Equal(t, 409, KindConflict.HTTPStatus())
	assert.Equal(t, 401, KindUnauthenticated.HTTPStatus())
	assert.Equal(t, 400, KindInvalidArgument.HTTPStatus())
	assert.Equal(t, 500, KindInternal.HTTPStatus())
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
}
