package service

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/momchat/internal/config"
	"github.com/example/momchat/internal/datamodels/block"
	"github.com/example/momchat/internal/datamodels/chat"
	"github.com/example/momchat/internal/datamodels/report"
	"github.com/example/momchat/internal/datamodels/user"
	"github.com/example/momchat/internal/realtime"
)

// memStore 内存版存储。Transaction 串行执行，出错时恢复快照
type memStore struct {
	mu   sync.Mutex
	txMu sync.Mutex

	users    map[string]*user.User
	blocks   []*block.Block
	threads  map[string]*chat.Thread
	messages map[string]*chat.Message
	reports  map[string]*report.Report

	failMessageCreate error
}

func newMemStore() *memStore {
	return &memStore{
		users:    map[string]*user.User{},
		threads:  map[string]*chat.Thread{},
		messages: map[string]*chat.Message{},
		reports:  map[string]*report.Report{},
	}
}

type snapshot struct {
	threads  map[string]*chat.Thread
	messages map[string]*chat.Message
}

func (s *memStore) snapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := snapshot{
		threads:  make(map[string]*chat.Thread, len(s.threads)),
		messages: make(map[string]*chat.Message, len(s.messages)),
	}
	for k, t := range s.threads {
		c := *t
		snap.threads[k] = &c
	}
	for k, m := range s.messages {
		c := *m
		snap.messages[k] = &c
	}
	return snap
}

func (s *memStore) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threads = snap.threads
	s.messages = snap.messages
}

func (s *memStore) Transaction(ctx context.Context, fn func(chat.ThreadRepository, chat.MessageRepository) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	snap := s.snapshot()
	if err := fn(memThreads{s}, memMessages{s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *memStore) threadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.threads)
}

func (s *memStore) messageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

func (s *memStore) addUser(tag string) *user.User {
	u := &user.User{ID: uuid.NewString(), AnonymousTag: tag, Email: tag + "@example.com", Password: "x"}
	s.mu.Lock()
	s.users[u.ID] = u
	s.mu.Unlock()
	return u
}

func (s *memStore) public(id string) *user.Public {
	if u, ok := s.users[id]; ok {
		return u.Public()
	}
	return nil
}

func hasParticipant(t *chat.Thread, userID string) bool {
	for _, p := range t.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

// users

type memUsers struct{ s *memStore }

func (r memUsers) find(match func(*user.User) bool) (*user.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if match(u) {
			c := *u
			return &c, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r memUsers) GetByID(_ context.Context, id string) (*user.User, error) {
	return r.find(func(u *user.User) bool { return u.ID == id })
}

func (r memUsers) GetByTag(_ context.Context, tag string) (*user.User, error) {
	return r.find(func(u *user.User) bool { return u.AnonymousTag == tag })
}

func (r memUsers) GetByEmail(_ context.Context, email string) (*user.User, error) {
	return r.find(func(u *user.User) bool { return u.Email == email })
}

func (r memUsers) Create(_ context.Context, u *user.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, o := range r.s.users {
		if o.Email == u.Email || o.AnonymousTag == u.AnonymousTag {
			return gorm.ErrDuplicatedKey
		}
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	c := *u
	r.s.users[u.ID] = &c
	return nil
}

func (r memUsers) Update(_ context.Context, u *user.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, o := range r.s.users {
		if o.ID != u.ID && o.Email == u.Email {
			return gorm.ErrDuplicatedKey
		}
	}
	cur, ok := r.s.users[u.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	cur.Email = u.Email
	cur.Password = u.Password
	return nil
}

func (r memUsers) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if u, ok := r.s.users[id]; ok {
		u.LastLogin = &at
	}
	return nil
}

func (r memUsers) ListAll(_ context.Context) ([]*user.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var list []*user.User
	for _, u := range r.s.users {
		c := *u
		list = append(list, &c)
	}
	return list, nil
}

// blocks

type memBlocks struct{ s *memStore }

func (r memBlocks) Exists(_ context.Context, blockerID, blockedID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, b := range r.s.blocks {
		if b.BlockerID == blockerID && b.BlockedID == blockedID {
			return true, nil
		}
	}
	return false, nil
}

func (r memBlocks) Create(ctx context.Context, b *block.Block) error {
	if ok, _ := r.Exists(ctx, b.BlockerID, b.BlockedID); ok {
		return gorm.ErrDuplicatedKey
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	r.s.blocks = append(r.s.blocks, b)
	return nil
}

func (r memBlocks) ListAll(_ context.Context) ([]*block.Block, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return append([]*block.Block(nil), r.s.blocks...), nil
}

// threads

type memThreads struct{ s *memStore }

func (r memThreads) FindDirect(_ context.Context, a, b string) (*chat.Thread, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var found []*chat.Thread
	for _, t := range r.s.threads {
		if len(t.Participants) == 2 && hasParticipant(t, a) && hasParticipant(t, b) {
			found = append(found, t)
		}
	}
	if len(found) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	sort.Slice(found, func(i, j int) bool {
		if !found[i].CreatedAt.Equal(found[j].CreatedAt) {
			return found[i].CreatedAt.Before(found[j].CreatedAt)
		}
		return found[i].ID < found[j].ID
	})
	c := *found[0]
	return &c, nil
}

func (r memThreads) CreateDirect(_ context.Context, t *chat.Thread, a, b string) (*chat.Thread, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := chat.PairKey(a, b)
	for _, existing := range r.s.threads {
		if existing.PairKey == key {
			c := *existing
			return &c, nil
		}
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.PairKey = key
	t.CreatedAt = time.Now()
	t.Participants = []*chat.Participant{
		{ID: uuid.NewString(), ThreadID: t.ID, UserID: a},
		{ID: uuid.NewString(), ThreadID: t.ID, UserID: b},
	}
	c := *t
	r.s.threads[t.ID] = &c
	return t, nil
}

func (r memThreads) get(id string) (*chat.Thread, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.threads[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	c := *t
	return &c, nil
}

func (r memThreads) GetForParticipant(_ context.Context, threadID, userID string) (*chat.Thread, error) {
	t, err := r.get(threadID)
	if err != nil {
		return nil, err
	}
	if !hasParticipant(t, userID) {
		return nil, gorm.ErrRecordNotFound
	}
	return t, nil
}

func (r memThreads) ListByParticipant(_ context.Context, userID string) ([]*chat.Thread, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var list []*chat.Thread
	for _, t := range r.s.threads {
		if !hasParticipant(t, userID) {
			continue
		}
		c := *t
		c.Participants = nil
		for _, p := range t.Participants {
			pc := *p
			pc.User = r.s.public(p.UserID)
			c.Participants = append(c.Participants, &pc)
		}
		list = append(list, &c)
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].LastMessageAt.Equal(list[j].LastMessageAt) {
			return list[i].LastMessageAt.After(list[j].LastMessageAt)
		}
		return list[i].ID < list[j].ID
	})
	return list, nil
}

func (r memThreads) TouchLastMessage(_ context.Context, threadID, content string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.threads[threadID]
	if !ok || t.LastMessageAt.After(at) {
		return nil
	}
	t.LastMessage = content
	t.LastMessageAt = at
	return nil
}

// messages

type memMessages struct{ s *memStore }

func (r memMessages) Create(_ context.Context, m *chat.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failMessageCreate != nil {
		return r.s.failMessageCreate
	}
	c := *m
	c.Sender = nil
	r.s.messages[m.ID] = &c
	return nil
}

func (r memMessages) GetByID(_ context.Context, id string) (*chat.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.messages[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	c := *m
	return &c, nil
}

func (r memMessages) ListByThread(_ context.Context, threadID string) ([]*chat.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var list []*chat.Message
	for _, m := range r.s.messages {
		if m.ThreadID == threadID {
			c := *m
			c.Sender = r.s.public(m.SenderID)
			list = append(list, &c)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.Before(list[j].CreatedAt)
		}
		return list[i].ID < list[j].ID
	})
	return list, nil
}

func (r memMessages) MarkRead(_ context.Context, id string, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.messages[id]
	if !ok || m.ReadAt != nil {
		return false, nil
	}
	m.ReadAt = &at
	return true, nil
}

// reports

type memReports struct{ s *memStore }

func (r memReports) Create(_ context.Context, rep *report.Report) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if rep.ID == "" {
		rep.ID = uuid.NewString()
	}
	if rep.Status == "" {
		rep.Status = report.StatusPending
	}
	rep.CreatedAt = time.Now()
	c := *rep
	r.s.reports[rep.ID] = &c
	return nil
}

func (r memReports) GetByID(_ context.Context, id string) (*report.Report, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rep, ok := r.s.reports[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	c := *rep
	return &c, nil
}

func (r memReports) UpdateStatus(_ context.Context, id, status string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rep, ok := r.s.reports[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	rep.Status = status
	return nil
}

func (r memReports) List(_ context.Context, status string, limit int) ([]*report.Report, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var list []*report.Report
	for _, rep := range r.s.reports {
		if status == "" || rep.Status == status {
			c := *rep
			list = append(list, &c)
		}
	}
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

// notifier

type delivery struct {
	userID string
	ev     realtime.Event
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []delivery
}

func (n *recordingNotifier) Deliver(userID string, ev realtime.Event) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, delivery{userID: userID, ev: ev})
	return 1
}

func (n *recordingNotifier) For(userID string) []realtime.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []realtime.Event
	for _, d := range n.events {
		if d.userID == userID {
			out = append(out, d.ev)
		}
	}
	return out
}

func (n *recordingNotifier) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.events)
}

// stepClock 每次调用前进一秒
type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func newStepClock() *stepClock {
	return &stepClock{t: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

type engine struct {
	store    *memStore
	notifier *recordingNotifier
	monitor  *Monitor
	messages *MessageService
	threads  *ThreadService
}

func newEngine(t *testing.T) *engine {
	t.Helper()
	store := newMemStore()
	notifier := &recordingNotifier{}
	monitor := NewMonitor()
	msgs := NewMessageService(memUsers{store}, memBlocks{store}, memMessages{store}, store, notifier, monitor, nil)
	msgs.now = newStepClock().Now
	return &engine{
		store:    store,
		notifier: notifier,
		monitor:  monitor,
		messages: msgs,
		threads:  NewThreadService(memThreads{store}, memMessages{store}),
	}
}

func testJWT() *config.JWTConfig {
	return &config.JWTConfig{
		Secret:        "access-secret",
		RefreshSecret: "refresh-secret",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    24 * time.Hour,
	}
}
