package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	apperrors "github.com/Meghdut-Mandal/WhatsappStatusHandler-sub001/internal/errors"
	"github.com/Meghdut-Mandal/WhatsappStatusHandler-sub001/internal/models"
	"github.com/Meghdut-Mandal/WhatsappStatusHandler-sub001/internal/uuid"
)

type fakeSettings struct {
	mu       sync.Mutex
	doc      json.RawMessage
	writeErr error
}

func (f *fakeSettings) Exists(ctx context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.doc != nil, nil
}

func (f *fakeSettings) Read(ctx context.Context) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.doc == nil {
		return nil, apperrors.New(apperrors.ErrNotFound, "settings not found")
	}
	return append(json.RawMessage(nil), f.doc...), nil
}

func (f *fakeSettings) Write(ctx context.Context, doc json.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.doc = append(json.RawMessage(nil), doc...)
	return nil
}

type fakeSessions struct {
	mu        sync.Mutex
	order     []models.UUID
	byID      map[models.UUID]*models.Session
	getAllErr error
	createErr func(*models.Session) error
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{byID: make(map[models.UUID]*models.Session)}
}

func (f *fakeSessions) GetAll(ctx context.Context) ([]*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getAllErr != nil {
		return nil, f.getAllErr
	}
	out := make([]*models.Session, 0, len(f.order))
	for _, id := range f.order {
		s := *f.byID[id]
		out = append(out, &s)
	}
	return out, nil
}

func (f *fakeSessions) GetByID(ctx context.Context, id string) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.byID[models.UUID(id)]
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrNotFound, "session %s not found", id)
	}
	c := *s
	return &c, nil
}

func (f *fakeSessions) Create(ctx context.Context, s *models.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		if err := f.createErr(s); err != nil {
			return err
		}
	}
	if s.ID == "" {
		s.ID = models.UUID(uuid.New())
	}
	if _, ok := f.byID[s.ID]; ok {
		return apperrors.New(apperrors.ErrDuplicate, "duplicate session")
	}
	c := *s
	f.byID[s.ID] = &c
	f.order = append(f.order, s.ID)
	return nil
}

func (f *fakeSessions) Update(ctx context.Context, s *models.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[s.ID]; !ok {
		return apperrors.New(apperrors.ErrNotFound, "session not found")
	}
	c := *s
	f.byID[s.ID] = &c
	return nil
}

func (f *fakeSessions) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.order)
}

type fakeHistory struct {
	mu        sync.Mutex
	records   []*models.SendHistory
	createErr error
	limits    []int
}

func (f *fakeHistory) GetBySessionID(ctx context.Context, sessionID string, limit int) ([]*models.SendHistory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.limits = append(f.limits, limit)
	var out []*models.SendHistory
	for _, r := range f.records {
		if string(r.SessionID) == sessionID {
			c := *r
			out = append(out, &c)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeHistory) Create(ctx context.Context, r *models.SendHistory) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if r.ID == "" {
		r.ID = models.UUID(uuid.New())
	}
	c := *r
	f.records = append(f.records, &c)
	return nil
}

func (f *fakeHistory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

type fakeMedia struct {
	mu        sync.Mutex
	items     []*models.MediaMeta
	createErr func(*models.MediaMeta) error
}

func (f *fakeMedia) GetAll(ctx context.Context) ([]*models.MediaMeta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.MediaMeta, 0, len(f.items))
	for _, m := range f.items {
		c := *m
		out = append(out, &c)
	}
	return out, nil
}

func (f *fakeMedia) Create(ctx context.Context, m *models.MediaMeta) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		if err := f.createErr(m); err != nil {
			return err
		}
	}
	if m.ID == "" {
		m.ID = models.UUID(uuid.New())
	}
	c := *m
	f.items = append(f.items, &c)
	return nil
}

func (f *fakeMedia) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items)
}

// store bundles the fakes behind one Manager.
type store struct {
	settings *fakeSettings
	sessions *fakeSessions
	history  *fakeHistory
	media    *fakeMedia
}

func newStore() *store {
	return &store{
		settings: &fakeSettings{},
		sessions: newFakeSessions(),
		history:  &fakeHistory{},
		media:    &fakeMedia{},
	}
}

func (s *store) deps() Dependencies {
	return Dependencies{
		Settings:    s.settings,
		Sessions:    s.sessions,
		SendHistory: s.history,
		MediaMeta:   s.media,
	}
}

// seed fills the store with settings, sessions, history and media.
func (s *store) seed(t *testing.T, sessions, history, media int) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.settings.Write(ctx, json.RawMessage(`{"theme":"dark","autoReply":true}`)))

	var ids []models.UUID
	for i := 0; i < sessions; i++ {
		sess := &models.Session{
			DeviceName:  fmt.Sprintf("Device %d", i),
			PhoneNumber: fmt.Sprintf("+1555000%d", i),
			IsActive:    true,
			AuthBlob:    []byte("top-secret-credential"),
			CreatedAt:   int64(1700000000 + i),
		}
		require.NoError(t, s.sessions.Create(ctx, sess))
		ids = append(ids, sess.ID)
	}
	for i := 0; i < history; i++ {
		require.NoError(t, s.history.Create(ctx, &models.SendHistory{
			SessionID:   ids[i%len(ids)],
			Recipient:   "status@broadcast",
			MessageType: "image",
			MediaID:     "m1",
			Status:      models.SendStatusSent,
			SentAt:      int64(1700001000 + i),
		}))
	}
	for i := 0; i < media; i++ {
		require.NoError(t, s.media.Create(ctx, &models.MediaMeta{
			Filename:    fmt.Sprintf("file%d.jpg", i),
			MimeType:    "image/jpeg",
			SizeBytes:   int64(100 * (i + 1)),
			StoragePath: fmt.Sprintf("/uploads/file%d.jpg", i),
			UploadedAt:  int64(1700002000 + i),
		}))
	}
}

type testEnv struct {
	manager *Manager
	store   *store
	dir     string
	tempDir string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithStore(t, newStore(), t.TempDir())
}

// newTestEnvWithStore builds a Manager over st that writes to root/backups.
func newTestEnvWithStore(t *testing.T, st *store, root string) *testEnv {
	t.Helper()
	env := &testEnv{
		store:   st,
		dir:     root + "/backups",
		tempDir: root + "/temp",
	}
	m, err := NewManager(Config{
		BackupDir:    env.dir,
		TempFilesDir: env.tempDir,
		AppName:      "test-dashboard",
	}, st.deps(), zaptest.NewLogger(t))
	require.NoError(t, err)
	env.manager = m
	return env
}

// recorder captures events in delivery order.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) OnEvent(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

func (r *recorder) last() Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

var errBoom = errors.New("boom")
