package handler

import (
	"context"
	"io"
	"time"

	"github.com/hitoshi/digestman/internal/model"
	"github.com/hitoshi/digestman/internal/opml"
	"github.com/hitoshi/digestman/internal/worker/cleanup"
	"github.com/hitoshi/digestman/internal/worker/digestgen"
	"github.com/hitoshi/digestman/internal/worker/refresh"
)

// --- モック定義 ---

type mockSourceRepo struct {
	findByIDFunc         func(ctx context.Context, id, userID string) (*model.Source, error)
	findByURLAndUserFunc func(ctx context.Context, url, userID string) (*model.Source, error)
	createFunc           func(ctx context.Context, source *model.Source) error
	listByUserFunc       func(ctx context.Context, userID string) ([]model.SourceWithUnread, error)
	deleteFunc           func(ctx context.Context, id, userID string) (bool, error)
}

func (m *mockSourceRepo) FindByID(ctx context.Context, id, userID string) (*model.Source, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id, userID)
	}
	return nil, nil
}

func (m *mockSourceRepo) FindByURLAndUser(ctx context.Context, url, userID string) (*model.Source, error) {
	if m.findByURLAndUserFunc != nil {
		return m.findByURLAndUserFunc(ctx, url, userID)
	}
	return nil, nil
}

func (m *mockSourceRepo) Create(ctx context.Context, source *model.Source) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, source)
	}
	return nil
}

func (m *mockSourceRepo) ListByUser(ctx context.Context, userID string) ([]model.SourceWithUnread, error) {
	if m.listByUserFunc != nil {
		return m.listByUserFunc(ctx, userID)
	}
	return nil, nil
}

func (m *mockSourceRepo) ListDue(ctx context.Context, before time.Time) ([]*model.Source, error) {
	return nil, nil
}

func (m *mockSourceRepo) UpdateAfterFetch(ctx context.Context, id, title string, fetchedAt time.Time) error {
	return nil
}

func (m *mockSourceRepo) Delete(ctx context.Context, id, userID string) (bool, error) {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id, userID)
	}
	return false, nil
}

type mockItemRepo struct {
	listByUserFunc  func(ctx context.Context, userID string, filter model.ItemFilter, sourceID string) ([]model.ItemWithSource, error)
	findByIDFunc    func(ctx context.Context, id, userID string) (*model.ItemWithSource, error)
	updateFlagsFunc func(ctx context.Context, id, userID string, isRead, isPinned *bool) (*model.Item, error)
	deleteFunc      func(ctx context.Context, id, userID string) (bool, error)
}

func (m *mockItemRepo) TitlesBySource(ctx context.Context, sourceID string) (map[string]struct{}, error) {
	return nil, nil
}

func (m *mockItemRepo) CreateIfAbsent(ctx context.Context, item *model.Item) (bool, error) {
	return false, nil
}

func (m *mockItemRepo) ListByUser(ctx context.Context, userID string, filter model.ItemFilter, sourceID string) ([]model.ItemWithSource, error) {
	if m.listByUserFunc != nil {
		return m.listByUserFunc(ctx, userID, filter, sourceID)
	}
	return nil, nil
}

func (m *mockItemRepo) ListByPublishRange(ctx context.Context, userID string, from, to time.Time) ([]model.ItemWithSource, error) {
	return nil, nil
}

func (m *mockItemRepo) FindByID(ctx context.Context, id, userID string) (*model.ItemWithSource, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id, userID)
	}
	return nil, nil
}

func (m *mockItemRepo) UpdateFlags(ctx context.Context, id, userID string, isRead, isPinned *bool) (*model.Item, error) {
	if m.updateFlagsFunc != nil {
		return m.updateFlagsFunc(ctx, id, userID, isRead, isPinned)
	}
	return nil, nil
}

func (m *mockItemRepo) Delete(ctx context.Context, id, userID string) (bool, error) {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id, userID)
	}
	return false, nil
}

func (m *mockItemRepo) DeleteExpired(ctx context.Context, userID string, cutoff time.Time) (int64, error) {
	return 0, nil
}

type mockDigestRepo struct {
	findByUserAndDateFunc func(ctx context.Context, userID, date string) (*model.Digest, error)
	listByUserFunc        func(ctx context.Context, userID string) ([]*model.Digest, error)
}

func (m *mockDigestRepo) CreateIfAbsent(ctx context.Context, digest *model.Digest) (bool, error) {
	return false, nil
}

func (m *mockDigestRepo) FindByUserAndDate(ctx context.Context, userID, date string) (*model.Digest, error) {
	if m.findByUserAndDateFunc != nil {
		return m.findByUserAndDateFunc(ctx, userID, date)
	}
	return nil, nil
}

func (m *mockDigestRepo) ListByUser(ctx context.Context, userID string) ([]*model.Digest, error) {
	if m.listByUserFunc != nil {
		return m.listByUserFunc(ctx, userID)
	}
	return nil, nil
}

type mockPrefRepo struct {
	findOrCreateFunc func(ctx context.Context, userID string) (*model.Preference, error)
	updateFunc       func(ctx context.Context, pref *model.Preference) error
}

func (m *mockPrefRepo) FindOrCreate(ctx context.Context, userID string) (*model.Preference, error) {
	if m.findOrCreateFunc != nil {
		return m.findOrCreateFunc(ctx, userID)
	}
	return nil, nil
}

func (m *mockPrefRepo) Update(ctx context.Context, pref *model.Preference) error {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, pref)
	}
	return nil
}

func (m *mockPrefRepo) ListDigestEnabled(ctx context.Context) ([]*model.Preference, error) {
	return nil, nil
}

func (m *mockPrefRepo) ListAutoCleanup(ctx context.Context) ([]*model.Preference, error) {
	return nil, nil
}

type mockValidator struct {
	validateFunc func(rawURL string) error
}

func (m *mockValidator) ValidateURL(rawURL string) error {
	if m.validateFunc != nil {
		return m.validateFunc(rawURL)
	}
	return nil
}

type mockIngester struct {
	refreshFunc func(ctx context.Context, source *model.Source) (int, error)
}

func (m *mockIngester) RefreshSource(ctx context.Context, source *model.Source) (int, error) {
	if m.refreshFunc != nil {
		return m.refreshFunc(ctx, source)
	}
	return 0, nil
}

type mockRefreshRunner struct {
	mockIngester
	runFunc func(ctx context.Context) (*refresh.Result, error)
}

func (m *mockRefreshRunner) RunOnce(ctx context.Context) (*refresh.Result, error) {
	if m.runFunc != nil {
		return m.runFunc(ctx)
	}
	return &refresh.Result{}, nil
}

type mockDigestRunner struct {
	runFunc func(ctx context.Context) (*digestgen.Result, error)
}

func (m *mockDigestRunner) RunOnce(ctx context.Context) (*digestgen.Result, error) {
	if m.runFunc != nil {
		return m.runFunc(ctx)
	}
	return &digestgen.Result{}, nil
}

type mockCleanupRunner struct {
	runFunc func(ctx context.Context) (*cleanup.Result, error)
}

func (m *mockCleanupRunner) RunOnce(ctx context.Context) (*cleanup.Result, error) {
	if m.runFunc != nil {
		return m.runFunc(ctx)
	}
	return &cleanup.Result{}, nil
}

type mockOPMLImporter struct {
	importFunc func(ctx context.Context, r io.Reader, userID string) (*opml.ImportResult, error)
}

func (m *mockOPMLImporter) Import(ctx context.Context, r io.Reader, userID string) (*opml.ImportResult, error) {
	if m.importFunc != nil {
		return m.importFunc(ctx, r, userID)
	}
	return &opml.ImportResult{}, nil
}

type mockSessionRepo struct {
	findByIDFunc func(ctx context.Context, id string) (*model.Session, error)
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, nil
}
