package service

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transflow/transflow-api/internal/models"
	appErrors "github.com/transflow/transflow-api/pkg/errors"
)

// memLockRepo emulates the document_locks table including its UNIQUE
// constraint on document_id, so acquire races behave like they do against
// Postgres.
type memLockRepo struct {
	mu     sync.Mutex
	locks  map[string]models.DocumentLock
	owners map[string]models.User
	status map[string]models.DocumentStatus
	memos  map[string]string
}

func newMemLockRepo() *memLockRepo {
	return &memLockRepo{
		locks:  make(map[string]models.DocumentLock),
		owners: make(map[string]models.User),
		status: make(map[string]models.DocumentStatus),
		memos:  make(map[string]string),
	}
}

func (m *memLockRepo) Create(ctx context.Context, lock *models.DocumentLock) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.locks[lock.DocumentID]; exists {
		return &pq.Error{Code: "23505", Constraint: "document_locks_document_id_key"}
	}
	if lock.ID == "" {
		lock.ID = "lock-" + lock.DocumentID
	}
	if lock.LockedAt.IsZero() {
		lock.LockedAt = time.Now().UTC()
	}
	m.locks[lock.DocumentID] = *lock
	return nil
}

func (m *memLockRepo) FindByDocumentID(ctx context.Context, documentID string) (*models.DocumentLockDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, exists := m.locks[documentID]
	if !exists {
		return nil, sql.ErrNoRows
	}
	owner := m.owners[lock.LockedBy]
	return &models.DocumentLockDetail{
		DocumentLock:   lock,
		OwnerName:      owner.FullName,
		OwnerEmail:     owner.Email,
		DocumentStatus: m.status[documentID],
	}, nil
}

func (m *memLockRepo) UpdateProgress(ctx context.Context, documentID string, paragraphs types.JSONText) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, exists := m.locks[documentID]
	if !exists {
		return false, nil
	}
	lock.CompletedParagraphs = paragraphs
	m.locks[documentID] = lock
	return true, nil
}

func (m *memLockRepo) UpdateMemo(ctx context.Context, documentID, memo string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.memos[documentID] = memo
	return nil
}

func (m *memLockRepo) DeleteByOwner(ctx context.Context, documentID, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, exists := m.locks[documentID]
	if !exists || lock.LockedBy != userID {
		return false, nil
	}
	delete(m.locks, documentID)
	return true, nil
}

func (m *memLockRepo) DeleteByDocumentID(ctx context.Context, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, documentID)
	return nil
}

type memDocumentRepo struct {
	mu   sync.Mutex
	docs map[string]models.Document
}

func newMemDocumentRepo(docs ...models.Document) *memDocumentRepo {
	m := &memDocumentRepo{docs: make(map[string]models.Document)}
	for _, d := range docs {
		m.docs[d.ID] = d
	}
	return m
}

func (m *memDocumentRepo) FindByID(ctx context.Context, id string) (*models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, exists := m.docs[id]
	if !exists {
		return nil, sql.ErrNoRows
	}
	return &doc, nil
}

func (m *memDocumentRepo) UpdateStatus(ctx context.Context, id string, from, to models.DocumentStatus, modifiedBy *string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, exists := m.docs[id]
	if !exists || doc.Status != from {
		return false, nil
	}
	doc.Status = to
	doc.LastModifiedBy = modifiedBy
	m.docs[id] = doc
	return true, nil
}

func (m *memDocumentRepo) statusOf(id string) models.DocumentStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.docs[id].Status
}

type memUserReader struct {
	users map[string]models.User
}

func (m *memUserReader) FindByID(ctx context.Context, id string) (*models.User, error) {
	user, exists := m.users[id]
	if !exists {
		return nil, sql.ErrNoRows
	}
	return &user, nil
}

func testUsers() *memUserReader {
	return &memUserReader{users: map[string]models.User{
		"user-1": {ID: "user-1", FullName: "Kim Minjun", Email: "minjun@example.com", Role: models.RoleTranslator, Active: true},
		"user-2": {ID: "user-2", FullName: "Park Seoyeon", Email: "seoyeon@example.com", Role: models.RoleTranslator, Active: true},
		"admin":  {ID: "admin", FullName: "Choi Admin", Email: "admin@example.com", Role: models.RoleAdmin, Active: true},
	}}
}

func newTestLockService(locks *memLockRepo, docs *memDocumentRepo) *LockService {
	return NewLockService(locks, docs, testUsers(), nil, time.Second, nil, nil, nil)
}

func pendingDoc(id string) models.Document {
	return models.Document{ID: id, Title: "Guide", Status: models.StatusPendingTranslation, CreatedBy: "user-1"}
}

func TestLockServiceAcquire(t *testing.T) {
	locks := newMemLockRepo()
	docs := newMemDocumentRepo(pendingDoc("doc-1"))
	svc := newTestLockService(locks, docs)

	lock, err := svc.Acquire(context.Background(), "doc-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", lock.LockedBy)
	assert.Equal(t, "Kim Minjun", lock.OwnerName)
	assert.Equal(t, models.StatusInTranslation, docs.statusOf("doc-1"))
}

func TestLockServiceAcquireIdempotent(t *testing.T) {
	locks := newMemLockRepo()
	locks.owners["user-1"] = models.User{ID: "user-1", FullName: "Kim Minjun", Email: "minjun@example.com"}
	docs := newMemDocumentRepo(pendingDoc("doc-1"))
	svc := newTestLockService(locks, docs)

	first, err := svc.Acquire(context.Background(), "doc-1", "user-1")
	require.NoError(t, err)

	second, err := svc.Acquire(context.Background(), "doc-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.LockedAt.Unix(), second.LockedAt.Unix())
}

func TestLockServiceAcquireConflictNamesHolder(t *testing.T) {
	locks := newMemLockRepo()
	locks.owners["user-1"] = models.User{ID: "user-1", FullName: "Kim Minjun", Email: "minjun@example.com"}
	docs := newMemDocumentRepo(pendingDoc("doc-1"))
	svc := newTestLockService(locks, docs)

	_, err := svc.Acquire(context.Background(), "doc-1", "user-1")
	require.NoError(t, err)

	_, err = svc.Acquire(context.Background(), "doc-1", "user-2")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrLockHeld.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "Kim Minjun")
}

func TestLockServiceAcquireDocumentNotFound(t *testing.T) {
	svc := newTestLockService(newMemLockRepo(), newMemDocumentRepo())

	_, err := svc.Acquire(context.Background(), "missing", "user-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestLockServiceAcquireRejectsIneligibleStatus(t *testing.T) {
	docs := newMemDocumentRepo(models.Document{ID: "doc-1", Status: models.StatusPublished, CreatedBy: "user-1"})
	svc := newTestLockService(newMemLockRepo(), docs)

	_, err := svc.Acquire(context.Background(), "doc-1", "user-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
}

func TestLockServiceConcurrentAcquireSingleWinner(t *testing.T) {
	locks := newMemLockRepo()
	locks.owners["user-1"] = models.User{ID: "user-1", FullName: "Kim Minjun"}
	locks.owners["user-2"] = models.User{ID: "user-2", FullName: "Park Seoyeon"}
	docs := newMemDocumentRepo(pendingDoc("doc-1"))
	svc := newTestLockService(locks, docs)

	const attempts = 16
	users := []string{"user-1", "user-2"}
	results := make(chan error, attempts)

	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			_, err := svc.Acquire(context.Background(), "doc-1", userID)
			results <- err
		}(users[i%len(users)])
	}
	wg.Wait()
	close(results)

	var successes, conflicts int
	for err := range results {
		if err == nil {
			successes++
			continue
		}
		appErr := appErrors.FromError(err)
		require.Equal(t, appErrors.ErrLockHeld.Code, appErr.Code)
		conflicts++
	}

	// Every attempt by the winning user succeeds idempotently; the other
	// user only ever sees conflicts. The lock row stays singular.
	assert.Equal(t, attempts/2, successes)
	assert.Equal(t, attempts/2, conflicts)
	require.Len(t, locks.locks, 1)
}

// racingLockRepo simulates the narrow window where the unlocked fast path
// passes but another create lands first: the insert hits the constraint and
// the requery sees the winner.
type racingLockRepo struct {
	memLockRepo
	winner models.DocumentLockDetail
	reads  int
}

func (r *racingLockRepo) FindByDocumentID(ctx context.Context, documentID string) (*models.DocumentLockDetail, error) {
	r.reads++
	if r.reads == 1 {
		return nil, sql.ErrNoRows
	}
	winner := r.winner
	return &winner, nil
}

func (r *racingLockRepo) Create(ctx context.Context, lock *models.DocumentLock) error {
	return &pq.Error{Code: "23505", Constraint: "document_locks_document_id_key"}
}

func TestLockServiceAcquireCollisionRequeriesOnce(t *testing.T) {
	winner := models.DocumentLockDetail{
		DocumentLock:   models.DocumentLock{ID: "lock-1", DocumentID: "doc-1", LockedBy: "user-2", LockedAt: time.Now()},
		OwnerName:      "Park Seoyeon",
		DocumentStatus: models.StatusInTranslation,
	}

	locks := &racingLockRepo{winner: winner}
	svc := NewLockService(locks, newMemDocumentRepo(pendingDoc("doc-1")), testUsers(), nil, time.Second, nil, nil, nil)

	_, err := svc.Acquire(context.Background(), "doc-1", "user-1")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrLockHeld.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "Park Seoyeon")
	assert.Equal(t, 2, locks.reads)

	// The same collision resolved in the caller's favour is an idempotent
	// success.
	locks = &racingLockRepo{winner: winner}
	locks.winner.LockedBy = "user-1"
	svc = NewLockService(locks, newMemDocumentRepo(pendingDoc("doc-1")), testUsers(), nil, time.Second, nil, nil, nil)

	lock, err := svc.Acquire(context.Background(), "doc-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, "lock-1", lock.ID)
}

func TestLockServiceReleaseUnlockedIsNoop(t *testing.T) {
	svc := newTestLockService(newMemLockRepo(), newMemDocumentRepo(pendingDoc("doc-1")))
	err := svc.Release(context.Background(), "doc-1", "user-1", false)
	assert.NoError(t, err)
}

func TestLockServiceReleaseForbiddenForNonOwner(t *testing.T) {
	locks := newMemLockRepo()
	docs := newMemDocumentRepo(pendingDoc("doc-1"))
	svc := newTestLockService(locks, docs)

	_, err := svc.Acquire(context.Background(), "doc-1", "user-1")
	require.NoError(t, err)

	err = svc.Release(context.Background(), "doc-1", "user-2", false)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Len(t, locks.locks, 1)
}

func TestLockServiceAdminForceRelease(t *testing.T) {
	locks := newMemLockRepo()
	docs := newMemDocumentRepo(pendingDoc("doc-1"))
	svc := newTestLockService(locks, docs)

	_, err := svc.Acquire(context.Background(), "doc-1", "user-1")
	require.NoError(t, err)

	err = svc.Release(context.Background(), "doc-1", "admin", true)
	require.NoError(t, err)
	assert.Empty(t, locks.locks)
}

func TestLockServiceSaveProgressWithoutLockIsNoop(t *testing.T) {
	svc := newTestLockService(newMemLockRepo(), newMemDocumentRepo(pendingDoc("doc-1")))
	err := svc.SaveProgress(context.Background(), "doc-1", []int{1, 2, 3})
	assert.NoError(t, err)
}

func TestLockServiceSaveProgressStoresSnapshot(t *testing.T) {
	locks := newMemLockRepo()
	docs := newMemDocumentRepo(pendingDoc("doc-1"))
	svc := newTestLockService(locks, docs)

	_, err := svc.Acquire(context.Background(), "doc-1", "user-1")
	require.NoError(t, err)

	require.NoError(t, svc.SaveProgress(context.Background(), "doc-1", []int{1, 2, 3}))

	lock, err := locks.FindByDocumentID(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, lock.Paragraphs())
}

func TestLockServiceGetStatusUnlocked(t *testing.T) {
	svc := newTestLockService(newMemLockRepo(), newMemDocumentRepo(pendingDoc("doc-1")))
	status := svc.GetStatus(context.Background(), "doc-1", "")
	assert.False(t, status.Locked)
	assert.False(t, status.CanEdit)
	assert.NotNil(t, status.CompletedParagraphs)
}

func TestLockServiceGetStatusOwnerCanEdit(t *testing.T) {
	locks := newMemLockRepo()
	locks.owners["user-1"] = models.User{ID: "user-1", FullName: "Kim Minjun", Email: "minjun@example.com"}
	docs := newMemDocumentRepo(pendingDoc("doc-1"))
	svc := newTestLockService(locks, docs)

	_, err := svc.Acquire(context.Background(), "doc-1", "user-1")
	require.NoError(t, err)

	owner := svc.GetStatus(context.Background(), "doc-1", "user-1")
	assert.True(t, owner.Locked)
	assert.True(t, owner.CanEdit)
	require.NotNil(t, owner.LockedBy)
	assert.Equal(t, "user-1", owner.LockedBy.ID)

	other := svc.GetStatus(context.Background(), "doc-1", "user-2")
	assert.True(t, other.Locked)
	assert.False(t, other.CanEdit)

	anonymous := svc.GetStatus(context.Background(), "doc-1", "")
	assert.True(t, anonymous.Locked)
	assert.False(t, anonymous.CanEdit)
}

type failingLockRepo struct {
	memLockRepo
}

func (f *failingLockRepo) FindByDocumentID(ctx context.Context, documentID string) (*models.DocumentLockDetail, error) {
	return nil, assert.AnError
}

func TestLockServiceGetStatusDegradesOnError(t *testing.T) {
	locks := &failingLockRepo{memLockRepo: *newMemLockRepo()}
	svc := NewLockService(locks, newMemDocumentRepo(pendingDoc("doc-1")), testUsers(), nil, time.Second, nil, nil, nil)

	status := svc.GetStatus(context.Background(), "doc-1", "user-1")
	require.NotNil(t, status)
	assert.False(t, status.Locked)
	assert.False(t, status.CanEdit)
}

func TestLockServiceIsLockedBy(t *testing.T) {
	locks := newMemLockRepo()
	docs := newMemDocumentRepo(pendingDoc("doc-1"))
	svc := newTestLockService(locks, docs)

	assert.False(t, svc.IsLockedBy(context.Background(), "doc-1", "user-1"))

	_, err := svc.Acquire(context.Background(), "doc-1", "user-1")
	require.NoError(t, err)

	assert.True(t, svc.IsLockedBy(context.Background(), "doc-1", "user-1"))
	assert.False(t, svc.IsLockedBy(context.Background(), "doc-1", "user-2"))
}
