package engine

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/kailas-cloud/notedex/internal/domain"
)

// --- Mocks ---

type mockRepo struct {
	saved       domain.Engine
	getResult   domain.Engine
	listResult  []domain.Engine
	sharers     []string
	uris        []string
	docCount    int
	deletedDocs int

	saveErr      error
	getErr       error
	listErr      error
	deleteErr    error
	sharersErr   error
	urisErr      error
	countErr     error
	deleteDocErr error

	deleteCalled     bool
	deleteDocsCalled bool
}

func (m *mockRepo) SaveEngine(_ context.Context, e domain.Engine) error {
	m.saved = e
	return m.saveErr
}

func (m *mockRepo) GetEngine(_ context.Context, _ string) (domain.Engine, error) {
	return m.getResult, m.getErr
}

func (m *mockRepo) ListEngines(_ context.Context) ([]domain.Engine, error) {
	return m.listResult, m.listErr
}

func (m *mockRepo) DeleteEngine(_ context.Context, _ string) (bool, error) {
	m.deleteCalled = true
	return m.deleteErr == nil, m.deleteErr
}

func (m *mockRepo) OtherEnginesSharingDataStore(_ context.Context, _, _ string) ([]string, error) {
	return m.sharers, m.sharersErr
}

func (m *mockRepo) ListDocumentURIs(_ context.Context, _ string) ([]string, error) {
	return m.uris, m.urisErr
}

func (m *mockRepo) CountDocuments(_ context.Context, _ string) (int, error) {
	return m.docCount, m.countErr
}

func (m *mockRepo) DeleteDocumentsForEngine(_ context.Context, _ string) (int, error) {
	m.deleteDocsCalled = true
	return m.deletedDocs, m.deleteDocErr
}

type mockSearch struct {
	remote domain.RemoteEngine

	ensureErr       error
	createErr       error
	getErr          error
	deleteErr       error
	deleteStoreErr  error
	ensureCalled    bool
	createdEngineID string
	createdStoreID  string
	storeDeleted    bool
}

func (m *mockSearch) EnsureDataStore(_ context.Context, dataStoreID string) (bool, error) {
	m.ensureCalled = true
	m.createdStoreID = dataStoreID
	return true, m.ensureErr
}

func (m *mockSearch) CreateEngine(_ context.Context, engineID, _, _ string) (domain.RemoteEngine, error) {
	m.createdEngineID = engineID
	return m.remote, m.createErr
}

func (m *mockSearch) GetEngine(_ context.Context, _ string) (domain.RemoteEngine, error) {
	return m.remote, m.getErr
}

func (m *mockSearch) DeleteEngine(_ context.Context, _ string) error {
	return m.deleteErr
}

func (m *mockSearch) DeleteDataStore(_ context.Context, _ string) error {
	if m.deleteStoreErr == nil {
		m.storeDeleted = true
	}
	return m.deleteStoreErr
}

type mockBlobs struct {
	ensuredBucket string
	ensureErr     error
	failedURIs    []string
	deletedURIs   []string
}

func (m *mockBlobs) EnsureBucket(_ context.Context, name string) error {
	m.ensuredBucket = name
	return m.ensureErr
}

func (m *mockBlobs) DeleteAll(_ context.Context, uris []string) []string {
	m.deletedURIs = uris
	return m.failedURIs
}

func newService(repo *mockRepo, search *mockSearch, blobs *mockBlobs) *Service {
	return New(repo, search, blobs, nil)
}

// --- Tests ---

func TestCreate_Success(t *testing.T) {
	repo := &mockRepo{}
	search := &mockSearch{remote: domain.RemoteEngine{
		DisplayName:  "Compliance Search",
		SolutionType: "SOLUTION_TYPE_SEARCH",
	}}
	blobs := &mockBlobs{}
	svc := newService(repo, search, blobs)

	created, err := svc.Create(context.Background(), "Compliance Search")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	idPattern := regexp.MustCompile(`^compliance-search-[0-9a-f]{8}$`)
	if !idPattern.MatchString(created.EngineID) {
		t.Errorf("engine_id %q does not match expected pattern", created.EngineID)
	}
	if !strings.HasPrefix(created.DataStoreID, "ds-") {
		t.Errorf("data_store_id %q missing ds- prefix", created.DataStoreID)
	}
	if created.EngineName != "Compliance Search" {
		t.Errorf("expected remote-confirmed display name, got %q", created.EngineName)
	}
	if created.SolutionType != "SOLUTION_TYPE_SEARCH" {
		t.Errorf("unexpected solution type %q", created.SolutionType)
	}

	want := domain.BucketName(created.EngineID, created.DataStoreID)
	if blobs.ensuredBucket != want {
		t.Errorf("expected bucket %q, got %q", want, blobs.ensuredBucket)
	}
	if repo.saved.EngineID != created.EngineID {
		t.Errorf("persisted engine_id %q != returned %q", repo.saved.EngineID, created.EngineID)
	}
}

func TestCreate_DataStoreFailureAbortsEverything(t *testing.T) {
	repo := &mockRepo{}
	search := &mockSearch{ensureErr: errors.New("quota exceeded")}
	blobs := &mockBlobs{}
	svc := newService(repo, search, blobs)

	_, err := svc.Create(context.Background(), "Doomed")
	if err == nil {
		t.Fatal("expected error")
	}
	if search.createdEngineID != "" {
		t.Error("engine must not be created after data store failure")
	}
	if blobs.ensuredBucket != "" {
		t.Error("bucket must not be created after data store failure")
	}
	if repo.saved.EngineID != "" {
		t.Error("record must not be persisted after data store failure")
	}
}

func TestCreate_BucketFailureDegradesToWarning(t *testing.T) {
	repo := &mockRepo{}
	search := &mockSearch{}
	blobs := &mockBlobs{ensureErr: errors.New("permission denied")}
	svc := newService(repo, search, blobs)

	created, err := svc.Create(context.Background(), "Test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// The remote engine and data store already exist, so the record must be
	// persisted to keep them addressable.
	if repo.saved.EngineID == "" {
		t.Error("record must be persisted despite bucket failure")
	}
	if created.Warning == "" {
		t.Error("expected warning naming the failed bucket")
	}
	if !strings.Contains(created.Warning, "permission denied") {
		t.Errorf("warning must carry the bucket error, got %q", created.Warning)
	}
}

func TestGet_RemoteFailureDegradesToWarning(t *testing.T) {
	repo := &mockRepo{getResult: domain.Engine{EngineID: "eng-1", DataStoreID: "ds-1"}, docCount: 3}
	search := &mockSearch{getErr: errors.New("deadline exceeded")}
	svc := newService(repo, search, &mockBlobs{})

	detail, err := svc.Get(context.Background(), "eng-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if detail.Warning == "" {
		t.Error("expected warning when remote lookup fails")
	}
	if detail.Remote != nil {
		t.Error("expected nil remote state")
	}
	if detail.DocumentCount != 3 {
		t.Errorf("expected document count 3, got %d", detail.DocumentCount)
	}
}

func TestGet_NotFound(t *testing.T) {
	repo := &mockRepo{getErr: domain.ErrEngineNotFound}
	svc := newService(repo, &mockSearch{}, &mockBlobs{})

	_, err := svc.Get(context.Background(), "missing")
	if !errors.Is(err, domain.ErrEngineNotFound) {
		t.Errorf("expected ErrEngineNotFound, got %v", err)
	}
}

func TestList_Success(t *testing.T) {
	repo := &mockRepo{listResult: []domain.Engine{
		{EngineID: "a", CreatedAt: time.Now()},
		{EngineID: "b", CreatedAt: time.Now()},
	}}
	svc := newService(repo, &mockSearch{}, &mockBlobs{})

	engines, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(engines) != 2 {
		t.Errorf("expected 2 engines, got %d", len(engines))
	}
}

func TestDelete_FullTeardown(t *testing.T) {
	repo := &mockRepo{
		getResult: domain.Engine{EngineID: "eng-1", DataStoreID: "ds-1"},
		uris:      []string{"gs://b/documents/1_a.pdf"},
	}
	search := &mockSearch{}
	blobs := &mockBlobs{}
	svc := newService(repo, search, blobs)

	result, err := svc.Delete(context.Background(), "eng-1",
		DeleteOptions{DeleteDataStore: true, DeleteBlobFiles: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.EngineDeleted || !result.DataStoreDeleted || !result.BlobsDeleted || !result.MetadataDeleted {
		t.Errorf("expected full teardown, got %+v", result)
	}
	if len(result.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", result.Warnings)
	}
	if len(blobs.deletedURIs) != 1 {
		t.Errorf("expected 1 blob deletion, got %d", len(blobs.deletedURIs))
	}
	if !repo.deleteDocsCalled {
		t.Error("document records must be purged")
	}
}

func TestDelete_LookupFailureIsFatal(t *testing.T) {
	repo := &mockRepo{getErr: domain.ErrEngineNotFound}
	svc := newService(repo, &mockSearch{}, &mockBlobs{})

	_, err := svc.Delete(context.Background(), "missing", DeleteOptions{})
	if !errors.Is(err, domain.ErrEngineNotFound) {
		t.Errorf("expected ErrEngineNotFound, got %v", err)
	}
}

func TestDelete_RemoteEngineFailureIsFatal(t *testing.T) {
	repo := &mockRepo{getResult: domain.Engine{EngineID: "eng-1", DataStoreID: "ds-1"}}
	search := &mockSearch{deleteErr: errors.New("permission denied")}
	svc := newService(repo, search, &mockBlobs{})

	_, err := svc.Delete(context.Background(), "eng-1", DeleteOptions{})
	if err == nil {
		t.Fatal("expected error")
	}
	if repo.deleteCalled {
		t.Error("metadata must not be deleted after fatal remote failure")
	}
}

func TestDelete_SharedDataStoreIsProtected(t *testing.T) {
	repo := &mockRepo{
		getResult: domain.Engine{EngineID: "eng-1", DataStoreID: "ds-1"},
		sharers:   []string{"eng-2"},
		uris:      []string{"gs://b/documents/1_a.pdf"},
	}
	search := &mockSearch{}
	blobs := &mockBlobs{}
	svc := newService(repo, search, blobs)

	result, err := svc.Delete(context.Background(), "eng-1",
		DeleteOptions{DeleteDataStore: true, DeleteBlobFiles: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.BlobsDeleted {
		t.Error("blobs must be protected while the data store is shared")
	}
	if result.DataStoreDeleted || search.storeDeleted {
		t.Error("shared data store must not be deleted")
	}
	if len(blobs.deletedURIs) != 0 {
		t.Error("no blob deletions expected")
	}
	// One warning per protected step, each naming the sharing engine.
	if len(result.Warnings) != 2 {
		t.Errorf("expected 2 warnings, got %v", result.Warnings)
	}
	for _, w := range result.Warnings {
		if !strings.Contains(w, "eng-2") {
			t.Errorf("warning must name the sharing engine id, got %q", w)
		}
	}
	if !result.MetadataDeleted {
		t.Error("metadata deletion must still proceed")
	}
}

func TestDelete_PartialBlobFailureWarns(t *testing.T) {
	repo := &mockRepo{
		getResult: domain.Engine{EngineID: "eng-1", DataStoreID: "ds-1"},
		uris:      []string{"gs://b/documents/1_a.pdf", "gs://b/documents/2_b.pdf"},
	}
	blobs := &mockBlobs{failedURIs: []string{"gs://b/documents/2_b.pdf"}}
	svc := newService(repo, &mockSearch{}, blobs)

	result, err := svc.Delete(context.Background(), "eng-1", DeleteOptions{DeleteBlobFiles: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.BlobsDeleted {
		t.Error("partial blob failure must not report success")
	}
	if len(result.Warnings) != 1 {
		t.Errorf("expected 1 warning, got %v", result.Warnings)
	}
}
