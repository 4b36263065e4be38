package discovery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	discoveryengine "google.golang.org/api/discoveryengine/v1"
	"google.golang.org/api/googleapi"

	"github.com/kailas-cloud/notedex/internal/backoff"
	"github.com/kailas-cloud/notedex/internal/domain"
)

type mockAPI struct {
	getDataStoreErrs   []error // consumed per GetDataStore call
	createDataStoreErr error
	deleteDataStoreErr error
	getDataStoreCalls  int

	getEngineErr    error
	createEngineErr error
	deleteEngineErr error
	engine          *discoveryengine.GoogleCloudDiscoveryengineV1Engine

	importErrs   []error // consumed per ImportDocuments call
	importOps    []*discoveryengine.GoogleLongrunningOperation
	deleteDocErr error

	operations map[string]*discoveryengine.GoogleLongrunningOperation

	searchResp *discoveryengine.GoogleCloudDiscoveryengineV1SearchResponse
	searchErr  error

	importCalls    int
	getOpCalls     int
	searchRequests []*discoveryengine.GoogleCloudDiscoveryengineV1SearchRequest
	sleeps         []time.Duration
}

func doneOp(name string) *discoveryengine.GoogleLongrunningOperation {
	return &discoveryengine.GoogleLongrunningOperation{Name: name, Done: true}
}

func (m *mockAPI) GetDataStore(_ context.Context, name string) (*discoveryengine.GoogleCloudDiscoveryengineV1DataStore, error) {
	call := m.getDataStoreCalls
	m.getDataStoreCalls++
	if call < len(m.getDataStoreErrs) && m.getDataStoreErrs[call] != nil {
		return nil, m.getDataStoreErrs[call]
	}
	return &discoveryengine.GoogleCloudDiscoveryengineV1DataStore{Name: name}, nil
}

func (m *mockAPI) CreateDataStore(_ context.Context, _, _ string, _ *discoveryengine.GoogleCloudDiscoveryengineV1DataStore) (*discoveryengine.GoogleLongrunningOperation, error) {
	if m.createDataStoreErr != nil {
		return nil, m.createDataStoreErr
	}
	return doneOp("op/create-ds"), nil
}

func (m *mockAPI) DeleteDataStore(_ context.Context, _ string) (*discoveryengine.GoogleLongrunningOperation, error) {
	if m.deleteDataStoreErr != nil {
		return nil, m.deleteDataStoreErr
	}
	return doneOp("op/delete-ds"), nil
}

func (m *mockAPI) GetEngine(_ context.Context, name string) (*discoveryengine.GoogleCloudDiscoveryengineV1Engine, error) {
	if m.getEngineErr != nil {
		return nil, m.getEngineErr
	}
	if m.engine != nil {
		return m.engine, nil
	}
	return &discoveryengine.GoogleCloudDiscoveryengineV1Engine{Name: name}, nil
}

func (m *mockAPI) CreateEngine(_ context.Context, _, _ string, _ *discoveryengine.GoogleCloudDiscoveryengineV1Engine) (*discoveryengine.GoogleLongrunningOperation, error) {
	if m.createEngineErr != nil {
		return nil, m.createEngineErr
	}
	return doneOp("op/create-engine"), nil
}

func (m *mockAPI) DeleteEngine(_ context.Context, _ string) (*discoveryengine.GoogleLongrunningOperation, error) {
	if m.deleteEngineErr != nil {
		return nil, m.deleteEngineErr
	}
	return doneOp("op/delete-engine"), nil
}

func (m *mockAPI) ImportDocuments(_ context.Context, _ string, _ *discoveryengine.GoogleCloudDiscoveryengineV1ImportDocumentsRequest) (*discoveryengine.GoogleLongrunningOperation, error) {
	call := m.importCalls
	m.importCalls++
	if call < len(m.importErrs) && m.importErrs[call] != nil {
		return nil, m.importErrs[call]
	}
	if call < len(m.importOps) {
		return m.importOps[call], nil
	}
	return doneOp("op/import"), nil
}

func (m *mockAPI) DeleteDocument(_ context.Context, _ string) error {
	return m.deleteDocErr
}

func (m *mockAPI) GetOperation(_ context.Context, name string) (*discoveryengine.GoogleLongrunningOperation, error) {
	m.getOpCalls++
	if op, ok := m.operations[name]; ok {
		return op, nil
	}
	return doneOp(name), nil
}

func (m *mockAPI) Search(_ context.Context, _ string, req *discoveryengine.GoogleCloudDiscoveryengineV1SearchRequest) (*discoveryengine.GoogleCloudDiscoveryengineV1SearchResponse, error) {
	m.searchRequests = append(m.searchRequests, req)
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	if m.searchResp != nil {
		return m.searchResp, nil
	}
	return &discoveryengine.GoogleCloudDiscoveryengineV1SearchResponse{}, nil
}

func apiErr(code int) *googleapi.Error {
	return &googleapi.Error{Code: code, Message: "remote"}
}

func testGateway(m *mockAPI) *Gateway {
	g := New(m, Config{
		ProjectID:   "proj",
		Location:    "global",
		ImportRetry: backoff.Policy{Attempts: 3, Base: 5 * time.Second, Growth: 5 * time.Second},
		Settle:      30 * time.Second,
	})
	return g.WithSleeper(func(_ context.Context, d time.Duration) error {
		m.sleeps = append(m.sleeps, d)
		return nil
	})
}

func TestEnsureDataStoreReusesExisting(t *testing.T) {
	m := &mockAPI{}
	created, err := testGateway(m).EnsureDataStore(context.Background(), "ds-1")
	require.NoError(t, err)
	assert.False(t, created)
}

func TestEnsureDataStoreCreatesWhenAbsent(t *testing.T) {
	m := &mockAPI{getDataStoreErrs: []error{apiErr(404)}}
	created, err := testGateway(m).EnsureDataStore(context.Background(), "ds-1")
	require.NoError(t, err)
	assert.True(t, created)
}

func TestEnsureDataStoreCreateRace(t *testing.T) {
	// The 409 means another creator won; the re-fetch resolves the race.
	m := &mockAPI{
		getDataStoreErrs:   []error{apiErr(404), nil},
		createDataStoreErr: apiErr(409),
	}
	created, err := testGateway(m).EnsureDataStore(context.Background(), "ds-1")
	require.NoError(t, err)
	assert.False(t, created)
}

func TestCreateEngineReturnsRemoteState(t *testing.T) {
	m := &mockAPI{engine: &discoveryengine.GoogleCloudDiscoveryengineV1Engine{
		DisplayName:  "Compliance Search",
		SolutionType: "SOLUTION_TYPE_SEARCH",
		DataStoreIds: []string{"ds-1"},
	}}
	info, err := testGateway(m).CreateEngine(context.Background(), "eng-1", "ds-1", "Compliance Search")
	require.NoError(t, err)
	assert.Equal(t, "Compliance Search", info.DisplayName)
	assert.Equal(t, []string{"ds-1"}, info.DataStoreIDs)
	assert.False(t, info.Existed)
}

func TestCreateEngineAlreadyExists(t *testing.T) {
	m := &mockAPI{
		createEngineErr: apiErr(409),
		engine: &discoveryengine.GoogleCloudDiscoveryengineV1Engine{
			DisplayName: "Existing",
		},
	}
	info, err := testGateway(m).CreateEngine(context.Background(), "eng-1", "ds-1", "Existing")
	require.NoError(t, err)
	assert.True(t, info.Existed)
	assert.Equal(t, "Existing", info.DisplayName)
}

func TestGetEngineMapsNotFound(t *testing.T) {
	m := &mockAPI{getEngineErr: apiErr(404)}
	_, err := testGateway(m).GetEngine(context.Background(), "eng-1")
	assert.ErrorIs(t, err, domain.ErrEngineNotFound)
}

func TestDeleteEngineNotFoundIsSuccess(t *testing.T) {
	m := &mockAPI{deleteEngineErr: apiErr(404)}
	assert.NoError(t, testGateway(m).DeleteEngine(context.Background(), "eng-1"))
}

func TestDeleteDataStoreNotFoundIsSuccess(t *testing.T) {
	m := &mockAPI{deleteDataStoreErr: apiErr(404)}
	assert.NoError(t, testGateway(m).DeleteDataStore(context.Background(), "ds-1"))
}

func importOpWithCounts(success, failure string) *discoveryengine.GoogleLongrunningOperation {
	return &discoveryengine.GoogleLongrunningOperation{
		Name: "op/import",
		Done: true,
		Metadata: googleapi.RawMessage(
			`{"successCount":"` + success + `","failureCount":"` + failure + `"}`),
	}
}

func TestImportDocumentSuccess(t *testing.T) {
	m := &mockAPI{importOps: []*discoveryengine.GoogleLongrunningOperation{
		importOpWithCounts("1", "0"),
	}}
	result, err := testGateway(m).ImportDocument(context.Background(), "ds-1", "gs://b/documents/1_x.pdf")
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.SuccessCount)
	assert.Equal(t, 1, m.importCalls)
	// Readiness delay before the attempt, settle delay after success.
	require.Len(t, m.sleeps, 2)
	assert.Equal(t, 5*time.Second, m.sleeps[0])
	assert.Equal(t, 30*time.Second, m.sleeps[1])
}

func TestImportDocumentRetriesOnNotFound(t *testing.T) {
	m := &mockAPI{
		importErrs: []error{apiErr(404), nil},
		importOps: []*discoveryengine.GoogleLongrunningOperation{
			nil,
			importOpWithCounts("1", "0"),
		},
	}
	result, err := testGateway(m).ImportDocument(context.Background(), "ds-1", "gs://b/documents/1_x.pdf")
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.SuccessCount)
	assert.Equal(t, 2, m.importCalls)
	// Delays grow linearly between attempts.
	require.GreaterOrEqual(t, len(m.sleeps), 2)
	assert.Equal(t, 5*time.Second, m.sleeps[0])
	assert.Equal(t, 10*time.Second, m.sleeps[1])
}

func TestImportDocumentAllFailuresIsError(t *testing.T) {
	m := &mockAPI{importOps: []*discoveryengine.GoogleLongrunningOperation{
		importOpWithCounts("0", "2"),
		importOpWithCounts("0", "2"),
		importOpWithCounts("0", "2"),
	}}
	_, err := testGateway(m).ImportDocument(context.Background(), "ds-1", "gs://b/documents/1_x.pdf")
	assert.ErrorIs(t, err, domain.ErrImportFailed)
}

func TestImportDocumentAmbiguousOutcomeIsError(t *testing.T) {
	m := &mockAPI{importOps: []*discoveryengine.GoogleLongrunningOperation{
		importOpWithCounts("0", "0"),
		importOpWithCounts("0", "0"),
		importOpWithCounts("0", "0"),
	}}
	_, err := testGateway(m).ImportDocument(context.Background(), "ds-1", "gs://b/documents/1_x.pdf")
	assert.ErrorIs(t, err, domain.ErrImportFailed)
}

func TestImportDocumentPartialFailureSurfacesCounts(t *testing.T) {
	m := &mockAPI{importOps: []*discoveryengine.GoogleLongrunningOperation{
		importOpWithCounts("3", "1"),
	}}
	result, err := testGateway(m).ImportDocument(context.Background(), "ds-1", "gs://b/documents/1_x.pdf")
	require.NoError(t, err)
	assert.Equal(t, int64(3), result.SuccessCount)
	assert.Equal(t, int64(1), result.FailureCount)
}

func TestImportDocumentPermanentErrorNoRetry(t *testing.T) {
	m := &mockAPI{importErrs: []error{apiErr(403), apiErr(403), apiErr(403)}}
	_, err := testGateway(m).ImportDocument(context.Background(), "ds-1", "gs://b/documents/1_x.pdf")
	require.Error(t, err)
	assert.Equal(t, 1, m.importCalls)
}

func TestDeleteDocumentNotFoundIsSuccess(t *testing.T) {
	m := &mockAPI{deleteDocErr: apiErr(404)}
	assert.NoError(t, testGateway(m).DeleteDocument(context.Background(), "ds-1", "abc"))
}

func TestWaitOperationPollsUntilDone(t *testing.T) {
	pending := &discoveryengine.GoogleLongrunningOperation{Name: "op/slow"}
	m := &mockAPI{}
	g := testGateway(m)
	// First poll still pending, second poll done.
	polls := 0
	g.api = opSequenceAPI{mockAPI: m, polls: &polls}
	done, err := g.waitOperation(context.Background(), pending, time.Minute)
	require.NoError(t, err)
	assert.True(t, done.Done)
	assert.Equal(t, 2, polls)
}

// opSequenceAPI returns a pending operation on the first poll and a
// completed one afterwards.
type opSequenceAPI struct {
	*mockAPI
	polls *int
}

func (o opSequenceAPI) GetOperation(_ context.Context, name string) (*discoveryengine.GoogleLongrunningOperation, error) {
	*o.polls++
	if *o.polls < 2 {
		return &discoveryengine.GoogleLongrunningOperation{Name: name}, nil
	}
	return doneOp(name), nil
}

func TestWaitOperationSurfacesRemoteFailure(t *testing.T) {
	failed := &discoveryengine.GoogleLongrunningOperation{
		Name: "op/bad",
		Done: true,
		Error: &discoveryengine.GoogleRpcStatus{
			Code:    9,
			Message: "precondition",
		},
	}
	m := &mockAPI{}
	_, err := testGateway(m).waitOperation(context.Background(), failed, time.Minute)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "precondition")
}

func TestSearchBuildsSummaryRequest(t *testing.T) {
	m := &mockAPI{searchResp: &discoveryengine.GoogleCloudDiscoveryengineV1SearchResponse{
		Summary: &discoveryengine.GoogleCloudDiscoveryengineV1SearchResponseSummary{
			SummaryText: "The policy requires annual review.",
			SummaryWithMetadata: &discoveryengine.GoogleCloudDiscoveryengineV1SearchResponseSummarySummaryWithMetadata{
				CitationMetadata: &discoveryengine.GoogleCloudDiscoveryengineV1SearchResponseSummaryCitationMetadata{
					Citations: []*discoveryengine.GoogleCloudDiscoveryengineV1SearchResponseSummaryCitation{
						{StartIndex: 0, EndIndex: 34, Sources: []*discoveryengine.GoogleCloudDiscoveryengineV1SearchResponseSummaryCitationSource{
							{ReferenceIndex: 0},
						}},
					},
				},
				References: []*discoveryengine.GoogleCloudDiscoveryengineV1SearchResponseSummaryReference{
					{Title: "Policy"},
				},
			},
		},
		Results: []*discoveryengine.GoogleCloudDiscoveryengineV1SearchResponseSearchResult{
			{Document: &discoveryengine.GoogleCloudDiscoveryengineV1Document{
				Id: "doc-1",
				DerivedStructData: googleapi.RawMessage(
					`{"title":"Policy","link":"gs://b/documents/1_p.pdf",` +
						`"extractive_answers":[{"pageNumber":"2","content":"annual review"}]}`),
			}},
		},
	}}
	answer, err := testGateway(m).Search(context.Background(), "eng-1", "review cadence")
	require.NoError(t, err)
	assert.Equal(t, "The policy requires annual review.", answer.Summary)
	require.Len(t, answer.Results, 1)
	assert.Equal(t, "Policy", answer.Results[0].Title)
	assert.Equal(t, "gs://b/documents/1_p.pdf", answer.Results[0].URI)
	require.Len(t, answer.Results[0].ExtractiveAnswers, 1)
	assert.Equal(t, "2", answer.Results[0].ExtractiveAnswers[0].PageNumber)
	assert.Equal(t, "annual review", answer.Results[0].ExtractiveAnswers[0].Content)
	require.Len(t, answer.Citations, 1)
	assert.Equal(t, "Policy", answer.Citations[0].Source)
	assert.EqualValues(t, 34, answer.Citations[0].EndIndex)

	require.Len(t, m.searchRequests, 1)
	req := m.searchRequests[0]
	assert.EqualValues(t, 10, req.PageSize)
	require.NotNil(t, req.ContentSearchSpec.SummarySpec)
	assert.EqualValues(t, 5, req.ContentSearchSpec.SummarySpec.SummaryResultCount)
	assert.True(t, req.ContentSearchSpec.SummarySpec.IncludeCitations)
	assert.Equal(t, "AUTO", req.QueryExpansionSpec.Condition)
}

func TestSearchMapsNotFound(t *testing.T) {
	m := &mockAPI{searchErr: apiErr(404)}
	_, err := testGateway(m).Search(context.Background(), "eng-1", "q")
	assert.ErrorIs(t, err, domain.ErrEngineNotFound)
}

func TestFetchExcerptsPrefersSegments(t *testing.T) {
	m := &mockAPI{searchResp: &discoveryengine.GoogleCloudDiscoveryengineV1SearchResponse{
		Results: []*discoveryengine.GoogleCloudDiscoveryengineV1SearchResponseSearchResult{
			{Document: &discoveryengine.GoogleCloudDiscoveryengineV1Document{
				Id: "doc-1",
				DerivedStructData: googleapi.RawMessage(`{
					"title":"Handbook",
					"extractive_segments":[{"content":"segment text"}],
					"extractive_answers":[{"content":"answer text"}]
				}`),
			}},
			{Document: &discoveryengine.GoogleCloudDiscoveryengineV1Document{
				Id:                "doc-2",
				DerivedStructData: googleapi.RawMessage(`{"title":"Empty"}`),
			}},
		},
	}}
	excerpts, err := testGateway(m).FetchExcerpts(context.Background(), "eng-1", 10)
	require.NoError(t, err)
	// Documents with no extractable content are skipped.
	require.Len(t, excerpts, 1)
	assert.Equal(t, "Handbook", excerpts[0].Title)
	assert.Equal(t, "segment text", excerpts[0].Content)
}

func TestIsImportRetryable(t *testing.T) {
	assert.True(t, isImportRetryable(apiErr(404)))
	assert.True(t, isImportRetryable(apiErr(503)))
	assert.True(t, isImportRetryable(errors.New("bucket does not exist")))
	assert.False(t, isImportRetryable(apiErr(403)))
}
