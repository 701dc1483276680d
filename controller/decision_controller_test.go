package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dev-sgill/arbiter/api/audit"
	arbiter_errors "github.com/dev-sgill/arbiter/api/errors"
	logger "github.com/dev-sgill/arbiter/api/logging"
	"github.com/dev-sgill/arbiter/api/model"
	pdpmodel "github.com/dev-sgill/arbiter/api/pdp/model"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	logger.Log = zap.NewNop()
	os.Exit(m.Run())
}

type mockDecisionService struct {
	mock.Mock
}

func (m *mockDecisionService) Decide(ctx context.Context, sub pdpmodel.AuthorizationSubscription) (pdpmodel.Vote, error) {
	args := m.Called(ctx, sub)
	return args.Get(0).(pdpmodel.Vote), args.Error(1)
}

func (m *mockDecisionService) Subscribe(ctx context.Context, sub pdpmodel.AuthorizationSubscription) (<-chan pdpmodel.Vote, string, error) {
	args := m.Called(ctx, sub)
	ch, _ := args.Get(0).(<-chan pdpmodel.Vote)
	return ch, args.String(1), args.Error(2)
}

func (m *mockDecisionService) Coverage(ctx context.Context, sub pdpmodel.AuthorizationSubscription) (pdpmodel.VoteWithCoverage, error) {
	args := m.Called(ctx, sub)
	return args.Get(0).(pdpmodel.VoteWithCoverage), args.Error(1)
}

func (m *mockDecisionService) ReloadConfiguration(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockDecisionService) UpdateConfiguration(ctx context.Context, config model.PDPConfiguration) error {
	args := m.Called(ctx, config)
	return args.Error(0)
}

func (m *mockDecisionService) QueryDecisionLogs(ctx context.Context, from, to time.Time, subjectID, decision string) ([]audit.DecisionLog, error) {
	args := m.Called(ctx, from, to, subjectID, decision)
	logs, _ := args.Get(0).([]audit.DecisionLog)
	return logs, args.Error(1)
}

func decisionRouter(svc *mockDecisionService) *gin.Engine {
	r := gin.New()
	NewDecisionController(svc).RegisterRoutes(r.Group("/api/v1"))
	return r
}

func subscriptionBody(t *testing.T) *bytes.Buffer {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"subject":  map[string]interface{}{"id": "u1"},
		"action":   "read",
		"resource": map[string]interface{}{"type": "record"},
	})
	require.NoError(t, err)
	return bytes.NewBuffer(body)
}

func permitDecision() pdpmodel.Vote {
	return pdpmodel.NewVote(pdpmodel.Permit, nil, nil, nil,
		pdpmodel.VoterMetadata{Name: "test-configuration", PDPID: "pdp-1", ConfigurationID: "c1"}, nil)
}

func TestDecideEndpoint(t *testing.T) {
	svc := new(mockDecisionService)
	svc.On("Decide", mock.Anything, mock.MatchedBy(func(sub pdpmodel.AuthorizationSubscription) bool {
		return sub.Action == "read" && !sub.Timestamp.IsZero()
	})).Return(permitDecision(), nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/decisions", subscriptionBody(t))
	decisionRouter(svc).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var vote pdpmodel.Vote
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &vote))
	assert.Equal(t, pdpmodel.Permit, vote.Decision())
	svc.AssertExpectations(t)
}

func TestDecideEndpointRejectsInvalidBody(t *testing.T) {
	svc := new(mockDecisionService)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/decisions", bytes.NewBufferString(`{"action":"read"}`))
	decisionRouter(svc).ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNotCalled(t, "Decide", mock.Anything, mock.Anything)
}

func TestDecideEndpointWithoutConfiguration(t *testing.T) {
	svc := new(mockDecisionService)
	svc.On("Decide", mock.Anything, mock.Anything).
		Return(pdpmodel.Vote{}, arbiter_errors.ErrConfigurationNotFound)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/decisions", subscriptionBody(t))
	decisionRouter(svc).ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestDecideEndpointTimeout(t *testing.T) {
	svc := new(mockDecisionService)
	svc.On("Decide", mock.Anything, mock.Anything).
		Return(pdpmodel.Vote{}, arbiter_errors.ErrDecisionTimeout)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/decisions", subscriptionBody(t))
	decisionRouter(svc).ServeHTTP(w, req)

	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
}

func TestCoverageEndpoint(t *testing.T) {
	svc := new(mockDecisionService)
	svc.On("Coverage", mock.Anything, mock.Anything).Return(pdpmodel.VoteWithCoverage{
		Vote:     permitDecision(),
		Coverage: []pdpmodel.Vote{permitDecision()},
	}, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/decisions/coverage", subscriptionBody(t))
	decisionRouter(svc).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var vc pdpmodel.VoteWithCoverage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &vc))
	assert.Len(t, vc.Coverage, 1)
}

func TestCoverageEndpointNotAvailable(t *testing.T) {
	svc := new(mockDecisionService)
	svc.On("Coverage", mock.Anything, mock.Anything).
		Return(pdpmodel.VoteWithCoverage{}, arbiter_errors.ErrCoverageNotAvailable)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/decisions/coverage", subscriptionBody(t))
	decisionRouter(svc).ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

// closeNotifyRecorder adds http.CloseNotifier support, which gin's
// Context.Stream requires and httptest.ResponseRecorder lacks.
type closeNotifyRecorder struct {
	*httptest.ResponseRecorder
	closed chan bool
}

func (c *closeNotifyRecorder) CloseNotify() <-chan bool { return c.closed }

func TestSubscribeEndpointStreamsDecisions(t *testing.T) {
	votes := make(chan pdpmodel.Vote, 1)
	votes <- permitDecision()
	close(votes)

	svc := new(mockDecisionService)
	svc.On("Subscribe", mock.Anything, mock.Anything).
		Return((<-chan pdpmodel.Vote)(votes), "sub-42", nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/decisions/subscribe", subscriptionBody(t))
	decisionRouter(svc).ServeHTTP(&closeNotifyRecorder{ResponseRecorder: w, closed: make(chan bool, 1)}, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, "sub-42", w.Header().Get("X-Subscription-Id"))
	assert.Contains(t, w.Body.String(), "event:decision")
	assert.Contains(t, w.Body.String(), "PERMIT")
}

func TestQueryLogsEndpoint(t *testing.T) {
	svc := new(mockDecisionService)
	svc.On("QueryDecisionLogs", mock.Anything, mock.Anything, mock.Anything, "u1", "DENY").
		Return([]audit.DecisionLog{{SubjectID: "u1", Decision: "DENY"}}, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/decisions/logs?subject=u1&decision=DENY", nil)
	decisionRouter(svc).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var logs []audit.DecisionLog
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &logs))
	require.Len(t, logs, 1)
	assert.Equal(t, "u1", logs[0].SubjectID)
	svc.AssertExpectations(t)
}

func TestQueryLogsEndpointRejectsBadTimestamp(t *testing.T) {
	svc := new(mockDecisionService)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/decisions/logs?from=yesterday", nil)
	decisionRouter(svc).ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNotCalled(t, "QueryDecisionLogs", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestReloadConfigurationEndpoint(t *testing.T) {
	svc := new(mockDecisionService)
	svc.On("ReloadConfiguration", mock.Anything).Return(nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/configuration/reload", nil)
	decisionRouter(svc).ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestReloadConfigurationEndpointMissing(t *testing.T) {
	svc := new(mockDecisionService)
	svc.On("ReloadConfiguration", mock.Anything).Return(arbiter_errors.ErrConfigurationNotFound)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/configuration/reload", nil)
	decisionRouter(svc).ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateConfigurationEndpoint(t *testing.T) {
	svc := new(mockDecisionService)
	svc.On("UpdateConfiguration", mock.Anything, mock.MatchedBy(func(config model.PDPConfiguration) bool {
		return config.Algorithm == "deny-overrides"
	})).Return(nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/api/v1/configuration",
		bytes.NewBufferString(`{"name":"default","algorithm":"deny-overrides"}`))
	decisionRouter(svc).ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	svc.AssertExpectations(t)
}

func TestUpdateConfigurationEndpointRejectsUnknownAlgorithm(t *testing.T) {
	svc := new(mockDecisionService)
	svc.On("UpdateConfiguration", mock.Anything, mock.Anything).
		Return(arbiter_errors.ErrUnknownAlgorithm)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/api/v1/configuration",
		bytes.NewBufferString(`{"name":"default","algorithm":"majority-vote"}`))
	decisionRouter(svc).ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateConfigurationEndpointLocked(t *testing.T) {
	svc := new(mockDecisionService)
	svc.On("UpdateConfiguration", mock.Anything, mock.Anything).
		Return(arbiter_errors.ErrConfigurationLocked)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/api/v1/configuration",
		bytes.NewBufferString(`{"name":"default","algorithm":"deny-overrides"}`))
	decisionRouter(svc).ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
}
