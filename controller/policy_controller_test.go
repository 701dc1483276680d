package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	arbiter_errors "github.com/dev-sgill/arbiter/api/errors"
	"github.com/dev-sgill/arbiter/api/model"
)

type mockPolicyService struct {
	mock.Mock
}

func (m *mockPolicyService) CreatePolicy(ctx context.Context, policy model.PolicyDefinition, userID string) (*model.PolicyDefinition, error) {
	args := m.Called(ctx, policy, userID)
	p, _ := args.Get(0).(*model.PolicyDefinition)
	return p, args.Error(1)
}

func (m *mockPolicyService) UpdatePolicy(ctx context.Context, policy model.PolicyDefinition, userID string) (*model.PolicyDefinition, error) {
	args := m.Called(ctx, policy, userID)
	p, _ := args.Get(0).(*model.PolicyDefinition)
	return p, args.Error(1)
}

func (m *mockPolicyService) DeletePolicy(ctx context.Context, policyID string, userID string) error {
	args := m.Called(ctx, policyID, userID)
	return args.Error(0)
}

func (m *mockPolicyService) GetPolicy(ctx context.Context, policyID string) (*model.PolicyDefinition, error) {
	args := m.Called(ctx, policyID)
	p, _ := args.Get(0).(*model.PolicyDefinition)
	return p, args.Error(1)
}

func (m *mockPolicyService) ListPolicies(ctx context.Context, limit int, offset int) ([]*model.PolicyDefinition, error) {
	args := m.Called(ctx, limit, offset)
	p, _ := args.Get(0).([]*model.PolicyDefinition)
	return p, args.Error(1)
}

func (m *mockPolicyService) BulkCreatePolicies(ctx context.Context, policies []model.PolicyDefinition, userID string) ([]string, error) {
	args := m.Called(ctx, policies, userID)
	ids, _ := args.Get(0).([]string)
	return ids, args.Error(1)
}

func (m *mockPolicyService) SearchPolicies(ctx context.Context, criteria model.PolicySearchCriteria) ([]*model.PolicyDefinition, error) {
	args := m.Called(ctx, criteria)
	p, _ := args.Get(0).([]*model.PolicyDefinition)
	return p, args.Error(1)
}

func policyRouter(svc *mockPolicyService) *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", "tester")
	})
	NewPolicyController(svc).RegisterRoutes(r.Group("/api/v1"))
	return r
}

func policyJSON(t *testing.T, policy model.PolicyDefinition) *bytes.Buffer {
	t.Helper()
	body, err := json.Marshal(policy)
	require.NoError(t, err)
	return bytes.NewBuffer(body)
}

func TestCreatePolicyEndpoint(t *testing.T) {
	policy := model.PolicyDefinition{Name: "doctors-read", Effect: "permit", Active: true}
	stored := policy
	stored.ID = "p-1"

	svc := new(mockPolicyService)
	svc.On("CreatePolicy", mock.Anything, mock.MatchedBy(func(p model.PolicyDefinition) bool {
		return p.Name == "doctors-read"
	}), "tester").Return(&stored, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/policies", policyJSON(t, policy))
	policyRouter(svc).ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	var created model.PolicyDefinition
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "p-1", created.ID)
	svc.AssertExpectations(t)
}

func TestCreatePolicyEndpointConflict(t *testing.T) {
	svc := new(mockPolicyService)
	svc.On("CreatePolicy", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, arbiter_errors.ErrPolicyConflict)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/policies",
		policyJSON(t, model.PolicyDefinition{ID: "p-1", Name: "dup", Effect: "permit"}))
	policyRouter(svc).ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestUpdatePolicyEndpointTakesIDFromPath(t *testing.T) {
	updated := model.PolicyDefinition{ID: "p-1", Name: "doctors-read", Effect: "deny", Version: 3}

	svc := new(mockPolicyService)
	svc.On("UpdatePolicy", mock.Anything, mock.MatchedBy(func(p model.PolicyDefinition) bool {
		return p.ID == "p-1" && p.Effect == "deny"
	}), "tester").Return(&updated, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/api/v1/policies/p-1",
		policyJSON(t, model.PolicyDefinition{Name: "doctors-read", Effect: "deny"}))
	policyRouter(svc).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestUpdatePolicyEndpointNotFound(t *testing.T) {
	svc := new(mockPolicyService)
	svc.On("UpdatePolicy", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, arbiter_errors.ErrPolicyNotFound)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/api/v1/policies/missing",
		policyJSON(t, model.PolicyDefinition{Name: "x", Effect: "permit"}))
	policyRouter(svc).ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeletePolicyEndpoint(t *testing.T) {
	svc := new(mockPolicyService)
	svc.On("DeletePolicy", mock.Anything, "p-1", "tester").Return(nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/policies/p-1", nil)
	policyRouter(svc).ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	svc.AssertExpectations(t)
}

func TestGetPolicyEndpointNotFound(t *testing.T) {
	svc := new(mockPolicyService)
	svc.On("GetPolicy", mock.Anything, "missing").Return(nil, arbiter_errors.ErrPolicyNotFound)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/policies/missing", nil)
	policyRouter(svc).ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListPoliciesEndpointPagination(t *testing.T) {
	svc := new(mockPolicyService)
	svc.On("ListPolicies", mock.Anything, 5, 20).Return([]*model.PolicyDefinition{}, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/policies?limit=5&offset=20", nil)
	policyRouter(svc).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestListPoliciesEndpointRejectsBadPagination(t *testing.T) {
	svc := new(mockPolicyService)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/policies?limit=many", nil)
	policyRouter(svc).ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNotCalled(t, "ListPolicies", mock.Anything, mock.Anything, mock.Anything)
}

func TestSearchPoliciesEndpoint(t *testing.T) {
	active := true

	svc := new(mockPolicyService)
	svc.On("SearchPolicies", mock.Anything, mock.MatchedBy(func(c model.PolicySearchCriteria) bool {
		return c.Effect == "deny" && c.Active != nil && *c.Active
	})).Return([]*model.PolicyDefinition{{ID: "p-2", Name: "no-purge", Effect: "deny"}}, nil)

	body, err := json.Marshal(model.PolicySearchCriteria{Effect: "deny", Active: &active})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/policies/search", bytes.NewBuffer(body))
	policyRouter(svc).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var results []*model.PolicyDefinition
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &results))
	require.Len(t, results, 1)
	assert.Equal(t, "no-purge", results[0].Name)
}

func TestBulkCreatePoliciesEndpoint(t *testing.T) {
	svc := new(mockPolicyService)
	svc.On("BulkCreatePolicies", mock.Anything, mock.Anything, "tester").
		Return([]string{"p-1", "p-2"}, nil)

	body, err := json.Marshal([]model.PolicyDefinition{
		{Name: "a", Effect: "permit"},
		{Name: "b", Effect: "deny"},
	})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/policies/bulk", bytes.NewBuffer(body))
	policyRouter(svc).ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp map[string][]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{"p-1", "p-2"}, resp["policy_ids"])
}
