package rule_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MrJamesThe3rd/outlay/internal/approval"
	"github.com/MrJamesThe3rd/outlay/internal/auth"
	"github.com/MrJamesThe3rd/outlay/internal/directory"
	rulehttp "github.com/MrJamesThe3rd/outlay/internal/http/rule"
)

func newRouter(t *testing.T, id auth.Identity) (chi.Router, *approval.MockRepository) {
	t.Helper()

	repo := approval.NewMockRepository(gomock.NewController(t))

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
		})
	})
	r.Route("/rules", rulehttp.NewHandler(approval.NewService(repo)).Routes)

	return r, repo
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	return rec
}

func admin() auth.Identity {
	return auth.Identity{UserID: uuid.New(), CompanyID: uuid.New(), Role: directory.RoleAdmin}
}

func TestHandler_Create(t *testing.T) {
	id := admin()
	a1, a2 := uuid.New(), uuid.New()

	t.Run("Created", func(t *testing.T) {
		router, repo := newRouter(t, id)

		repo.EXPECT().CreateRule(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, rule *approval.Rule) error {
				assert.Equal(t, id.CompanyID, rule.CompanyID)
				assert.Equal(t, int64(100000), rule.MinAmount)
				require.NotNil(t, rule.MaxAmount)
				assert.Equal(t, int64(1000000), *rule.MaxAmount)
				assert.Equal(t, []approval.RuleApprover{{UserID: a1, Order: 1}, {UserID: a2, Order: 2}}, rule.Approvers)
				assert.Equal(t, 60, rule.MinApprovalPercentage)
				rule.ID = uuid.New()
				return nil
			})
		repo.EXPECT().ListRules(gomock.Any(), id.CompanyID, true).Return(nil, nil)

		body := `{"name":"Mid","minAmount":1000,"maxAmount":"10000.00","approvers":["` + a1.String() + `","` + a2.String() + `"],"minApprovalPercentage":60}`

		rec := do(router, http.MethodPost, "/rules", body)
		require.Equal(t, http.StatusCreated, rec.Code)

		var resp map[string]any
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "1000", resp["minAmount"])
		assert.Equal(t, true, resp["isActive"])
	})

	t.Run("NoApprovers", func(t *testing.T) {
		router, _ := newRouter(t, id)

		rec := do(router, http.MethodPost, "/rules", `{"name":"Empty","approvers":[]}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), `"field":"approvers"`)
	})

	t.Run("MaxBelowMin", func(t *testing.T) {
		router, _ := newRouter(t, id)

		body := `{"name":"Bad","minAmount":500,"maxAmount":100,"approvers":["` + a1.String() + `"]}`

		rec := do(router, http.MethodPost, "/rules", body)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), `"field":"maxAmount"`)
	})
}

func TestHandler_Update(t *testing.T) {
	id := admin()
	ruleID := uuid.New()
	approver := uuid.New()

	router, repo := newRouter(t, id)

	current := &approval.Rule{
		ID:                        ruleID,
		CompanyID:                 id.CompanyID,
		Name:                      "Large",
		MinAmount:                 1000000,
		MaxAmount:                 new(int64(5000000)),
		Approvers:                 []approval.RuleApprover{{UserID: approver, Order: 1}},
		IsManagerApproverRequired: false,
		MinApprovalPercentage:     100,
		IsActive:                  true,
	}

	repo.EXPECT().GetRule(gomock.Any(), id.CompanyID, ruleID).
		DoAndReturn(func(context.Context, uuid.UUID, uuid.UUID) (*approval.Rule, error) {
			clone := *current
			return &clone, nil
		}).Times(2)
	repo.EXPECT().UpdateRule(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, rule *approval.Rule) error {
			assert.Equal(t, "Large", rule.Name)
			assert.Nil(t, rule.MaxAmount)
			assert.True(t, rule.IsSequential)
			assert.False(t, rule.IsManagerApproverRequired)
			return nil
		})
	repo.EXPECT().ListRules(gomock.Any(), id.CompanyID, true).Return(nil, nil)

	rec := do(router, http.MethodPatch, "/rules/"+ruleID.String(), `{"maxAmount":null,"isSequential":true}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Nil(t, resp["maxAmount"])
}

func TestHandler_Delete(t *testing.T) {
	id := admin()

	t.Run("Deactivated", func(t *testing.T) {
		router, repo := newRouter(t, id)
		ruleID := uuid.New()

		repo.EXPECT().DeactivateRule(gomock.Any(), id.CompanyID, ruleID).Return(nil)

		rec := do(router, http.MethodDelete, "/rules/"+ruleID.String(), "")
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("Missing", func(t *testing.T) {
		router, repo := newRouter(t, id)
		ruleID := uuid.New()

		repo.EXPECT().DeactivateRule(gomock.Any(), id.CompanyID, ruleID).Return(approval.ErrNotFound)

		rec := do(router, http.MethodDelete, "/rules/"+ruleID.String(), "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
