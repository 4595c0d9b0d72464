package approval_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MrJamesThe3rd/outlay/internal/approval"
	"github.com/MrJamesThe3rd/outlay/internal/auth"
	"github.com/MrJamesThe3rd/outlay/internal/directory"
	"github.com/MrJamesThe3rd/outlay/internal/expense"
	approvalhttp "github.com/MrJamesThe3rd/outlay/internal/http/approval"
)

type fixture struct {
	repo   *expense.MockRepository
	rules  *expense.MockRuleSource
	events *expense.MockPublisher
	router chi.Router
}

func newFixture(t *testing.T, id auth.Identity) fixture {
	t.Helper()

	ctrl := gomock.NewController(t)
	f := fixture{
		repo:   expense.NewMockRepository(ctrl),
		rules:  expense.NewMockRuleSource(ctrl),
		events: expense.NewMockPublisher(ctrl),
	}

	svc := expense.NewService(f.repo, f.rules, expense.NewMockDirectory(ctrl), expense.NewMockConverter(ctrl), f.events)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
		})
	})
	r.Route("/approvals", approvalhttp.NewHandler(svc).Routes)

	f.router = r

	return f
}

func (f fixture) post(path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	return rec
}

func pendingExpense(companyID uuid.UUID, approvers ...uuid.UUID) *expense.Expense {
	steps := make([]approval.Step, len(approvers))
	for i, a := range approvers {
		steps[i] = approval.Step{ApproverID: a, Order: i + 1, Status: approval.StepPending}
	}

	return &expense.Expense{
		ID:              uuid.New(),
		UserID:          uuid.New(),
		CompanyID:       companyID,
		Amount:          500000,
		Currency:        "INR",
		ConvertedAmount: new(int64(500000)),
		CompanyCurrency: "INR",
		Category:        expense.CategoryTravel,
		Date:            time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		Status:          approval.StatusSubmitted,
		Approvals:       steps,
		Version:         1,
	}
}

func TestHandler_Approve(t *testing.T) {
	id := auth.Identity{UserID: uuid.New(), CompanyID: uuid.New(), Role: directory.RoleManager}
	other := uuid.New()

	rule := &approval.Rule{
		ID:                    uuid.New(),
		IsActive:              true,
		MinApprovalPercentage: 50,
		Approvers:             []approval.RuleApprover{{UserID: id.UserID, Order: 1}, {UserID: other, Order: 2}},
	}

	t.Run("PercentageReached", func(t *testing.T) {
		f := newFixture(t, id)
		e := pendingExpense(id.CompanyID, id.UserID, other)

		f.repo.EXPECT().GetExpense(gomock.Any(), id.CompanyID, e.ID).Return(e, nil)
		f.rules.EXPECT().Active(gomock.Any(), id.CompanyID).Return([]*approval.Rule{rule}, nil)
		f.repo.EXPECT().SaveWorkflow(gomock.Any(), gomock.Any()).Return(nil)
		f.events.EXPECT().Publish(gomock.Any(), gomock.Any())

		rec := f.post("/approvals/"+e.ID.String()+"/approve", `{"comment":"ok"}`)
		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			Expense struct {
				Status string `json:"status"`
			} `json:"expense"`
			Resolution string `json:"resolution"`
			Percentage *int   `json:"percentage"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, "Approved", body.Expense.Status)
		assert.Equal(t, "percentage", body.Resolution)
		require.NotNil(t, body.Percentage)
		assert.Equal(t, 50, *body.Percentage)
	})

	t.Run("EmptyBody", func(t *testing.T) {
		f := newFixture(t, id)
		e := pendingExpense(id.CompanyID, id.UserID, other)

		f.repo.EXPECT().GetExpense(gomock.Any(), id.CompanyID, e.ID).Return(e, nil)
		f.rules.EXPECT().Active(gomock.Any(), id.CompanyID).Return([]*approval.Rule{rule}, nil)
		f.repo.EXPECT().SaveWorkflow(gomock.Any(), gomock.Any()).Return(nil)
		f.events.EXPECT().Publish(gomock.Any(), gomock.Any())

		rec := f.post("/approvals/"+e.ID.String()+"/approve", "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("NotAnApprover", func(t *testing.T) {
		f := newFixture(t, id)
		e := pendingExpense(id.CompanyID, other)

		f.repo.EXPECT().GetExpense(gomock.Any(), id.CompanyID, e.ID).Return(e, nil)
		f.rules.EXPECT().Active(gomock.Any(), id.CompanyID).Return(nil, nil)

		rec := f.post("/approvals/"+e.ID.String()+"/approve", "")
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("AlreadyDecided", func(t *testing.T) {
		f := newFixture(t, id)
		e := pendingExpense(id.CompanyID, id.UserID)
		e.Status = approval.StatusApproved

		f.repo.EXPECT().GetExpense(gomock.Any(), id.CompanyID, e.ID).Return(e, nil)

		rec := f.post("/approvals/"+e.ID.String()+"/approve", "")
		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestHandler_RejectNeedsComment(t *testing.T) {
	id := auth.Identity{UserID: uuid.New(), CompanyID: uuid.New(), Role: directory.RoleManager}
	f := newFixture(t, id)
	e := pendingExpense(id.CompanyID, id.UserID)

	rec := f.post("/approvals/"+e.ID.String()+"/reject", `{"comment":"  "}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "comment", body["field"])
}

func TestHandler_Inbox(t *testing.T) {
	id := auth.Identity{UserID: uuid.New(), CompanyID: uuid.New(), Role: directory.RoleAdmin}
	f := newFixture(t, id)

	mine := pendingExpense(id.CompanyID, id.UserID)

	f.repo.EXPECT().ListPendingFor(gomock.Any(), id.CompanyID, id.UserID).Return([]*expense.Expense{mine}, nil)

	req := httptest.NewRequest(http.MethodGet, "/approvals", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body []map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body, 1)
	assert.Equal(t, mine.ID.String(), body[0]["id"])
}
