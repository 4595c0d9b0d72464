package expense_test

import (
	"context"
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
	expensehttp "github.com/MrJamesThe3rd/outlay/internal/http/expense"
)

type fixture struct {
	repo      *expense.MockRepository
	rules     *expense.MockRuleSource
	directory *expense.MockDirectory
	router    chi.Router
}

func newFixture(t *testing.T, id auth.Identity) fixture {
	t.Helper()

	ctrl := gomock.NewController(t)
	f := fixture{
		repo:      expense.NewMockRepository(ctrl),
		rules:     expense.NewMockRuleSource(ctrl),
		directory: expense.NewMockDirectory(ctrl),
	}

	svc := expense.NewService(f.repo, f.rules, f.directory, expense.NewMockConverter(ctrl), expense.NewMockPublisher(ctrl))

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
		})
	})
	r.Route("/expenses", expensehttp.NewHandler(svc).Routes)

	f.router = r

	return f
}

func (f fixture) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	return rec
}

func employee() auth.Identity {
	return auth.Identity{UserID: uuid.New(), CompanyID: uuid.New(), Role: directory.RoleEmployee}
}

func TestHandler_Create(t *testing.T) {
	id := employee()

	tests := []struct {
		name      string
		body      string
		setupMock func(f fixture)
		wantCode  int
		wantField string
	}{
		{
			name: "Created",
			body: `{"amount":"12.50","currency":"usd","category":"Food","description":"Team lunch","date":"2025-03-01"}`,
			setupMock: func(f fixture) {
				f.repo.EXPECT().CreateExpense(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, e *expense.Expense) error {
						assert.Equal(t, int64(1250), e.Amount)
						assert.Equal(t, "USD", e.Currency)
						assert.Equal(t, id.UserID, e.UserID)
						e.ID = uuid.New()
						return nil
					})
			},
			wantCode: http.StatusCreated,
		},
		{
			name:      "TooManyDecimals",
			body:      `{"amount":12.505,"description":"x","date":"2025-03-01"}`,
			wantCode:  http.StatusBadRequest,
			wantField: "amount",
		},
		{
			name:      "BadDate",
			body:      `{"amount":10,"description":"x","date":"03/01/2025"}`,
			wantCode:  http.StatusBadRequest,
			wantField: "date",
		},
		{
			name:      "MissingDescription",
			body:      `{"amount":10,"currency":"INR","date":"2025-03-01"}`,
			wantCode:  http.StatusBadRequest,
			wantField: "description",
		},
		{
			name:     "Malformed",
			body:     `{"amount":`,
			wantCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, id)
			if tt.setupMock != nil {
				tt.setupMock(f)
			}

			rec := f.do(http.MethodPost, "/expenses", tt.body)
			assert.Equal(t, tt.wantCode, rec.Code)

			if tt.wantField != "" {
				var body map[string]string
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
				assert.Equal(t, tt.wantField, body["field"])
			}
		})
	}
}

func TestHandler_Get(t *testing.T) {
	id := employee()
	expenseID := uuid.New()

	t.Run("Own", func(t *testing.T) {
		f := newFixture(t, id)
		f.repo.EXPECT().GetExpense(gomock.Any(), id.CompanyID, expenseID).Return(&expense.Expense{
			ID:     expenseID,
			UserID: id.UserID,
			Amount: 500000,
			Date:   time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
			Status: approval.StatusDraft,
		}, nil)

		rec := f.do(http.MethodGet, "/expenses/"+expenseID.String(), "")
		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			Amount string `json:"amount"`
			Date   string `json:"date"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, "5000", body.Amount)
		assert.Equal(t, "2025-03-01", body.Date)
	})

	t.Run("SomeoneElses", func(t *testing.T) {
		f := newFixture(t, id)
		f.repo.EXPECT().GetExpense(gomock.Any(), id.CompanyID, expenseID).
			Return(&expense.Expense{ID: expenseID, UserID: uuid.New()}, nil)

		rec := f.do(http.MethodGet, "/expenses/"+expenseID.String(), "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("BadID", func(t *testing.T) {
		f := newFixture(t, id)

		rec := f.do(http.MethodGet, "/expenses/nope", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandler_List(t *testing.T) {
	t.Run("EmployeeSeesOwnOnly", func(t *testing.T) {
		id := employee()
		f := newFixture(t, id)

		f.repo.EXPECT().ListExpenses(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, filter expense.ListFilter) ([]*expense.Expense, error) {
				require.NotNil(t, filter.UserID)
				assert.Equal(t, id.UserID, *filter.UserID)
				require.NotNil(t, filter.Status)
				assert.Equal(t, approval.StatusWaitingApproval, *filter.Status)
				return nil, nil
			})

		other := uuid.New()
		rec := f.do(http.MethodGet, "/expenses?status=Waiting+Approval&userId="+other.String(), "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[]`, rec.Body.String())
	})

	t.Run("ManagerFiltersByUser", func(t *testing.T) {
		id := auth.Identity{UserID: uuid.New(), CompanyID: uuid.New(), Role: directory.RoleManager}
		other := uuid.New()
		f := newFixture(t, id)

		f.repo.EXPECT().ListExpenses(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, filter expense.ListFilter) ([]*expense.Expense, error) {
				require.NotNil(t, filter.UserID)
				assert.Equal(t, other, *filter.UserID)
				require.NotNil(t, filter.From)
				assert.Equal(t, "2025-01-01", filter.From.Format(time.DateOnly))
				return nil, nil
			})

		rec := f.do(http.MethodGet, "/expenses?from=2025-01-01&userId="+other.String(), "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("UnknownCategory", func(t *testing.T) {
		f := newFixture(t, employee())

		rec := f.do(http.MethodGet, "/expenses?category=Yachts", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandler_SubmitNotDraft(t *testing.T) {
	id := employee()
	expenseID := uuid.New()
	f := newFixture(t, id)

	f.repo.EXPECT().GetExpense(gomock.Any(), id.CompanyID, expenseID).
		Return(&expense.Expense{ID: expenseID, UserID: id.UserID, Status: approval.StatusApproved}, nil)

	rec := f.do(http.MethodPost, "/expenses/"+expenseID.String()+"/submit", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandler_Delete(t *testing.T) {
	id := employee()
	expenseID := uuid.New()
	f := newFixture(t, id)

	f.repo.EXPECT().GetExpense(gomock.Any(), id.CompanyID, expenseID).
		Return(&expense.Expense{ID: expenseID, UserID: id.UserID, Status: approval.StatusDraft}, nil)
	f.repo.EXPECT().DeleteDraft(gomock.Any(), id.CompanyID, expenseID).Return(nil)

	rec := f.do(http.MethodDelete, "/expenses/"+expenseID.String(), "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
