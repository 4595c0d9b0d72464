package matching_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MrJamesThe3rd/outlay/internal/expense"
	"github.com/MrJamesThe3rd/outlay/internal/matching"
	"github.com/MrJamesThe3rd/outlay/internal/validation"
)

func TestService_Learn(t *testing.T) {
	companyID := uuid.New()

	type testCase struct {
		name      string
		params    matching.LearnParams
		setupMock func(repo *matching.MockRepository)
		wantField string
	}

	tests := []testCase{
		{
			name: "Stored",
			params: matching.LearnParams{
				Pattern:     "  UBER *TRIP ",
				Description: "Uber",
				Category:    new(expense.CategoryTransportation),
			},
			setupMock: func(repo *matching.MockRepository) {
				repo.EXPECT().CreateMapping(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, m *matching.Mapping) error {
						assert.Equal(t, "UBER *TRIP", m.Pattern)
						assert.Equal(t, companyID, m.CompanyID)
						return nil
					})
			},
		},
		{
			name:      "PatternTooShort",
			params:    matching.LearnParams{Pattern: "ab", Description: "x"},
			wantField: "pattern",
		},
		{
			name:      "MissingDescription",
			params:    matching.LearnParams{Pattern: "STARBUCKS"},
			wantField: "description",
		},
		{
			name: "UnknownCategory",
			params: matching.LearnParams{
				Pattern:     "STARBUCKS",
				Description: "Starbucks",
				Category:    new(expense.Category("Coffee")),
			},
			wantField: "category",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := matching.NewMockRepository(gomock.NewController(t))
			if tt.setupMock != nil {
				tt.setupMock(repo)
			}

			m, err := matching.NewService(repo).Learn(context.Background(), companyID, tt.params)
			if tt.wantField != "" {
				var verr *validation.Error
				require.ErrorAs(t, err, &verr)
				assert.Equal(t, tt.wantField, verr.Field)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, "Uber", m.Description)
		})
	}
}

func TestService_Suggest(t *testing.T) {
	companyID := uuid.New()
	repo := matching.NewMockRepository(gomock.NewController(t))
	svc := matching.NewService(repo)

	repo.EXPECT().FindMatch(gomock.Any(), companyID, "UBER *TRIP 8HJ2").
		Return(&matching.Suggestion{Description: "Uber"}, nil)

	got, err := svc.Suggest(context.Background(), companyID, "UBER *TRIP 8HJ2")
	require.NoError(t, err)
	assert.Equal(t, "Uber", got.Description)

	got, err = svc.Suggest(context.Background(), companyID, "   ")
	require.NoError(t, err)
	assert.Nil(t, got)
}
