package domain

import (
	"testing"

	apperrors "github.com/gclavel/assurvie/internal/platform/errors"
)

func TestValidateAllocation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		existing []AllocationShare
		proposed int64
		exclude  string
		wantCode apperrors.Code
	}{
		{
			name:     "first beneficiary full capital",
			proposed: 10000,
		},
		{
			name:     "sum exactly one hundred percent",
			existing: []AllocationShare{{ID: "ben-1", Hundredths: 6000}},
			proposed: 4000,
		},
		{
			name:     "sixty plus forty five rejected",
			existing: []AllocationShare{{ID: "ben-1", Hundredths: 6000}},
			proposed: 4500,
			wantCode: apperrors.CodeAllocationExceeded,
		},
		{
			name:     "one hundredth over rejected",
			existing: []AllocationShare{{ID: "ben-1", Hundredths: 6000}},
			proposed: 4001,
			wantCode: apperrors.CodeAllocationExceeded,
		},
		{
			name:     "edited share replaced not stacked",
			existing: []AllocationShare{{ID: "ben-1", Hundredths: 6000}, {ID: "ben-2", Hundredths: 4000}},
			proposed: 3000,
			exclude:  "ben-2",
		},
		{
			name:     "edit exceeding remains rejected",
			existing: []AllocationShare{{ID: "ben-1", Hundredths: 6000}, {ID: "ben-2", Hundredths: 4000}},
			proposed: 4100,
			exclude:  "ben-2",
			wantCode: apperrors.CodeAllocationExceeded,
		},
		{
			name:     "zero percent rejected",
			proposed: 0,
			wantCode: apperrors.CodeValidation,
		},
		{
			name:     "negative percent rejected",
			proposed: -100,
			wantCode: apperrors.CodeValidation,
		},
		{
			name:     "single share over full rejected",
			proposed: 10001,
			wantCode: apperrors.CodeValidation,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateAllocation(tt.existing, tt.proposed, tt.exclude)
			if tt.wantCode == apperrors.CodeUnknown {
				if err != nil {
					t.Fatalf("expected success, got %v", err)
				}
				return
			}
			if apperrors.CodeOf(err) != tt.wantCode {
				t.Fatalf("expected code %s, got %v", tt.wantCode, err)
			}
		})
	}
}
