package domain

import (
	"strconv"

	apperrors "github.com/gclavel/assurvie/internal/platform/errors"
)

// fullAllocationHundredths is 100.00% expressed in hundredths of a percent.
const fullAllocationHundredths int64 = 10000

// AllocationShare is one beneficiary's allocated percentage in hundredths
// of a percent.
type AllocationShare struct {
	ID         string
	Hundredths int64
}

// ValidateAllocation checks that adding proposedHundredths to the existing
// shares keeps the policy's total at or under 100.00%. excludeID names a
// share being replaced (the edited beneficiary's current row); pass the
// empty string when adding a new one. An exact total of 100.00% is allowed.
func ValidateAllocation(existing []AllocationShare, proposedHundredths int64, excludeID string) error {
	if proposedHundredths <= 0 || proposedHundredths > fullAllocationHundredths {
		return apperrors.WithMetadata(apperrors.CodeValidation,
			"beneficiary percentage must be between 0.01 and 100.00",
			map[string]string{"proposed_hundredths": strconv.FormatInt(proposedHundredths, 10)})
	}

	total := proposedHundredths
	for _, share := range existing {
		if excludeID != "" && share.ID == excludeID {
			continue
		}
		total += share.Hundredths
	}
	if total > fullAllocationHundredths {
		return apperrors.WithMetadata(apperrors.CodeAllocationExceeded,
			"beneficiary allocation exceeds 100%",
			map[string]string{
				"total_hundredths":    strconv.FormatInt(total, 10),
				"proposed_hundredths": strconv.FormatInt(proposedHundredths, 10),
			})
	}
	return nil
}
