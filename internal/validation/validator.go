package validation

import (
	"fmt"
	"regexp"

	"github.com/joseph-ayodele/provider-ingest/internal/common"
	"github.com/joseph-ayodele/provider-ingest/internal/entity"
)

var reZip = regexp.MustCompile(`^\d{5}(-\d{4})?$`)

// Result is the outcome of validating one record.
type Result struct {
	Valid      bool
	Violations []common.ValidationError
}

// Messages renders violations as "field: message", soft ones prefixed with "warning".
func (r Result) Messages() []string {
	out := make([]string, 0, len(r.Violations))
	for _, v := range r.Violations {
		if v.Soft {
			out = append(out, fmt.Sprintf("warning: %s %s", v.Field, v.Message))
			continue
		}
		out = append(out, fmt.Sprintf("%s %s", v.Field, v.Message))
	}
	return out
}

// Check runs the hard and soft checks against rec.
func Check(rec entity.CanonicalRecord) Result {
	v := common.NewValidator().
		Field("name", rec.Name, common.Required).
		Field("address", rec.Address, common.Required).
		Field("city", rec.City, common.Required).
		Soft("zip_code", rec.ZipCode, common.Matches(reZip, "a 5 or 5+4 digit ZIP code")).
		Soft("phone", rec.Phone, common.MinDigits(10)).
		Soft("capacity", rec.Capacity, common.NonNegative).
		Soft("age_range", rec, ageOrder)

	return Result{Valid: !v.HasErrors(), Violations: v.Errors()}
}

// Validate reports whether rec passes the hard checks, with every violation described.
func Validate(rec entity.CanonicalRecord) (bool, []string) {
	r := Check(rec)
	return r.Valid, r.Messages()
}

func ageOrder(fieldName string, value interface{}) *common.ValidationError {
	rec, ok := value.(entity.CanonicalRecord)
	if !ok || rec.AgeMinMonths == nil || rec.AgeMaxMonths == nil {
		return nil
	}
	if *rec.AgeMinMonths > *rec.AgeMaxMonths {
		return &common.ValidationError{
			Field:   fieldName,
			Value:   fmt.Sprintf("%d-%d", *rec.AgeMinMonths, *rec.AgeMaxMonths),
			Message: "minimum age exceeds maximum age",
		}
	}
	return nil
}
