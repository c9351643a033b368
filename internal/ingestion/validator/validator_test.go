package validator

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/Rajat083/Internship-Recommender/internal/datasource"
	apperrors "github.com/Rajat083/Internship-Recommender/pkg/errors"
)

func TestValidateInternshipTrims(t *testing.T) {
	row := datasource.Internship{
		ID:             3,
		Title:          "  Data Analyst ",
		Company:        " Acme ",
		RequiredSkills: " Python, SQL ",
	}
	if err := ValidateInternship(&row); err != nil {
		t.Fatal(err)
	}
	if row.Title != "Data Analyst" || row.Company != "Acme" || row.RequiredSkills != "Python, SQL" {
		t.Errorf("row not trimmed: %+v", row)
	}
}

func TestValidateInternshipFields(t *testing.T) {
	tests := []struct {
		name  string
		row   datasource.Internship
		field string
	}{
		{"zero id", datasource.Internship{Title: "x", RequiredSkills: "y"}, "internship_id"},
		{"blank title", datasource.Internship{ID: 1, Title: "  ", RequiredSkills: "y"}, "internship_title"},
		{"long title", datasource.Internship{ID: 1, Title: strings.Repeat("t", maxTitleLength+1), RequiredSkills: "y"}, "internship_title"},
		{"no skills", datasource.Internship{ID: 1, Title: "x"}, "required_skills"},
		{"negative stipend", datasource.Internship{ID: 1, Title: "x", RequiredSkills: "y", Stipend: -1}, "stipend"},
		{"nan stipend", datasource.Internship{ID: 1, Title: "x", RequiredSkills: "y", Stipend: math.NaN()}, "stipend"},
		{"long company", datasource.Internship{ID: 1, Title: "x", RequiredSkills: "y", Company: strings.Repeat("c", maxCompanyLength+1)}, "company"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := tt.row
			err := ValidateInternship(&row)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("err = %v, want ValidationError", err)
			}
			if _, ok := ve.Fields[tt.field]; !ok {
				t.Errorf("fields = %v, want %q", ve.Fields, tt.field)
			}
			if !errors.Is(err, apperrors.ErrInvalidInput) {
				t.Error("validation errors must match ErrInvalidInput")
			}
		})
	}
}

func TestValidationErrorMessageIsSorted(t *testing.T) {
	err := &ValidationError{Fields: map[string]string{"stipend": "bad", "internship_id": "bad"}}
	if got := err.Error(); got != "internship_id:bad; stipend:bad" {
		t.Errorf("Error() = %q", got)
	}
}
