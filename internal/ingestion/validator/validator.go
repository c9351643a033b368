// Package validator checks imported internship rows before they are
// written. Errors carry per-field messages.
package validator

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/Rajat083/Internship-Recommender/internal/datasource"
	apperrors "github.com/Rajat083/Internship-Recommender/pkg/errors"
)

const (
	maxTitleLength   = 512
	maxCompanyLength = 256
	maxDomainLength  = 256
	maxSkillsLength  = 4096
)

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s:%s", k, e.Fields[k])
	}
	return strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return apperrors.ErrInvalidInput }

// ValidateInternship checks one row. Text fields are trimmed in place.
func ValidateInternship(row *datasource.Internship) error {
	errs := make(map[string]string)

	if row.ID <= 0 {
		errs["internship_id"] = "internship_id must be a positive integer"
	}

	row.Title = strings.TrimSpace(row.Title)
	if row.Title == "" {
		errs["internship_title"] = "internship_title is required"
	} else if len(row.Title) > maxTitleLength {
		errs["internship_title"] = fmt.Sprintf("internship_title must be at most %d characters", maxTitleLength)
	}

	row.Company = strings.TrimSpace(row.Company)
	if len(row.Company) > maxCompanyLength {
		errs["company"] = fmt.Sprintf("company must be at most %d characters", maxCompanyLength)
	}
	row.Domain = strings.TrimSpace(row.Domain)
	if len(row.Domain) > maxDomainLength {
		errs["domain"] = fmt.Sprintf("domain must be at most %d characters", maxDomainLength)
	}

	row.RequiredSkills = strings.TrimSpace(row.RequiredSkills)
	if row.RequiredSkills == "" {
		errs["required_skills"] = "required_skills is required"
	} else if len(row.RequiredSkills) > maxSkillsLength {
		errs["required_skills"] = fmt.Sprintf("required_skills must be at most %d characters", maxSkillsLength)
	}

	if math.IsNaN(row.Stipend) || math.IsInf(row.Stipend, 0) || row.Stipend < 0 {
		errs["stipend"] = "stipend must be a non-negative number"
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
