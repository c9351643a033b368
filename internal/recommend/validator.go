package recommend

import (
	"fmt"
	"sort"
	"strings"

	apperrors "github.com/Rajat083/Internship-Recommender/pkg/errors"
)

const (
	maxNameLength   = 256
	maxDomainLength = 256
	maxSkills       = 100
	maxSkillLength  = 128
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
		parts[i] = fmt.Sprintf("%s: %s", k, e.Fields[k])
	}
	return strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return apperrors.ErrInvalidInput }

// Validate checks a request body and top_k and returns the Query to run.
// Blank skills are dropped; at least one must remain.
func Validate(d StudentDetails, topK, maxTopK int) (Query, error) {
	errs := make(map[string]string)

	name := strings.TrimSpace(d.Name)
	if name == "" {
		errs["name"] = "name is required"
	} else if len(name) > maxNameLength {
		errs["name"] = fmt.Sprintf("name must be at most %d characters", maxNameLength)
	}

	domain := strings.TrimSpace(d.Domain)
	if domain == "" {
		errs["domain"] = "domain is required"
	} else if len(domain) > maxDomainLength {
		errs["domain"] = fmt.Sprintf("domain must be at most %d characters", maxDomainLength)
	}

	skills := make([]string, 0, len(d.Skills))
	for _, s := range d.Skills {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if len(s) > maxSkillLength {
			errs["skills"] = fmt.Sprintf("each skill must be at most %d characters", maxSkillLength)
			break
		}
		skills = append(skills, s)
	}
	if _, bad := errs["skills"]; !bad {
		switch {
		case len(skills) == 0:
			errs["skills"] = "at least one skill is required"
		case len(skills) > maxSkills:
			errs["skills"] = fmt.Sprintf("at most %d skills are allowed", maxSkills)
		}
	}

	if topK < 1 || topK > maxTopK {
		errs["top_k"] = fmt.Sprintf("top_k must be between 1 and %d", maxTopK)
	}

	if len(errs) > 0 {
		return Query{}, &ValidationError{Fields: errs}
	}
	return Query{
		StudentID: strings.TrimSpace(d.StudentID),
		Name:      name,
		Skills:    skills,
		Domain:    domain,
		TopK:      topK,
	}, nil
}
