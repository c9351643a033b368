// Package recommend turns a student's skills and domain into a ranked list
// of internships. The Assembler runs the similarity search and hydrates the
// hits from the internship store; the Handler exposes it over HTTP with
// validation, caching and analytics.
package recommend

import (
	"strings"

	"github.com/Rajat083/Internship-Recommender/internal/textnorm"
	"github.com/google/uuid"
)

// StudentDetails is the JSON body of a recommendation request.
type StudentDetails struct {
	StudentID string   `json:"student_id,omitempty"`
	Name      string   `json:"name"`
	Skills    []string `json:"skills"`
	Domain    string   `json:"domain"`
}

// Query is a validated recommendation request.
type Query struct {
	StudentID string
	Name      string
	Skills    []string
	Domain    string
	TopK      int
}

// Text is the search text for the query: the domain followed by the skills.
func (q Query) Text() string {
	return textnorm.QueryText(q.Domain, q.Skills)
}

// Recommendation is one ranked internship.
type Recommendation struct {
	Rank            int      `json:"rank"`
	InternshipID    string   `json:"internship_id"`
	InternshipTitle string   `json:"internship_title"`
	Company         string   `json:"company"`
	SimilarityScore float64  `json:"similarity_score"`
	RequiredSkills  []string `json:"required_skills"`
	Stipend         float64  `json:"stipend"`
	Domain          string   `json:"domain"`
}

// StudentRecommendation is the response to a recommendation request.
type StudentRecommendation struct {
	StudentID            string           `json:"student_id"`
	StudentName          string           `json:"student_name"`
	StudentSkills        []string         `json:"student_skills"`
	Recommendations      []Recommendation `json:"recommendations"`
	TotalRecommendations int              `json:"total_recommendations"`
}

// NewStudentID returns a short upper-case identifier for a request.
func NewStudentID() string {
	return strings.ToUpper(uuid.NewString()[:8])
}
