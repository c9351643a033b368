// Package ingestion defines the request and response types of the
// internship import pipeline and decodes JSON and CSV import files.
package ingestion

import (
	"github.com/Rajat083/Internship-Recommender/internal/datasource"
)

// ImportRequest is the JSON body accepted by POST /api/v1/internships.
type ImportRequest struct {
	Internships []datasource.Internship `json:"internships"`
}

// Rejection describes one row that failed validation.
type Rejection struct {
	Row    int               `json:"row"`
	ID     int64             `json:"internship_id"`
	Fields map[string]string `json:"fields"`
}

// ImportResponse is returned after an import batch has been applied.
type ImportResponse struct {
	Received  int         `json:"received"`
	Written   int         `json:"written"`
	Rejected  []Rejection `json:"rejected"`
	Published bool        `json:"change_published"`
}
