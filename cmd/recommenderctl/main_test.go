package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Rajat083/Internship-Recommender/internal/app"
	"github.com/Rajat083/Internship-Recommender/internal/artifact"
	"github.com/Rajat083/Internship-Recommender/internal/datasource"
	"github.com/Rajat083/Internship-Recommender/internal/recommend"
	"github.com/Rajat083/Internship-Recommender/pkg/config"
)

func useMemoryCore(t *testing.T, rows ...datasource.Internship) *datasource.Static {
	t.Helper()
	src := datasource.NewStatic(rows...)
	store := artifact.NewMemory()
	prev := newCore
	newCore = func(_ context.Context, cfg *config.Config) (*app.Core, error) {
		return app.NewCoreWith(cfg, src, store, nil), nil
	}
	t.Cleanup(func() { newCore = prev })
	return src
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--config", ""}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestBuildThenRecommend(t *testing.T) {
	useMemoryCore(t,
		datasource.Internship{ID: 10, Title: "Data Analyst", Company: "Acme", Domain: "Data Science", RequiredSkills: "Python, SQL, Excel", Active: true},
		datasource.Internship{ID: 20, Title: "Backend Intern", Company: "Globex", Domain: "Software", RequiredSkills: "Java, Spring", Active: true},
	)

	out, err := runCLI(t, "build")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !strings.Contains(out, "2 internships") {
		t.Errorf("build output = %q", out)
	}

	out, err = runCLI(t, "recommend", "--domain", "Data Science", "--skills", "Python,Excel", "--top-k", "1", "--output-json")
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	var result recommend.StudentRecommendation
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("decoding %q: %v", out, err)
	}
	if result.TotalRecommendations != 1 || result.Recommendations[0].InternshipID != "10" {
		t.Errorf("result = %+v", result)
	}
	if len(result.StudentID) != 8 {
		t.Errorf("student id = %q", result.StudentID)
	}
}

func TestRecommendRequiresIndex(t *testing.T) {
	useMemoryCore(t, datasource.Internship{ID: 1, RequiredSkills: "Python", Active: true})
	_, err := runCLI(t, "recommend", "--domain", "Data", "--skills", "Python", "--top-k", "5", "--output-json")
	if err == nil || !strings.Contains(err.Error(), "run ensure or build first") {
		t.Errorf("err = %v", err)
	}
}

func TestRecommendRejectsBadTopK(t *testing.T) {
	useMemoryCore(t)
	_, err := runCLI(t, "recommend", "--domain", "Data", "--skills", "Python", "--top-k", "50")
	if err == nil || !strings.Contains(err.Error(), "top_k") {
		t.Errorf("err = %v", err)
	}
}

func TestImportCSVAndRebuild(t *testing.T) {
	src := useMemoryCore(t)
	path := filepath.Join(t.TempDir(), "internships.csv")
	csv := "internship_id,internship_title,company,domain,required_skills,stipend\n" +
		`1,ML Intern,Initech,Machine Learning,"Python, TensorFlow",2000` + "\n" +
		"2,,Initech,Web,JavaScript,0\n"
	if err := os.WriteFile(path, []byte(csv), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := runCLI(t, "import", "--file", path, "--rebuild")
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if !strings.Contains(out, "imported 1 of 2") || !strings.Contains(out, "rejected row 1") {
		t.Errorf("import output = %q", out)
	}
	if !strings.Contains(out, "index generation") {
		t.Errorf("expected rebuild report in %q", out)
	}
	rows, _ := src.FetchInternships(context.Background(), datasource.Filter{})
	if len(rows) != 1 || rows[0].ID != 1 {
		t.Errorf("stored rows = %+v", rows)
	}

	out, err = runCLI(t, "ensure")
	if err != nil || !strings.Contains(out, "1 internships") {
		t.Errorf("ensure: %q, %v", out, err)
	}
}

func TestVersionSkipsConfig(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"--config", "/does/not/exist.yaml", "version"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), appName+" version:") {
		t.Errorf("output = %q", out.String())
	}
}

func TestInternshipsList(t *testing.T) {
	useMemoryCore(t,
		datasource.Internship{ID: 3, Title: "ML Intern", Company: "Initech", Domain: "AI", RequiredSkills: "Python", Stipend: 2000, Active: true},
		datasource.Internship{ID: 1, Title: "Data Intern", Company: "Acme", Domain: "Data", RequiredSkills: "SQL", Active: true},
		datasource.Internship{ID: 2, Title: "Old Intern", Company: "Globex", Domain: "Web", RequiredSkills: "PHP", Active: false},
	)

	out, err := runCLI(t, "internships", "list", "--limit", "0", "--active-only=false", "--output-json=false")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "3 internships") || !strings.Contains(out, "Old Intern") {
		t.Errorf("list output = %q", out)
	}

	out, err = runCLI(t, "internships", "list", "--limit", "1", "--active-only", "--output-json")
	if err != nil {
		t.Fatalf("list --limit 1: %v", err)
	}
	var rows []datasource.Internship
	if err := json.Unmarshal([]byte(out), &rows); err != nil {
		t.Fatalf("decoding %q: %v", out, err)
	}
	if len(rows) != 1 || rows[0].ID != 1 {
		t.Errorf("rows = %+v, want only internship 1", rows)
	}

	out, err = runCLI(t, "internships", "list", "--limit", "5", "--active-only", "--output-json=false")
	if err != nil {
		t.Fatalf("list --active-only: %v", err)
	}
	if strings.Contains(out, "Old Intern") || !strings.Contains(out, "2 internships") {
		t.Errorf("active-only output = %q", out)
	}
}

func TestInternshipsListRejectsNegativeLimit(t *testing.T) {
	useMemoryCore(t)
	_, err := runCLI(t, "internships", "list", "--limit", "-1")
	if err == nil || !strings.Contains(err.Error(), "--limit") {
		t.Errorf("err = %v", err)
	}
}
