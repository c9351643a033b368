package vectorizer

import (
	"fmt"
	"testing"
)

var benchSkills = []string{
	"Python", "SQL", "Excel", "Java", "Spring", "React", "Node.js", "Docker", "Kubernetes",
	"TensorFlow", "Pandas", "Figma", "SEO", "Kotlin", "Android", "Linux", "AWS", "Go",
}

func benchCorpus(n int) []string {
	corpus := make([]string, n)
	for i := range corpus {
		corpus[i] = fmt.Sprintf("Intern %d Company%d %s, %s, %s",
			i, i%50, benchSkills[i%len(benchSkills)], benchSkills[(i*7)%len(benchSkills)], benchSkills[(i*13)%len(benchSkills)])
	}
	return corpus
}

func BenchmarkFit(b *testing.B) {
	for _, n := range []int{100, 1000, 10000} {
		corpus := benchCorpus(n)
		b.Run(fmt.Sprintf("docs_%d", n), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := Fit(corpus, DefaultOptions()); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkTransformDense(b *testing.B) {
	m, err := Fit(benchCorpus(1000), DefaultOptions())
	if err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.Dense(m.Transform("Data Science Python SQL Excel Pandas"))
	}
}
