// Command recommenderctl is the operator CLI for the internship recommender.
// It trains the vectorizer, builds and checks the index artifacts, imports
// internships and runs recommendations against the same core the HTTP
// service uses.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
