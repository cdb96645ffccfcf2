package test

import (
	"embed"
	"io/fs"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

//go:embed cases
var casesFS embed.FS

// TestCase is a scenario run against a set of replicas of one document.
type TestCase struct {
	// Description is a simple description for the test case.
	Description string
	// Replicas is the number of replicas to create.
	Replicas int
	// Steps is a list of all steps to run in order.
	Steps []Step
	// Converged requires every replica to have the same view and heads at the end.
	Converged bool
}

// Step is a single action run on one replica.
type Step struct {
	// Replica is the index of the replica the step runs on.
	Replica int
	// Query is a GraphQL operation to execute.
	Query string
	// Variables contains the variables for Query.
	Variables map[string]any
	// Response is the expected JSON response to Query.
	Response string
	// Error is set when Query is expected to fail.
	Error bool
	// Sync is a list of replicas to merge all changes from.
	Sync []int
	// Undo reverts the last local change.
	Undo bool
	// Redo reapplies the last undone change.
	Redo bool
	// Reload saves the replica and replaces it with the loaded snapshot.
	Reload bool
	// Expect is the expected JSON view of the replica after the step.
	Expect string
}

// TestCasePaths returns a list of all test case file paths.
func TestCasePaths() (paths []string, _ error) {
	return paths, fs.WalkDir(casesFS, "cases", func(path string, d fs.DirEntry, err error) error {
		if filepath.Ext(path) == ".yaml" {
			paths = append(paths, path)
		}
		return err
	})
}

// LoadTestCase loads and parses a test case file.
func LoadTestCase(path string) (*TestCase, error) {
	data, err := fs.ReadFile(casesFS, path)
	if err != nil {
		return nil, err
	}
	var testCase TestCase
	if err := yaml.Unmarshal(data, &testCase); err != nil {
		return nil, err
	}
	return &testCase, nil
}
