// Package ports defines the core interfaces for the application.
package ports

import "context"

// Runner runs external commands on behalf of producers.
//
//go:generate mockgen -source=runner.go -destination=mocks/mock_runner.go -package=mocks
type Runner interface {
	// Run executes argv in dir and waits for it to exit.
	//
	// It returns the combined output of the process. A process that exits non-zero is
	// not an error: its output is returned as data so that it can be cached like any
	// other result. An error is returned only if the process could not be started.
	Run(ctx context.Context, argv []string, dir string) (string, error)
}
