//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

type Test mg.Namespace

// Runs all unit tests.
func (Test) Unit() error {
	return sh.RunV("go", "test", "./...")
}

// Runs all unit tests with the race detector.
func (Test) Race() error {
	return sh.RunV("go", "test", "-race", "./...")
}

// Writes coverage.out and prints the per-function summary.
func (Test) Cover() error {
	if err := sh.RunV("go", "test", "-coverprofile=coverage.out", "./..."); err != nil {
		return err
	}
	return sh.RunV("go", "tool", "cover", "-func=coverage.out")
}

// Runs go vet and the tests.
func Check() {
	mg.SerialDeps(Vet, Test.Unit)
}

// Runs go vet.
func Vet() error {
	return sh.RunV("go", "vet", "./...")
}
