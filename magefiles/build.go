//go:build mage

package main

import (
	"fmt"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

type Build mg.Namespace

const binDir = "bin"

// Builds the qr3d binary into bin/.
func (Build) CLI() error {
	out := filepath.Join(binDir, "qr3d"+exeSuffix())
	fmt.Println("Building", out)
	return sh.RunV("go", "build", "-o", out, "./cmd/qr3d")
}

// Installs qr3d into GOBIN.
func (Build) Install() error {
	return sh.RunV("go", "install", "./cmd/qr3d")
}

// Removes build output.
func Clean() error {
	return sh.Rm(binDir)
}
