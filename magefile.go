//go:build mage
// +build mage

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

var (
	binDir  = "bin"
	appName = "storefront-backend"
)

var Default = Build

func Tidy() error {
	return sh.RunV("go", "mod", "tidy")
}

func Vet() error {
	return sh.RunV("go", "vet", "./...")
}

// Test runs the suite against in-memory SQLite (needs cgo for go-sqlite3).
func Test() error {
	fmt.Println("Testing...")
	env := map[string]string{"CGO_ENABLED": "1"}
	return sh.RunWithV(env, "go", "test", "./...", "-count=1")
}

func Build() error {
	mg.Deps(Tidy)

	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return err
	}
	out := filepath.Join(binDir, appName+exeSuffix())
	fmt.Println("Building:", out)
	return sh.RunV("go", "build", "-trimpath", "-o", out, ".")
}

func Run() error {
	fmt.Println("Running (go run) on $PORT ...")
	return sh.RunV("go", "run", ".")
}

// Check runs vet and the tests.
func Check() {
	mg.SerialDeps(Vet, Test)
}

func Clean() error {
	return os.RemoveAll(binDir)
}

func exeSuffix() string {
	if runtime.GOOS == "windows" {
		return ".exe"
	}
	return ""
}
