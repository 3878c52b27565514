package core

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var NowFunc = time.Now // mockable

// Now returns the current time in UTC, truncated to what postgres stores.
func Now() time.Time {
	return NowFunc().UTC().Truncate(time.Microsecond)
}

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// Getwd finds the module root, the closest parent directory holding a go.mod file.
// go test runs from the package directory, and assets are resolved from the root.
func Getwd() string {
	wd, err := os.Getwd()
	if err != nil {
		log.Fatal(err)
	}
	currDir := wd
	for {
		if fi, err := os.Stat(filepath.Join(currDir, "go.mod")); err == nil && !fi.IsDir() {
			return currDir
		}
		newDir := filepath.Dir(currDir)
		if newDir == string(os.PathSeparator) || newDir == currDir {
			return wd // binaries deployed without sources
		}
		currDir = newDir
	}
}

// UniqueStrings returns ss without blanks and duplicates, keeping the first occurrence order.
func UniqueStrings(ss []string) []string {
	seen := make(map[string]struct{}, len(ss))
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
