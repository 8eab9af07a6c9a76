// Package fixture embeds the saved pages used by tests across packages.
package fixture

import (
	"embed"
	"strings"
)

//go:embed testdata/*.html
var pages embed.FS

func read(name string) string {
	b, err := pages.ReadFile("testdata/" + name)
	if err != nil {
		panic(err)
	}
	return string(b)
}

// Matches is a listing of five cards in two competition sections.
func Matches() string { return read("matches.html") }

// MatchesRenamed is Matches after the site renamed its card class from
// MatchCard to MatchCardV2.
func MatchesRenamed() string {
	return strings.ReplaceAll(Matches(), `class="MatchCard"`, `class="MatchCardV2"`)
}

// Fallback has game rows that no catalog card pattern matches.
func Fallback() string { return read("fallback.html") }

// Bare has no match content at all.
func Bare() string { return read("bare.html") }
