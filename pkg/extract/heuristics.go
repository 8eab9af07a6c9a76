package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/jmylchreest/matchscrape/pkg/selector"
)

var (
	clockRe      = regexp.MustCompile(`\d{1,2}:\d{2}`)
	scorePairRe  = regexp.MustCompile(`\b(\d{1,2})\s*[-x]\s*(\d{1,2})\b`)
	smallNumRe   = regexp.MustCompile(`^\d{1,2}$`)
	numberRe     = regexp.MustCompile(`^\d+$`)
	dayMonthRe   = regexp.MustCompile(`\b\d{1,2}/\d{1,2}\b`)
	captionWords = []string{
		"feira", "sábado", "sabado", "domingo", "jogos de hoje",
		"today", "monday", "tuesday", "wednesday", "thursday", "friday",
		"saturday", "sunday",
	}
)

func lines(text string) []string {
	var out []string
	for _, l := range strings.Split(text, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

// teamLines returns the lines of text that read like a team name.
func teamLines(text string) []string {
	var found []string
	for _, l := range lines(text) {
		n := utf8.RuneCountInString(l)
		if n <= 2 || n >= 50 {
			continue
		}
		if clockRe.MatchString(l) || numberRe.MatchString(l) || scorePairRe.MatchString(l) {
			continue
		}
		if selector.IsStatus(l) {
			continue
		}
		found = append(found, l)
	}
	return found
}

// teamsFromText picks the first two lines that read like a team name.
func teamsFromText(text string) (home, away string) {
	found := teamLines(text)
	switch len(found) {
	case 0:
		return "", ""
	case 1:
		return found[0], ""
	}
	return found[0], found[1]
}

// otherTeam returns the first team-like line of text that is not team.
func otherTeam(text, team string) string {
	for _, l := range teamLines(text) {
		if !strings.EqualFold(l, team) {
			return l
		}
	}
	return ""
}

func kickoffFromText(text string) string {
	return clockRe.FindString(text)
}

// scoreFromText reads "N - M" / "NxM", else two isolated one- or
// two-digit lines.
func scoreFromText(text string) (home, away string) {
	if m := scorePairRe.FindStringSubmatch(text); m != nil {
		return m[1], m[2]
	}
	var nums []string
	for _, l := range lines(text) {
		if smallNumRe.MatchString(l) {
			nums = append(nums, l)
			if len(nums) == 2 {
				return nums[0], nums[1]
			}
		}
	}
	return "", ""
}

// IsCaption reports whether a heading is a weekday or date caption
// rather than a competition name.
func IsCaption(text string) bool {
	t := strings.ToLower(text)
	for _, w := range captionWords {
		if strings.Contains(t, w) {
			return true
		}
	}
	return dayMonthRe.MatchString(t)
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
