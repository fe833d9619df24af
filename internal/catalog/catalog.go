// Package catalog holds the static table of well-known pro players used for
// bulk onboarding, grouped by league.
package catalog

import "sort"

// Entry identifies one catalog player by riot id and home region.
type Entry struct {
	GameName string `json:"gameName"`
	TagLine  string `json:"tagLine"`
	Region   string `json:"region"`
}

var leagues = map[string][]Entry{
	"LCK": {
		{GameName: "Hide on bush", TagLine: "KR1", Region: "kr"},
		{GameName: "Chovy", TagLine: "KR1", Region: "kr"},
		{GameName: "Zeus", TagLine: "KR1", Region: "kr"},
		{GameName: "Gumayusi", TagLine: "KR1", Region: "kr"},
		{GameName: "Keria", TagLine: "KR1", Region: "kr"},
	},
	"LPL": {
		{GameName: "Knight", TagLine: "CN1", Region: "kr"},
		{GameName: "Bin", TagLine: "CN1", Region: "kr"},
		{GameName: "Elk", TagLine: "CN1", Region: "kr"},
	},
	"LEC": {
		{GameName: "Caps", TagLine: "EUW", Region: "euw1"},
		{GameName: "Humanoid", TagLine: "EUW", Region: "euw1"},
		{GameName: "Hans Sama", TagLine: "EUW", Region: "euw1"},
	},
	"LCS": {
		{GameName: "Berserker", TagLine: "NA1", Region: "na1"},
		{GameName: "APA", TagLine: "NA1", Region: "na1"},
		{GameName: "Impact", TagLine: "NA1", Region: "na1"},
	},
}

// Entries returns the catalog entries for a league key, or nil when the
// key is unknown. The returned slice is a copy.
func Entries(league string) []Entry {
	src, ok := leagues[league]
	if !ok {
		return nil
	}
	out := make([]Entry, len(src))
	copy(out, src)
	return out
}

// Leagues returns the available league keys, sorted.
func Leagues() []string {
	out := make([]string, 0, len(leagues))
	for k := range leagues {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
