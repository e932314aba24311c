package resolver

import (
	"sort"
	"strings"

	"github.com/riri-source/AirAlarmBot/internal/dictionary"
)

// Match is a resolved location: the canonical oblast and the subregion label
// the matched alias points at. For oblasts treated as a single unit the two
// are equal.
type Match struct {
	Region    string
	Subregion string
}

// Phrasings stripped from the front of a query so that "що по бучі",
// "як там буча" and "буча" normalize identically.
var queryPrefixes = []string{
	"що по",
	"що в",
	"що у",
	"як там",
	"what about",
	"how is",
}

// Administrative suffixes dropped from the tail of a query. "буча район"
// and "буча" must hit the same alias.
var adminSuffixes = []string{
	"область",
	"обл",
	"районі",
	"район",
	"р-н",
	"district",
	"oblast",
}

// Normalize folds a free-text place query or alias to its comparison form:
// lowercase, no apostrophes, no query phrasing, no trailing punctuation, no
// administrative suffixes, single spaces.
func Normalize(q string) string {
	s := strings.ToLower(strings.TrimSpace(q))
	for _, apo := range []string{"'", "’", "ʼ", "`"} {
		s = strings.ReplaceAll(s, apo, "")
	}
	s = strings.TrimRight(s, "?!.,:;")

	fields := strings.Fields(s)
	s = strings.Join(fields, " ")

	for _, p := range queryPrefixes {
		if strings.HasPrefix(s, p+" ") {
			s = strings.TrimSpace(strings.TrimPrefix(s, p))
			break
		}
	}
	s = strings.TrimRight(s, "?!.,:;")

	// Suffixes are whole trailing words, never substrings of a name.
	fields = strings.Fields(s)
	for len(fields) > 1 {
		last := fields[len(fields)-1]
		stripped := false
		for _, suf := range adminSuffixes {
			if last == suf {
				fields = fields[:len(fields)-1]
				stripped = true
				break
			}
		}
		if !stripped {
			break
		}
	}
	return strings.Join(fields, " ")
}

// Resolve maps a free-text query onto a dictionary entry. Exact matches of
// the normalized query win over substring matches; substring matching runs
// in both directions to tolerate partial names, which can false-positive on
// very short queries — accepted, since new entries only ever enter the
// dictionary through the admin confirmation flow.
func Resolve(query string, d dictionary.Dictionary) (Match, bool) {
	q := Normalize(query)
	if q == "" {
		return Match{}, false
	}

	regions := d.Regions()

	for _, region := range regions {
		for _, alias := range sortedAliases(d[region]) {
			if Normalize(alias) == q {
				return Match{Region: region, Subregion: d[region][alias]}, true
			}
		}
	}

	for _, region := range regions {
		for _, alias := range sortedAliases(d[region]) {
			na := Normalize(alias)
			if na == "" {
				continue
			}
			if strings.Contains(na, q) || strings.Contains(q, na) {
				return Match{Region: region, Subregion: d[region][alias]}, true
			}
		}
	}

	return Match{}, false
}

func sortedAliases(m map[string]string) []string {
	aliases := make([]string, 0, len(m))
	for a := range m {
		aliases = append(aliases, a)
	}
	sort.Strings(aliases)
	return aliases
}
