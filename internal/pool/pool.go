// Package pool holds the static game data banks: countries for Flag Dash,
// trivia questions for Travel Battle, and locations for Pin Drop. All three
// are embedded at build time, parsed once, and immutable afterwards.
package pool

import (
	"embed"
	"encoding/json"
	"fmt"
)

//go:embed data/countries.json data/trivia.json data/locations.json
var dataFS embed.FS

// Difficulty tiers shared by all three games.
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// Country is a Flag Dash answer option.
type Country struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// TriviaQuestion is a Travel Battle question with its four options inline.
type TriviaQuestion struct {
	ID            string   `json:"id"`
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correctAnswer"`
	Difficulty    string   `json:"difficulty"`
	Category      string   `json:"category"`
}

// Location is a Pin Drop target.
type Location struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Country     string  `json:"country"`
	DisplayName string  `json:"displayName"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	Difficulty  string  `json:"difficulty"`
}

// easyCountryCodes and mediumCountryCodes partition the country bank for
// difficulty selection: easy is the fixed common list, medium adds the
// second list, hard is everything in the bank.
var easyCountryCodes = codeSet(
	"US", "GB", "FR", "DE", "IT", "ES", "JP", "CN", "BR", "CA",
	"AU", "IN", "MX", "RU", "KR", "NL", "SE", "NO", "CH", "AT",
)

var mediumCountryCodes = codeSet(
	"AR", "CL", "CO", "PE", "EG", "ZA", "NG", "KE", "PH", "TH",
	"VN", "MY", "ID", "PK", "BD", "TR", "GR", "PL", "UA", "CZ",
	"PT", "IE", "BE", "DK", "FI", "NZ", "SG", "AE", "SA", "IL",
)

var (
	allCountries  []Country
	countryByCode map[string]Country
	allTrivia     []TriviaQuestion
	allLocations  []Location
)

func init() {
	mustLoad("data/countries.json", &allCountries)
	mustLoad("data/trivia.json", &allTrivia)
	mustLoad("data/locations.json", &allLocations)

	countryByCode = make(map[string]Country, len(allCountries))
	for _, c := range allCountries {
		countryByCode[c.Code] = c
	}
}

func mustLoad(name string, dst any) {
	raw, err := dataFS.ReadFile(name)
	if err != nil {
		panic(fmt.Sprintf("pool: read %s: %v", name, err))
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		panic(fmt.Sprintf("pool: parse %s: %v", name, err))
	}
}

// Countries returns the full country bank.
func Countries() []Country {
	out := make([]Country, len(allCountries))
	copy(out, allCountries)
	return out
}

// CountryByCode looks up a country by its ISO code.
func CountryByCode(code string) (Country, bool) {
	c, ok := countryByCode[code]
	return c, ok
}

// CountriesFor returns the country pool for a difficulty. Easy is the
// common-country list, medium adds the second list, hard is the whole bank.
func CountriesFor(difficulty string) []Country {
	switch difficulty {
	case DifficultyEasy:
		return filterCountries(func(c Country) bool {
			return easyCountryCodes[c.Code]
		})
	case DifficultyMedium:
		return filterCountries(func(c Country) bool {
			return easyCountryCodes[c.Code] || mediumCountryCodes[c.Code]
		})
	default:
		return Countries()
	}
}

// TriviaFor returns the trivia pool for a difficulty. Pools are cumulative:
// medium includes easy, hard includes everything.
func TriviaFor(difficulty string) []TriviaQuestion {
	var out []TriviaQuestion
	for _, q := range allTrivia {
		if triviaIncluded(difficulty, q.Difficulty) {
			out = append(out, q)
		}
	}
	return out
}

// TriviaByID looks up a trivia question by id.
func TriviaByID(id string) (TriviaQuestion, bool) {
	for _, q := range allTrivia {
		if q.ID == id {
			return q, true
		}
	}
	return TriviaQuestion{}, false
}

// LocationsFor returns the location pool for a difficulty. Pools are
// cumulative: easy is a subset of medium, medium of hard.
func LocationsFor(difficulty string) []Location {
	var out []Location
	for _, l := range allLocations {
		if triviaIncluded(difficulty, l.Difficulty) {
			out = append(out, l)
		}
	}
	return out
}

// LocationByID looks up a location by id.
func LocationByID(id string) (Location, bool) {
	for _, l := range allLocations {
		if l.ID == id {
			return l, true
		}
	}
	return Location{}, false
}

func triviaIncluded(want, tagged string) bool {
	switch want {
	case DifficultyEasy:
		return tagged == DifficultyEasy
	case DifficultyMedium:
		return tagged == DifficultyEasy || tagged == DifficultyMedium
	default:
		return true
	}
}

func filterCountries(keep func(Country) bool) []Country {
	var out []Country
	for _, c := range allCountries {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out
}

func codeSet(codes ...string) map[string]bool {
	set := make(map[string]bool, len(codes))
	for _, c := range codes {
		set[c] = true
	}
	return set
}

// ValidDifficulty reports whether the given difficulty tier exists.
func ValidDifficulty(d string) bool {
	return d == DifficultyEasy || d == DifficultyMedium || d == DifficultyHard
}
