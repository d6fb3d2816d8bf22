package game

import (
	"math/rand"

	"github.com/pinrlabs/pinr-engine/internal/pool"
)

// questionSource produces the next prompt for a session. Sources avoid
// repeats until their pool is exhausted, then recycle so long runs keep
// getting questions.
type questionSource interface {
	next(rng *rand.Rand) *Question
}

func newQuestionSource(mode, difficulty string) questionSource {
	if mode == ModeTrivia {
		return &triviaSource{
			bank: pool.TriviaFor(difficulty),
			used: make(map[string]struct{}),
		}
	}
	return &flagSource{
		countries: pool.CountriesFor(difficulty),
		used:      make(map[string]struct{}),
	}
}

// flagSource builds 4-option country prompts from the difficulty pool.
type flagSource struct {
	countries []pool.Country
	used      map[string]struct{}
}

func (f *flagSource) next(rng *rand.Rand) *Question {
	if len(f.used) >= len(f.countries) {
		f.used = make(map[string]struct{})
	}

	var candidates []pool.Country
	for _, c := range f.countries {
		if _, taken := f.used[c.Code]; !taken {
			candidates = append(candidates, c)
		}
	}
	target := candidates[rng.Intn(len(candidates))]
	f.used[target.Code] = struct{}{}

	options := []string{target.Name}
	seen := map[string]struct{}{target.Name: {}}
	for len(options) < 4 {
		d := f.countries[rng.Intn(len(f.countries))]
		if _, dup := seen[d.Name]; dup {
			continue
		}
		seen[d.Name] = struct{}{}
		options = append(options, d.Name)
	}
	rng.Shuffle(len(options), func(i, j int) {
		options[i], options[j] = options[j], options[i]
	})

	return &Question{
		Kind:        QuestionKindFlag,
		CountryCode: target.Code,
		Options:     options,
		answer:      target.Name,
	}
}

// triviaSource serves travel trivia, options shuffled per deal.
type triviaSource struct {
	bank []pool.TriviaQuestion
	used map[string]struct{}
}

func (t *triviaSource) next(rng *rand.Rand) *Question {
	if len(t.used) >= len(t.bank) {
		t.used = make(map[string]struct{})
	}

	var candidates []pool.TriviaQuestion
	for _, q := range t.bank {
		if _, taken := t.used[q.ID]; !taken {
			candidates = append(candidates, q)
		}
	}
	target := candidates[rng.Intn(len(candidates))]
	t.used[target.ID] = struct{}{}

	options := append([]string(nil), target.Options...)
	rng.Shuffle(len(options), func(i, j int) {
		options[i], options[j] = options[j], options[i]
	})

	return &Question{
		Kind:       QuestionKindTrivia,
		QuestionID: target.ID,
		Text:       target.Text,
		Options:    options,
		answer:     target.CorrectAnswer,
	}
}
