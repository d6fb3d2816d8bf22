package scoring

import (
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pinrlabs/pinr-engine/internal/pindrop"
	"github.com/pinrlabs/pinr-engine/internal/pool"
)

func testEngine() *Engine {
	return NewEngine(EngineOptions{}, zerolog.Nop())
}

func mustJSON(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func TestFlagDashRecompute(t *testing.T) {
	e := testEngine()

	fr, ok := pool.CountryByCode("FR")
	require.True(t, ok)
	de, ok := pool.CountryByCode("DE")
	require.True(t, ok)

	log := mustJSON(t, []QuizAnswer{
		{QuestionCode: "FR", Selected: fr.Name}, // 10
		{QuestionCode: "DE", Selected: de.Name}, // 12
		{QuestionCode: "FR", Selected: de.Name}, // wrong, streak resets
		{QuestionCode: "DE", Selected: de.Name}, // 10
	})

	score, err := e.Authoritative("flag_dash", "easy", "", 32, log)
	require.NoError(t, err)
	assert.Equal(t, 32, score)
}

func TestFlagDashFabricatedCorrectnessIgnored(t *testing.T) {
	e := testEngine()

	// A log may not assert its own correctness: the selected answer is
	// regraded against the bank, so a wrong pick scores zero no matter
	// what the client claims.
	log := mustJSON(t, []QuizAnswer{
		{QuestionCode: "FR", Selected: "Atlantis"},
	})

	score, err := e.Authoritative("flag_dash", "easy", "", 9999, log)
	require.NoError(t, err)
	assert.Equal(t, 0, score, "recomputed score wins over the claim")
}

func TestFlagDashUnknownCountryRejected(t *testing.T) {
	e := testEngine()

	log := mustJSON(t, []QuizAnswer{{QuestionCode: "XX", Selected: "Nowhere"}})
	_, err := e.Authoritative("flag_dash", "easy", "", 10, log)
	assert.ErrorIs(t, err, ErrUnverifiableAnswer)
}

func TestFlagDashOversizedLogRejected(t *testing.T) {
	e := testEngine()

	// More answers than fit in the attempt window, streak reset
	// periodically to stay under any per-answer ceiling.
	fr, _ := pool.CountryByCode("FR")
	log := make([]QuizAnswer, 410)
	for i := range log {
		if i%41 == 0 {
			log[i] = QuizAnswer{QuestionCode: "FR", Selected: "wrong"}
		} else {
			log[i] = QuizAnswer{QuestionCode: "FR", Selected: fr.Name}
		}
	}

	_, err := e.Authoritative("flag_dash", "easy", "", 19600, mustJSON(t, log))
	assert.ErrorIs(t, err, ErrImplausibleLog)
}

func TestTravelBattleRegradesAgainstTriviaBank(t *testing.T) {
	e := testEngine()

	bank := pool.TriviaFor("easy")
	require.GreaterOrEqual(t, len(bank), 2)

	log := mustJSON(t, []QuizAnswer{
		{QuestionCode: bank[0].ID, Selected: bank[0].CorrectAnswer}, // 10
		{QuestionCode: bank[1].ID, Selected: bank[1].CorrectAnswer}, // 12
		{QuestionCode: bank[0].ID, Selected: "wrong"},               // resets
	})

	score, err := e.Authoritative("travel_battle", "easy", "", 22, log)
	require.NoError(t, err)
	assert.Equal(t, 22, score)

	_, err = e.Authoritative("travel_battle", "easy", "", 10,
		mustJSON(t, []QuizAnswer{{QuestionCode: "no-such-id", Selected: "x"}}))
	assert.ErrorIs(t, err, ErrUnverifiableAnswer)
}

func TestPinDropRescoresFromSeed(t *testing.T) {
	e := testEngine()
	seed := "challenge-7"
	locs := pindrop.LocationSequence("medium", seed, 5)
	require.Len(t, locs, 5)

	log := mustJSON(t, []PinDropGuess{
		{Lat: locs[0].Lat, Lon: locs[0].Lon, SecondsLeft: 10}, // 1000 + 100
		{Lat: locs[1].Lat, Lon: locs[1].Lon, SecondsLeft: 5},  // 1000 + 50
		{TimedOut: true},
		{Lat: 0, Lon: 0, SecondsLeft: 10}, // far off: likely 0 base, no bonus
	})

	score, err := e.Authoritative("pin_drop", "medium", seed, 0, log)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, score, 2150)
}

func TestPinDropFabricatedDistancesIgnored(t *testing.T) {
	e := testEngine()
	seed := "challenge-8"

	// Five "perfect" rounds claimed from the null island: the recompute
	// derives real distances from the seeded targets, so unless a target
	// actually sits there the score collapses.
	guesses := make([]PinDropGuess, 5)
	for i := range guesses {
		guesses[i] = PinDropGuess{Lat: 0, Lon: 0, SecondsLeft: 20}
	}

	score, err := e.Authoritative("pin_drop", "easy", seed, 6500, mustJSON(t, guesses))
	require.NoError(t, err)
	assert.Less(t, score, 6500, "claimed perfect run does not survive rescoring")
}

func TestPinDropExcessRoundsRejected(t *testing.T) {
	e := testEngine()

	guesses := make([]PinDropGuess, 6)
	_, err := e.Authoritative("pin_drop", "easy", "s", 0, mustJSON(t, guesses))
	assert.ErrorIs(t, err, ErrImplausibleLog)
}

func TestPinDropClockOverrunRejected(t *testing.T) {
	e := testEngine()

	// Easy rounds run 30s; 31 seconds left is impossible.
	log := mustJSON(t, []PinDropGuess{{Lat: 1, Lon: 1, SecondsLeft: 31}})
	_, err := e.Authoritative("pin_drop", "easy", "s", 0, log)
	assert.ErrorIs(t, err, ErrImplausibleLog)
}

func TestUnknownGameTypeRejected(t *testing.T) {
	e := testEngine()
	_, err := e.Authoritative("chess", "easy", "", 10, mustJSON(t, []QuizAnswer{}))
	assert.Error(t, err)
}

func TestMalformedLogRejected(t *testing.T) {
	e := testEngine()
	_, err := e.Authoritative("flag_dash", "easy", "", 10, json.RawMessage(`{"not":"a list"}`))
	assert.Error(t, err)
}
