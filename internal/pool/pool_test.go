package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountryPoolsArePartitionedByDifficulty(t *testing.T) {
	easy := CountriesFor(DifficultyEasy)
	medium := CountriesFor(DifficultyMedium)
	hard := CountriesFor(DifficultyHard)

	assert.Len(t, easy, 20)
	assert.Len(t, medium, 50)
	assert.Greater(t, len(hard), len(medium))

	// medium contains every easy country
	mediumCodes := make(map[string]bool, len(medium))
	for _, c := range medium {
		mediumCodes[c.Code] = true
	}
	for _, c := range easy {
		assert.Truef(t, mediumCodes[c.Code], "easy country %s missing from medium pool", c.Code)
	}
}

func TestCountryByCode(t *testing.T) {
	c, ok := CountryByCode("FR")
	require.True(t, ok)
	assert.Equal(t, "France", c.Name)

	_, ok = CountryByCode("XX")
	assert.False(t, ok)
}

func TestLocationPoolsAreCumulative(t *testing.T) {
	easy := LocationsFor(DifficultyEasy)
	medium := LocationsFor(DifficultyMedium)
	hard := LocationsFor(DifficultyHard)

	require.GreaterOrEqual(t, len(easy), 5, "easy pool must cover a full game")
	assert.Equal(t, len(easy)+8, len(medium))
	assert.Equal(t, len(medium)+8, len(hard))

	for _, l := range easy {
		assert.Equal(t, DifficultyEasy, l.Difficulty)
	}
}

func TestTriviaOptionsAlwaysContainTheAnswer(t *testing.T) {
	for _, q := range TriviaFor(DifficultyHard) {
		require.Len(t, q.Options, 4, "question %s", q.ID)
		found := false
		for _, opt := range q.Options {
			if opt == q.CorrectAnswer {
				found = true
				break
			}
		}
		assert.Truef(t, found, "question %s options missing correct answer", q.ID)
	}
}

func TestValidDifficulty(t *testing.T) {
	assert.True(t, ValidDifficulty("easy"))
	assert.True(t, ValidDifficulty("medium"))
	assert.True(t, ValidDifficulty("hard"))
	assert.False(t, ValidDifficulty("extreme"))
}
