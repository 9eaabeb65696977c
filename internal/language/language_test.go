package language

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// TestClassifySample exercises the absolute and relative thresholds of the
// sample classifier.
func TestClassifySample(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{
			name: "empty string",
			text: "",
			want: false,
		},
		{
			name: "whitespace only",
			text: "   \t\n  ",
			want: false,
		},
		{
			name: "plain dutch sentence",
			text: "Dit is een overzicht van de belangrijkste " +
				"punten voor deze presentatie.",
			want: true,
		},
		{
			name: "plain english sentence",
			text: "This slide covers the quarterly results and " +
				"the outlook for next year.",
			want: false,
		},
		{
			name: "two matches is below the absolute floor",
			text: "de het presentation overview results",
			want: false,
		},
		{
			name: "three matches at exactly twenty percent",
			text: "de het een alpha beta gamma delta epsilon " +
				"zeta eta theta iota kappa lambda mu",
			want: true,
		},
		{
			name: "three matches below twenty percent density",
			text: "de het een " + strings.Repeat("word ", 14),
			want: false,
		},
		{
			name: "trailing punctuation is stripped",
			text: "de, het! een? hello world",
			want: true,
		},
		{
			name: "case insensitive matching",
			text: "De Het Een hello world",
			want: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, ClassifySample(tc.text))
		})
	}
}

// TestClassifySampleThresholdProperty verifies, over generated samples, that
// classification holds exactly when both floors are met.
func TestClassifySampleThresholdProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		numDutch := rapid.IntRange(0, 10).Draw(t, "numDutch")
		numOther := rapid.IntRange(0, 10).Draw(t, "numOther")
		if numDutch+numOther == 0 {
			t.Skip("empty sample")
		}

		var tokens []string
		for i := 0; i < numDutch; i++ {
			tokens = append(tokens, "van")
		}
		for i := 0; i < numOther; i++ {
			// "zzz" is not in the closed-class list.
			tokens = append(tokens, "zzz")
		}

		sample := strings.Join(tokens, " ")
		total := numDutch + numOther

		want := numDutch >= 3 &&
			float64(numDutch) >= 0.20*float64(total)
		require.Equal(t, want, ClassifySample(sample))
	})
}

// TestResolve verifies the majority vote, the tie-break, and the empty-set
// default.
func TestResolve(t *testing.T) {
	dutch := "Dit is een verhaal over de geschiedenis van het land " +
		"en de mensen die er wonen."
	english := "This presentation walks through the roadmap for the " +
		"coming quarter in detail."

	tests := []struct {
		name    string
		samples []string
		want    Language
	}{
		{
			name:    "empty list returns default",
			samples: nil,
			want:    English,
		},
		{
			name:    "two dutch one english",
			samples: []string{dutch, dutch, english},
			want:    Dutch,
		},
		{
			name:    "one dutch two english",
			samples: []string{dutch, english, english},
			want:    English,
		},
		{
			name:    "tie favors english",
			samples: []string{dutch, english},
			want:    English,
		},
		{
			name:    "blank samples are ignored",
			samples: []string{"", dutch, "   "},
			want:    Dutch,
		},
		{
			name:    "all blank samples return default",
			samples: []string{"", "  "},
			want:    English,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Resolve(tc.samples))
		})
	}
}

// TestResolveMajorityProperty checks that Resolve always agrees with a
// direct strict-majority count of per-sample classifications.
func TestResolveMajorityProperty(t *testing.T) {
	dutch := "de het een van en dit is dat"
	english := "the quick brown fox jumps over fences"

	rapid.Check(t, func(t *rapid.T) {
		numDutch := rapid.IntRange(0, 6).Draw(t, "numDutch")
		numEnglish := rapid.IntRange(0, 6).Draw(t, "numEnglish")

		var samples []string
		for i := 0; i < numDutch; i++ {
			samples = append(samples, dutch)
		}
		for i := 0; i < numEnglish; i++ {
			samples = append(samples, english)
		}

		want := English
		if numDutch > numEnglish {
			want = Dutch
		}
		require.Equal(t, want, Resolve(samples))
	})
}

// TestLanguageTags sanity-checks the string forms used for synthesis
// requests and logging.
func TestLanguageTags(t *testing.T) {
	require.Equal(t, "nl-NL", Dutch.BCP47())
	require.Equal(t, "en-US", English.BCP47())
	require.Equal(t, "", Unset.BCP47())
	require.Equal(t, "unset", Unset.String())
}
