package game

import (
	"math/rand"
	"strings"
	"unicode"
)

// =============================================================================
// TEXT PERTURBATION
// =============================================================================

// Perturb roughens generated text so it reads like quick human typing:
// chat-style substitutions, an occasional adjacent-key typo, casing jitter,
// punctuation stripping and truncation to the first sentence. Which
// transforms run is drawn from rng, so a seeded source reproduces the output.
func Perturb(text string, rng *rand.Rand) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return text
	}

	applied := false
	for _, t := range transforms {
		if rng.Float64() < t.p {
			text = t.fn(text, rng)
			applied = true
		}
	}
	if !applied {
		text = lowerCase(text, rng)
	}
	return strings.TrimSpace(text)
}

type transform struct {
	p  float64
	fn func(string, *rand.Rand) string
}

var transforms = []transform{
	{p: 0.3, fn: truncate},
	{p: 0.6, fn: substituteWords},
	{p: 0.2, fn: adjacentKeyTypo},
	{p: 0.5, fn: stripPunctuation},
	{p: 0.7, fn: lowerCase},
}

var chatSubstitutions = map[string]string{
	"you":       "u",
	"your":      "ur",
	"are":       "r",
	"because":   "bc",
	"probably":  "prob",
	"though":    "tho",
	"okay":      "ok",
	"really":    "rly",
	"people":    "ppl",
	"something": "smth",
	"please":    "pls",
	"thanks":    "thx",
	"don't":     "dont",
	"i'm":       "im",
	"that's":    "thats",
	"going to":  "gonna",
	"want to":   "wanna",
}

func substituteWords(text string, rng *rand.Rand) string {
	words := strings.Fields(text)
	out := make([]string, 0, len(words))
	for i := 0; i < len(words); i++ {
		word := words[i]
		if i+1 < len(words) {
			pair := strings.ToLower(word + " " + words[i+1])
			if repl, ok := chatSubstitutions[pair]; ok && rng.Float64() < 0.5 {
				out = append(out, repl)
				i++
				continue
			}
		}
		core, trail := splitTrailingPunct(word)
		if repl, ok := chatSubstitutions[strings.ToLower(core)]; ok && rng.Float64() < 0.5 {
			word = repl + trail
		}
		out = append(out, word)
	}
	return strings.Join(out, " ")
}

var keyNeighbours = map[rune]string{
	'a': "sq", 'e': "wr", 'i': "uo", 'o': "ip", 'n': "bm",
	's': "ad", 't': "ry", 'r': "et", 'h': "gj", 'l': "k",
}

func adjacentKeyTypo(text string, rng *rand.Rand) string {
	runes := []rune(text)
	candidates := make([]int, 0, len(runes))
	for i, r := range runes {
		if _, ok := keyNeighbours[unicode.ToLower(r)]; ok {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		return text
	}
	i := candidates[rng.Intn(len(candidates))]
	neighbours := keyNeighbours[unicode.ToLower(runes[i])]
	runes[i] = rune(neighbours[rng.Intn(len(neighbours))])
	return string(runes)
}

func stripPunctuation(text string, rng *rand.Rand) string {
	keepQuestion := rng.Float64() < 0.5
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', ',', ';', ':', '!', '\'', '"':
			return -1
		case '?':
			if keepQuestion {
				return r
			}
			return -1
		}
		return r
	}, text)
}

// lowerCase either drops all capitals or only the leading one.
func lowerCase(text string, rng *rand.Rand) string {
	if text == "" {
		return text
	}
	if rng.Float64() < 0.7 {
		return strings.ToLower(text)
	}
	runes := []rune(text)
	runes[0] = unicode.ToLower(runes[0])
	return string(runes)
}

// truncate keeps the first sentence when there is more than one.
func truncate(text string, _ *rand.Rand) string {
	if i := strings.IndexAny(text, ".!?"); i >= 0 && i < len(text)-1 {
		return text[:i+1]
	}
	return text
}

func splitTrailingPunct(word string) (string, string) {
	end := len(word)
	for end > 0 && strings.ContainsRune(".,!?;:", rune(word[end-1])) {
		end--
	}
	return word[:end], word[end:]
}
