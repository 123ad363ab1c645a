package gemini

import (
	"strings"
)

// Analysis is the structured description of a video
type Analysis struct {
	Description         string   `json:"description"`
	MusicRecommendation string   `json:"music_recommendation"`
	Keywords            []string `json:"keywords"`
	Mood                string   `json:"mood"`
	GenreSuggestions    []string `json:"genre_suggestions"`
	Tempo               string   `json:"tempo"`
	EnergyLevel         string   `json:"energy_level"`
	RawResponse         string   `json:"raw_response"`
}

// Fallback values used when the model ignores the requested format
const (
	defaultTempo                = "Medium"
	defaultEnergyLevel          = "Medium"
	fallbackMood                = "neutral"
	fallbackMusicRecommendation = "General background music"
)

var (
	fallbackKeywords = []string{"video", "content", "background music"}
	fallbackGenres   = []string{"pop", "electronic", "ambient"}
)

// parseAnalysis reads the line-prefixed answer requested by analysisPrompt.
// Unknown lines are ignored. When neither a description nor a music
// recommendation is found, the whole text becomes the description and the
// remaining fields get generic values.
func parseAnalysis(text string) *Analysis {
	a := &Analysis{
		Keywords:         []string{},
		GenreSuggestions: []string{},
		Tempo:            defaultTempo,
		EnergyLevel:      defaultEnergyLevel,
		RawResponse:      text,
	}

	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)

		switch strings.TrimSpace(key) {
		case "DESCRIPTION":
			a.Description = value
		case "MUSIC_RECOMMENDATION":
			a.MusicRecommendation = value
		case "KEYWORDS":
			a.Keywords = splitList(value)
		case "MOOD":
			a.Mood = value
		case "GENRE_SUGGESTIONS":
			a.GenreSuggestions = splitList(value)
		case "TEMPO":
			a.Tempo = value
		case "ENERGY_LEVEL":
			a.EnergyLevel = value
		}
	}

	if a.Description == "" && a.MusicRecommendation == "" {
		a.Description = text
		a.MusicRecommendation = fallbackMusicRecommendation
		a.Keywords = append([]string(nil), fallbackKeywords...)
		a.Mood = fallbackMood
		a.GenreSuggestions = append([]string(nil), fallbackGenres...)
	}
	return a
}

func splitList(s string) []string {
	items := []string{}
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// SearchQuery builds a music search query from the analysis: mood, energy,
// the top two genres, the top three keywords and the tempo.
func (a *Analysis) SearchQuery() string {
	var parts []string

	if a.Mood != "" {
		parts = append(parts, a.Mood)
	}
	if a.EnergyLevel != "" {
		parts = append(parts, a.EnergyLevel+" energy")
	}
	parts = append(parts, firstN(a.GenreSuggestions, 2)...)
	parts = append(parts, firstN(a.Keywords, 3)...)
	if a.Tempo != "" {
		parts = append(parts, a.Tempo+" tempo")
	}

	query := strings.Join(parts, " ")
	if strings.TrimSpace(query) != "" {
		return query
	}
	if a.MusicRecommendation != "" {
		return a.MusicRecommendation
	}
	return "background music"
}

func firstN(items []string, n int) []string {
	if len(items) < n {
		return items
	}
	return items[:n]
}
