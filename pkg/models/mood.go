package models

import "strings"

// Mood is an emotion label used to tag playlists and songs.
type Mood string

const (
	MoodHappy     Mood = "happy"
	MoodSad       Mood = "sad"
	MoodNeutral   Mood = "neutral"
	MoodAngry     Mood = "angry"
	MoodSurprised Mood = "surprised"
	MoodCalm      Mood = "calm"
	MoodEnergetic Mood = "energetic"
)

// Moods lists every valid mood in display order.
var Moods = []Mood{
	MoodHappy,
	MoodSad,
	MoodNeutral,
	MoodAngry,
	MoodSurprised,
	MoodCalm,
	MoodEnergetic,
}

// ParseMood normalizes s and reports whether it names a known mood.
func ParseMood(s string) (Mood, bool) {
	m := Mood(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Moods {
		if m == known {
			return m, true
		}
	}
	return "", false
}

func (m Mood) String() string {
	return string(m)
}
