package service

import (
	"strconv"
	"strings"

	"github.com/noah-isme/study-progress-api/internal/dto"
)

const (
	langDE = "de"
	langEN = "en"
)

// progressTexts is keyed by section, category and language.
var progressTexts = map[string]map[string]map[string]string{
	"grade": {
		dto.GradeTierFast: {
			langDE: "%{value} – Stabile Fahrt auf der Überholspur",
			langEN: "%{value} – Cruising in the fast lane",
		},
		dto.GradeTierMedium: {
			langDE: "%{value} – Voll im Zeitplan",
			langEN: "%{value} – Right on schedule",
		},
		dto.GradeTierSlow: {
			langDE: "%{value} – Zeit, einen Gang höher zu schalten",
			langEN: "%{value} – Time to shift up a gear",
		},
		dto.GradeTierUnknown: {
			langDE: "Noch keine Noten – die Fahrt beginnt",
			langEN: "No grades yet – the journey begins",
		},
	},
	"time": {
		dto.TimeAhead: {
			langDE: "+%{days} Tage Puffer gegenüber dem Zeitplan",
			langEN: "+%{days} days ahead of schedule",
		},
		dto.TimeBehind: {
			langDE: "-%{days} Tage Verzug gegenüber dem Zeitplan",
			langEN: "-%{days} days behind schedule",
		},
	},
	"fee": {
		dto.FeeZero: {
			langDE: "Alle Gebühren beglichen",
			langEN: "All fees paid",
		},
		dto.FeeOpen: {
			langDE: "%{amount} Gebühren offen",
			langEN: "%{amount} fees outstanding",
		},
	},
}

// normalizeLanguage maps anything but a supported language to fallback.
func normalizeLanguage(lang, fallback string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	switch lang {
	case langDE, langEN:
		return lang
	}
	if fallback == langEN {
		return langEN
	}
	return langDE
}

func lookupText(section, category, lang string) string {
	byLang, ok := progressTexts[section][category]
	if !ok {
		return ""
	}
	return byLang[lang]
}

// renderTexts fills the placeholders of the snapshot's categories.
func renderTexts(snapshot *dto.ProgressSnapshot, lang string) dto.ProgressTexts {
	value := "-"
	if snapshot.AverageGrade != nil {
		value = strconv.FormatFloat(*snapshot.AverageGrade, 'f', 1, 64)
		if lang == langDE {
			value = strings.Replace(value, ".", ",", 1)
		}
	}
	days := snapshot.DaysDeviation
	if days < 0 {
		days = -days
	}

	return dto.ProgressTexts{
		Grade: strings.ReplaceAll(lookupText("grade", snapshot.GradeCategory, lang), "%{value}", value),
		Time:  strings.ReplaceAll(lookupText("time", snapshot.TimeCategory, lang), "%{days}", strconv.Itoa(days)),
		Fee:   strings.ReplaceAll(lookupText("fee", snapshot.FeeCategory, lang), "%{amount}", snapshot.OpenFeesFormatted),
	}
}
