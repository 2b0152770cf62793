package ircmsg

import (
	"strconv"
	"strings"
)

// TagValue — значение тега: строка, либо разобранные badges/emotes.
type TagValue interface {
	isTagValue()
}

// TagString — обычный строковый тег.
type TagString string

// Badges сопоставляет имя значка с его уровнем, например subscriber → "12".
type Badges map[string]string

// Emotes сопоставляет id эмоута с позициями его вхождений в тексте.
type Emotes map[string][]EmoteSpan

// EmoteSpan — включительный диапазон символов, занятый эмоутом.
type EmoteSpan struct {
	Start int
	End   int
}

func (TagString) isTagValue() {}
func (Badges) isTagValue()    {}
func (Emotes) isTagValue()    {}

// Tags — разобранный блок тегов сообщения.
type Tags map[string]TagValue

// String возвращает строковый тег по ключу.
func (t Tags) String(key string) (string, bool) {
	v, ok := t[key].(TagString)
	return string(v), ok
}

// Badges возвращает разобранный тег badges.
func (t Tags) Badges() Badges {
	v, _ := t["badges"].(Badges)
	return v
}

// Emotes возвращает разобранный тег emotes.
func (t Tags) Emotes() Emotes {
	v, _ := t["emotes"].(Emotes)
	return v
}

func parseTags(raw string) Tags {
	tags := make(Tags)
	for _, tag := range strings.Split(raw, ";") {
		key, value, _ := strings.Cut(tag, "=")
		switch key {
		case "badges":
			tags[key] = parseBadges(value)
		case "emotes":
			tags[key] = parseEmotes(value)
		default:
			tags[key] = TagString(value)
		}
	}
	return tags
}

// parseBadges разбирает "broadcaster/1,subscriber/12".
func parseBadges(value string) Badges {
	badges := make(Badges)
	for _, badge := range strings.Split(value, ",") {
		name, tier, ok := strings.Cut(badge, "/")
		if !ok {
			continue
		}
		badges[name] = tier
	}
	return badges
}

// parseEmotes разбирает "25:0-4,12-16/1902:6-10".
func parseEmotes(value string) Emotes {
	emotes := make(Emotes)
	if value == "" {
		return emotes
	}
	for _, emote := range strings.Split(value, "/") {
		id, positions, hasPositions := strings.Cut(emote, ":")
		if id == "" {
			continue
		}
		spans := []EmoteSpan{}
		if hasPositions {
			for _, pos := range strings.Split(positions, ",") {
				if span, ok := parseSpan(pos); ok {
					spans = append(spans, span)
				}
			}
		}
		emotes[id] = spans
	}
	return emotes
}

func parseSpan(pos string) (EmoteSpan, bool) {
	rawStart, rawEnd, ok := strings.Cut(pos, "-")
	if !ok {
		return EmoteSpan{}, false
	}
	start, err := strconv.Atoi(rawStart)
	if err != nil {
		return EmoteSpan{}, false
	}
	end, err := strconv.Atoi(rawEnd)
	if err != nil {
		return EmoteSpan{}, false
	}
	return EmoteSpan{Start: start, End: end}, true
}
