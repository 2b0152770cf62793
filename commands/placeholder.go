package commands

import "regexp"

// SenderPlaceholder — зарезервированный плейсхолдер, подставляемый именем автора сообщения.
const SenderPlaceholder = "sender"

var placeholderRe = regexp.MustCompile(`\{(\w+)\}`)

// Placeholders возвращает имена плейсхолдеров `{word}` в порядке появления слева направо.
// Повторы сохраняются; sender не отфильтровывается.
func Placeholders(s string) []string {
	matches := placeholderRe.FindAllStringSubmatch(s, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m[1])
	}
	return out
}

// Positional возвращает плейсхолдеры, заполняемые параметрами команды по позиции (всё, кроме sender).
func Positional(s string) []string {
	all := Placeholders(s)
	out := all[:0]
	for _, name := range all {
		if name != SenderPlaceholder {
			out = append(out, name)
		}
	}
	return out
}

// Token форматирует имя плейсхолдера обратно в `{name}`.
func Token(name string) string {
	return "{" + name + "}"
}

func placeholderSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		set[name] = struct{}{}
	}
	return set
}

func sameSet(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}
