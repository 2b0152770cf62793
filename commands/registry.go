package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

// Scope задаёт, к кому применяется кулдаун команды.
type Scope string

const (
	ScopeUser   Scope = "user"
	ScopeGlobal Scope = "global"
)

// ErrPlaceholderMismatch возвращается, если плейсхолдеры имени и ответа команды не совпадают.
var ErrPlaceholderMismatch = errors.New("placeholder mismatch")

// Definition описывает одну команду бота из файла определений.
type Definition struct {
	Name            string
	Response        string
	CooldownSeconds uint64
	Scope           Scope
}

// Word возвращает первое слово имени команды, по которому она вызывается из чата.
func (d Definition) Word() string {
	fields := strings.Fields(d.Name)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

type fileDefinition struct {
	Name          string `json:"name"`
	Response      string `json:"response"`
	CooldownInS   string `json:"cooldown_in_s"`
	CooldownScope string `json:"cooldown_scope"`
}

// Registry — неизменяемый упорядоченный набор команд.
type Registry struct {
	defs []Definition
}

// NewRegistry валидирует определения и собирает Registry.
func NewRegistry(defs []Definition) (*Registry, error) {
	for _, def := range defs {
		if err := validate(def); err != nil {
			return nil, err
		}
	}
	return &Registry{defs: append([]Definition(nil), defs...)}, nil
}

// Load читает JSON-массив команд из файла.
func Load(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load commands: open %s: %w", path, err)
	}
	defer f.Close()

	return Decode(f)
}

// Decode разбирает JSON-массив команд и проверяет каждую команду.
func Decode(r io.Reader) (*Registry, error) {
	var raw []fileDefinition
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("load commands: decode json: %w", err)
	}

	defs := make([]Definition, 0, len(raw))
	for _, fd := range raw {
		defs = append(defs, Definition{
			Name:            fd.Name,
			Response:        fd.Response,
			CooldownSeconds: parseCooldown(fd.CooldownInS),
			Scope:           Scope(fd.CooldownScope),
		})
	}

	reg, err := NewRegistry(defs)
	if err != nil {
		return nil, fmt.Errorf("load commands: %w", err)
	}
	return reg, nil
}

// Lookup возвращает первую команду, у которой первое слово имени совпадает с token.
func (r *Registry) Lookup(token string) (Definition, bool) {
	for _, def := range r.defs {
		if def.Word() == token {
			return def, true
		}
	}
	return Definition{}, false
}

// Len возвращает число загруженных команд.
func (r *Registry) Len() int {
	return len(r.defs)
}

// Definitions возвращает копию определений в исходном порядке.
func (r *Registry) Definitions() []Definition {
	return append([]Definition(nil), r.defs...)
}

func parseCooldown(s string) uint64 {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func validate(def Definition) error {
	name := placeholderSet(Positional(def.Name))
	response := placeholderSet(Positional(def.Response))

	if !sameSet(name, response) {
		return fmt.Errorf("%w in command %q: %v (name) != %v (response)",
			ErrPlaceholderMismatch, def.Name, sortedKeys(name), sortedKeys(response))
	}
	return nil
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
