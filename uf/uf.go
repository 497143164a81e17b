// Package uf holds the closed set of Brazilian federated units (UFs) and
// the label matching used to turn scraped text into state codes.
package uf

import (
	"slices"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Code is a two-letter federated unit code such as "SP".
type Code string

// Count is the number of federated units.
const Count = 27

// All lists every code in canonical order.
var All = []Code{
	"AC", "AL", "AM", "AP", "BA", "CE", "DF", "ES", "GO", "MA",
	"MT", "MS", "MG", "PA", "PB", "PR", "PE", "PI", "RN", "RS",
	"RJ", "RO", "RR", "SC", "SP", "SE", "TO",
}

var names = map[Code]string{
	"AC": "Acre", "AL": "Alagoas", "AM": "Amazonas", "AP": "Amapá",
	"BA": "Bahia", "CE": "Ceará", "DF": "Distrito Federal", "ES": "Espírito Santo",
	"GO": "Goiás", "MA": "Maranhão", "MT": "Mato Grosso", "MS": "Mato Grosso do Sul",
	"MG": "Minas Gerais", "PA": "Pará", "PB": "Paraíba", "PR": "Paraná",
	"PE": "Pernambuco", "PI": "Piauí", "RN": "Rio Grande do Norte",
	"RS": "Rio Grande do Sul", "RJ": "Rio de Janeiro", "RO": "Rondônia",
	"RR": "Roraima", "SC": "Santa Catarina", "SP": "São Paulo",
	"SE": "Sergipe", "TO": "Tocantins",
}

// folded full names, computed once.
var foldedNames = func() map[Code]string {
	m := make(map[Code]string, len(names))
	for c, n := range names {
		m[c] = fold(n)
	}
	return m
}()

var order = func() map[Code]int {
	m := make(map[Code]int, len(All))
	for i, c := range All {
		m[c] = i
	}
	return m
}()

// Valid reports whether c belongs to the closed set.
func (c Code) Valid() bool {
	_, ok := names[c]
	return ok
}

// Name returns the full state name, or "" for an invalid code.
func (c Code) Name() string { return names[c] }

// Index returns the canonical position of c, or -1.
func (c Code) Index() int {
	if i, ok := order[c]; ok {
		return i
	}
	return -1
}

// Parse accepts a code in any case, surrounded by whitespace.
func Parse(s string) (Code, bool) {
	c := Code(strings.ToUpper(strings.TrimSpace(s)))
	return c, c.Valid()
}

// Lookup recognizes a table label: either a two-letter code or an exact
// full state name (case and accent insensitive).
func Lookup(label string) (Code, bool) {
	if c, ok := Parse(label); ok {
		return c, true
	}
	f := fold(label)
	if f == "" {
		return "", false
	}
	for c, n := range foldedNames {
		if n == f {
			return c, true
		}
	}
	return "", false
}

// MatchName finds the state whose full name occurs inside text. When
// several names match, the longest one wins, so "Mato Grosso do Sul" is not
// mistaken for "Mato Grosso".
func MatchName(text string) (Code, bool) {
	f := fold(text)
	var best Code
	bestLen := 0
	for _, c := range All {
		n := foldedNames[c]
		if strings.Contains(f, n) && len(n) > bestLen {
			best, bestLen = c, len(n)
		}
	}
	return best, bestLen > 0
}

// Sort orders codes canonically in place.
func Sort(codes []Code) {
	slices.SortFunc(codes, func(a, b Code) int { return a.Index() - b.Index() })
}

// fold lowercases, strips diacritics and collapses whitespace.
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.Join(strings.Fields(strings.ToLower(out)), " ")
}
