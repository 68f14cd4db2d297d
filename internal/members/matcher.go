// Package members resolves the identifier soup of external systems (member
// codes, URIs in several host/path shapes, name spellings, office titles)
// onto canonical Oireachtas members. Matching is exact multi-key lookup over
// registered variants, never fuzzy; a key claimed by two members is dropped
// so a bad join can never happen silently.
package members

import (
	"fmt"
	"sort"
	"strings"
)

// Member is the canonical political actor every alias resolves to.
type Member struct {
	ID           int64
	Code         string
	FullName     string
	FirstName    string
	LastName     string
	Party        string
	Constituency string
}

// Office binds an office title ("Tánaiste") to its current holder. The Key
// field holds the normalized title used for text scanning.
type Office struct {
	Title  string
	Key    string
	Member Member
}

// NameEntry is one scannable member name with its normalized key.
type NameEntry struct {
	Key    string
	Member Member
}

// Matcher indexes members under every registered identifier variant.
type Matcher struct {
	byKey      map[string]*Member
	byCode     map[string]*Member
	bySurname  map[string][]*Member
	ambiguous  map[string]struct{}
	offices    []Office
	memberList []*Member
}

func NewMatcher() *Matcher {
	return &Matcher{
		byKey:     make(map[string]*Member),
		byCode:    make(map[string]*Member),
		bySurname: make(map[string][]*Member),
		ambiguous: make(map[string]struct{}),
	}
}

// AddMember registers a member under its standard identifier variants: the
// bare code, the path-style URI, both full URL shapes, the full name and the
// surname-comma form.
func (m *Matcher) AddMember(member Member) error {
	code := strings.TrimSpace(member.Code)
	if code == "" {
		return fmt.Errorf("member %d has no code", member.ID)
	}
	codeKey := normalizeKey(code)
	if _, exists := m.byCode[codeKey]; exists {
		return fmt.Errorf("member code %q registered twice", member.Code)
	}

	stored := &Member{
		ID:           member.ID,
		Code:         code,
		FullName:     strings.TrimSpace(member.FullName),
		FirstName:    strings.TrimSpace(member.FirstName),
		LastName:     strings.TrimSpace(member.LastName),
		Party:        strings.TrimSpace(member.Party),
		Constituency: strings.TrimSpace(member.Constituency),
	}
	m.byCode[codeKey] = stored
	m.memberList = append(m.memberList, stored)

	for _, variant := range StandardVariants(code) {
		m.register(variant, stored)
	}
	if stored.FullName != "" {
		m.register(stored.FullName, stored)
	}
	if stored.FirstName != "" && stored.LastName != "" {
		m.register(stored.LastName+", "+stored.FirstName, stored)
	}
	if stored.LastName != "" {
		surnameKey := normalizeKey(stored.LastName)
		m.bySurname[surnameKey] = append(m.bySurname[surnameKey], stored)
	}
	return nil
}

// StandardVariants returns the identifier forms the upstream APIs use for a
// member code.
func StandardVariants(code string) []string {
	return []string{
		code,
		"/ie/oireachtas/member/id/" + code,
		"https://data.oireachtas.ie/ie/oireachtas/member/id/" + code,
		"https://api.oireachtas.ie/v1/members/" + code,
	}
}

// AddAlias registers one observed nonstandard identifier for a known member
// code. Returns false when the code is unknown or the alias is blank.
func (m *Matcher) AddAlias(code, alias string) bool {
	member, ok := m.byCode[normalizeKey(code)]
	if !ok {
		return false
	}
	if strings.TrimSpace(alias) == "" {
		return false
	}
	m.register(alias, member)
	return true
}

// BindOffice maps an office title to the member currently holding it. The
// title also becomes a lookup alias for that member.
func (m *Matcher) BindOffice(title, code string) bool {
	member, ok := m.byCode[normalizeKey(code)]
	if !ok {
		return false
	}
	trimmed := strings.TrimSpace(title)
	if trimmed == "" {
		return false
	}
	m.register(trimmed, member)
	m.offices = append(m.offices, Office{Title: trimmed, Key: normalizeKey(trimmed), Member: *member})
	return true
}

// Lookup resolves any registered identifier variant. Keys once claimed by
// two different members never resolve.
func (m *Matcher) Lookup(identifier string) (Member, bool) {
	key := normalizeKey(identifier)
	if key == "" {
		return Member{}, false
	}
	member, ok := m.byKey[key]
	if !ok {
		return Member{}, false
	}
	return *member, true
}

// UniqueSurname resolves a surname only when exactly one member carries it.
func (m *Matcher) UniqueSurname(surname string) (Member, bool) {
	matches := m.bySurname[normalizeKey(surname)]
	if len(matches) != 1 {
		return Member{}, false
	}
	return *matches[0], true
}

// Offices returns office bindings sorted longest title first so that text
// scans match "Minister for Further and Higher Education" before "Minister
// for Education".
func (m *Matcher) Offices() []Office {
	out := make([]Office, len(m.offices))
	copy(out, m.offices)
	sort.SliceStable(out, func(i, j int) bool {
		if len(out[i].Key) != len(out[j].Key) {
			return len(out[i].Key) > len(out[j].Key)
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// Names returns scannable full-name entries sorted longest first.
func (m *Matcher) Names() []NameEntry {
	out := make([]NameEntry, 0, len(m.memberList))
	for _, member := range m.memberList {
		if member.FullName == "" {
			continue
		}
		key := normalizeKey(member.FullName)
		if _, bad := m.ambiguous[key]; bad {
			continue
		}
		out = append(out, NameEntry{Key: key, Member: *member})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if len(out[i].Key) != len(out[j].Key) {
			return len(out[i].Key) > len(out[j].Key)
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// Len reports how many members are registered.
func (m *Matcher) Len() int {
	return len(m.memberList)
}

func (m *Matcher) register(identifier string, member *Member) {
	key := normalizeKey(identifier)
	if key == "" {
		return
	}
	if _, bad := m.ambiguous[key]; bad {
		return
	}
	if existing, ok := m.byKey[key]; ok {
		if existing == member {
			return
		}
		delete(m.byKey, key)
		m.ambiguous[key] = struct{}{}
		return
	}
	m.byKey[key] = member
}

// NormalizeKey is the canonical form used for every registration and lookup:
// lowercase, diacritics folded, whitespace collapsed. Folding matters because
// Irish names and member codes appear both with and without fadas upstream.
func NormalizeKey(identifier string) string {
	return normalizeKey(identifier)
}

func normalizeKey(identifier string) string {
	lowered := strings.ToLower(strings.TrimSpace(identifier))
	if lowered == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(lowered))
	lastSpace := false
	for _, r := range lowered {
		if folded, ok := foldedRunes[r]; ok {
			r = folded
		}
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
			continue
		}
		b.WriteRune(r)
		lastSpace = false
	}
	return strings.TrimSpace(b.String())
}

var foldedRunes = map[rune]rune{
	'á': 'a', 'à': 'a', 'â': 'a', 'ä': 'a',
	'é': 'e', 'è': 'e', 'ê': 'e', 'ë': 'e',
	'í': 'i', 'ì': 'i', 'î': 'i', 'ï': 'i',
	'ó': 'o', 'ò': 'o', 'ô': 'o', 'ö': 'o',
	'ú': 'u', 'ù': 'u', 'û': 'u', 'ü': 'u',
}
