package profile

import "slices"

// Profile is one identity's record: named sections of string keys.
type Profile struct {
	Sections map[string]map[string]string
}

// NewProfile returns an empty profile.
func NewProfile() *Profile {
	return &Profile{Sections: map[string]map[string]string{}}
}

// Get returns the value of section.key.
func (p *Profile) Get(section, key string) (string, bool) {
	if p == nil {
		return "", false
	}
	sec, ok := p.Sections[section]
	if !ok {
		return "", false
	}
	v, ok := sec[key]
	return v, ok
}

// Set stores section.key, creating the section if needed.
func (p *Profile) Set(section, key, value string) {
	if p.Sections == nil {
		p.Sections = map[string]map[string]string{}
	}
	sec, ok := p.Sections[section]
	if !ok {
		sec = map[string]string{}
		p.Sections[section] = sec
	}
	sec[key] = value
}

// Remove deletes section.key if present.
func (p *Profile) Remove(section, key string) {
	if sec, ok := p.Sections[section]; ok {
		delete(sec, key)
	}
}

// Lang returns the stored language, or DefaultLanguage when it is missing
// or not one of the supported codes.
func (p *Profile) Lang() string {
	if v, ok := p.Get(SectionMain, KeyLang); ok && IsLanguage(v) {
		return v
	}
	return DefaultLanguage
}

// Clone returns a deep copy.
func (p *Profile) Clone() *Profile {
	out := NewProfile()
	if p == nil {
		return out
	}
	for name, sec := range p.Sections {
		cp := make(map[string]string, len(sec))
		for k, v := range sec {
			cp[k] = v
		}
		out.Sections[name] = cp
	}
	return out
}

// SectionNames lists sections with MAIN and STAT first, then the rest sorted.
func (p *Profile) SectionNames() []string {
	var rest []string
	var out []string
	for _, fixed := range []string{SectionMain, SectionStat} {
		if _, ok := p.Sections[fixed]; ok {
			out = append(out, fixed)
		}
	}
	for name := range p.Sections {
		if name != SectionMain && name != SectionStat {
			rest = append(rest, name)
		}
	}
	slices.Sort(rest)
	return append(out, rest...)
}

// Keys returns the sorted keys of section.
func (p *Profile) Keys(section string) []string {
	sec := p.Sections[section]
	keys := make([]string, 0, len(sec))
	for k := range sec {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
