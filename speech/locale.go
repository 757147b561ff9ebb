package speech

import (
	"strings"

	"golang.org/x/text/language"
)

var (
	// LocaleHindi tags utterances that contain Devanagari script.
	LocaleHindi = language.MustParse("hi-IN")
	// LocaleIndianEnglish tags every other utterance.
	LocaleIndianEnglish = language.MustParse("en-IN")
)

// ContainsDevanagari reports whether s has a code point in U+0900–U+097F.
func ContainsDevanagari(s string) bool {
	for _, r := range s {
		if r >= 0x0900 && r <= 0x097F {
			return true
		}
	}
	return false
}

// LocaleFor picks the locale an utterance of text is spoken in.
func LocaleFor(text string) language.Tag {
	if ContainsDevanagari(text) {
		return LocaleHindi
	}
	return LocaleIndianEnglish
}

// Voice is an installed synthesis voice.
type Voice struct {
	ID   string // value passed back to the engine
	Name string
	Lang string // as reported by the engine, e.g. "hi_IN", "en-in"
}

// tag parses the voice language, tolerating underscores.
func (v Voice) tag() (language.Tag, bool) {
	if v.Lang == "" {
		return language.Und, false
	}
	t, err := language.Parse(strings.ReplaceAll(v.Lang, "_", "-"))
	if err != nil {
		return language.Und, false
	}
	return t, true
}

// PickVoice returns the first voice suited to locale: any Hindi voice for
// hi-IN, an Indian English voice for en-IN. ok is false when none is
// installed.
func PickVoice(voices []Voice, locale language.Tag) (v Voice, ok bool) {
	wantBase, _ := locale.Base()
	wantRegion, _ := locale.Region()

	for _, v := range voices {
		if locale == LocaleHindi && strings.Contains(v.Name, "Hindi") {
			return v, true
		}
		if locale == LocaleIndianEnglish && strings.Contains(v.Name, "India") {
			return v, true
		}

		t, ok := v.tag()
		if !ok {
			continue
		}
		base, _ := t.Base()
		if base != wantBase {
			continue
		}
		if locale == LocaleHindi {
			return v, true
		}
		if region, _ := t.Region(); region == wantRegion {
			return v, true
		}
	}
	return Voice{}, false
}
