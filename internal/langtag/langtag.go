// Package langtag detects an ISO 639 language subtag embedded in a subtitle
// filename between the video basename and the subtitle extension, per the
// narrow filename-convention decision recorded in SPEC_FULL.md (the teacher's
// broader transliteration stack is not wired here: SubX does not
// tokenize or translate subtitle text, it only needs a label for §4.8's
// `<video_basename>.<lang>.<sub_ext>` naming rule).
package langtag

import "strings"

// tags is a small static table of the subtags SubX's naming rule is
// expected to see in practice: common ISO 639-1 codes plus a handful of
// ISO 639-3 and region-qualified variants. It is intentionally not
// exhaustive; an unrecognized subtag is treated as part of the basename.
var tags = map[string]bool{
	"en": true, "fr": true, "de": true, "es": true, "it": true, "pt": true,
	"ru": true, "ja": true, "jpn": true, "zh": true, "zho": true, "chi": true,
	"ko": true, "kor": true, "ar": true, "ara": true, "nl": true, "pl": true,
	"tr": true, "vi": true, "vie": true, "th": true, "tha": true, "sv": true,
	"no": true, "da": true, "fi": true, "el": true, "he": true, "hi": true,
	"id": true, "uk": true, "cs": true, "ro": true, "hu": true, "eng": true,
	"fre": true, "fra": true, "ger": true, "deu": true, "spa": true, "ita": true,
	"por": true, "rus": true,
}

var regionQualified = map[string]bool{
	"pt-br": true, "pt-pt": true, "zh-cn": true, "zh-tw": true, "zh-hans": true,
	"zh-hant": true, "en-us": true, "en-gb": true, "es-419": true,
}

// Detect inspects a subtitle's basename-without-extension (e.g.
// "Some.Show.S01E01.pt-BR" for "Some.Show.S01E01.pt-BR.srt") for a trailing
// dot-separated subtag and returns it lowercased, or ("", false) if none
// of the trailing segments match the table.
func Detect(basenameNoExt string) (string, bool) {
	segments := strings.Split(basenameNoExt, ".")
	if len(segments) < 2 {
		return "", false
	}
	last := strings.ToLower(segments[len(segments)-1])
	if regionQualified[last] {
		return last, true
	}
	if tags[last] {
		return last, true
	}
	return "", false
}
