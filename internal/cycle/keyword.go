package cycle

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
)

var safeKeyReplacer = strings.NewReplacer(".", "_", "#", "_", "$", "_", "/", "_", "[", "_", "]", "_")

// SafeKey maps a keyword or URL to the key form used by target maps.
func SafeKey(s string) string { return safeKeyReplacer.Replace(s) }

// KeywordKind tags the stored shape of a competitor keyword.
type KeywordKind int

const (
	KindUnknown KeywordKind = iota
	KindString              // "keyword"
	KindText                // {"text":"keyword"}
	KindValue               // {"value":"keyword"}
)

// KeywordValue is a competitor keyword in any of the shapes that have been
// persisted over time. The original JSON is retained so rows round-trip
// unchanged.
type KeywordValue struct {
	Kind KeywordKind
	Text string
	Raw  json.RawMessage
}

// ParseKeywordValue classifies raw JSON into a KeywordValue.
func ParseKeywordValue(raw []byte) KeywordValue {
	kv := KeywordValue{Raw: append(json.RawMessage(nil), raw...)}
	r := gjson.ParseBytes(raw)
	switch {
	case r.Type == gjson.String:
		kv.Kind, kv.Text = KindString, r.String()
	case r.IsObject():
		if t := r.Get("text"); t.Type == gjson.String {
			kv.Kind, kv.Text = KindText, t.String()
		} else if v := r.Get("value"); v.Type == gjson.String {
			kv.Kind, kv.Text = KindValue, v.String()
		}
	}
	return kv
}

// StringKeyword builds a plain-string KeywordValue.
func StringKeyword(s string) KeywordValue {
	raw, _ := json.Marshal(s)
	return KeywordValue{Kind: KindString, Text: s, Raw: raw}
}

// Normalize returns the trimmed keyword, or false for unrecognised shapes and
// empty keywords.
func (k KeywordValue) Normalize() (string, bool) {
	if k.Kind == KindUnknown {
		return "", false
	}
	s := strings.TrimSpace(k.Text)
	return s, s != ""
}

func (k *KeywordValue) UnmarshalJSON(b []byte) error {
	*k = ParseKeywordValue(b)
	return nil
}

func (k KeywordValue) MarshalJSON() ([]byte, error) {
	if len(k.Raw) > 0 {
		return k.Raw, nil
	}
	return json.Marshal(k.Text)
}
