package codec

import (
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// PeekString reads a single string field out of a raw JSON body without a
// full unmarshal. Used by the cache engine to copy "confidence" into a
// superseded entry's version-history metadata, from a translation result
// whose full shape is owned by the translation engine, not this package.
func PeekString(raw []byte, path string) (string, bool) {
	res := gjson.GetBytes(raw, path)
	if !res.Exists() {
		return "", false
	}
	return res.String(), true
}

// StampProvenance writes mergeSource/mergeTimestamp fields into a raw JSON
// body in place, used by the conflict resolver (spec §4.3 resolveConflict,
// P11) to tag the winning side of a merge without round-tripping through a
// typed struct whose shape it doesn't otherwise need to know.
func StampProvenance(raw []byte, mergeSource string, mergeTimestampMillis int64) ([]byte, error) {
	out, err := sjson.SetBytes(raw, "mergeSource", mergeSource)
	if err != nil {
		return raw, err
	}
	out, err = sjson.SetBytes(out, "mergeTimestamp", mergeTimestampMillis)
	if err != nil {
		return raw, err
	}
	return out, nil
}
