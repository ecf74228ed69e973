// Package codec implements key derivation and compressed-payload encoding
// for cache entries (spec §4.2).
package codec

import (
	"crypto/md5"
	"encoding/hex"
)

// TranslationKey derives the deterministic, cross-implementation-compatible
// cache key for a translation request (spec §4.2, P1):
//
//	key = sourceLang + ":" + targetLang + ":" + context + ":" + md5hex(textUTF8)
//
// The pipeline's audio path also derives its Audio-class key here, passing
// "audio:<byte length>" in place of the text.
func TranslationKey(sourceLang, targetLang, context, text string) string {
	sum := md5.Sum([]byte(text))
	return sourceLang + ":" + targetLang + ":" + context + ":" + hex.EncodeToString(sum[:])
}
