package codec

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestTranslationKey_Deterministic(t *testing.T) {
	k1 := TranslationKey("en", "es", "general", "Hello world")
	k2 := TranslationKey("en", "es", "general", "Hello world")
	assert.Equal(t, k1, k2)
	assert.True(t, strings.HasPrefix(k1, "en:es:general:"))
	assert.Len(t, strings.TrimPrefix(k1, "en:es:general:"), 32) // md5 hex digest
}

func TestTranslationKey_DiffersByInput(t *testing.T) {
	base := TranslationKey("en", "es", "general", "Hello")
	assert.NotEqual(t, base, TranslationKey("en", "fr", "general", "Hello"))
	assert.NotEqual(t, base, TranslationKey("en", "es", "medication", "Hello"))
	assert.NotEqual(t, base, TranslationKey("en", "es", "general", "Goodbye"))
}

type testBody struct {
	TranslatedText string `json:"translatedText"`
	Confidence     string `json:"confidence"`
}

func TestEncode_SkipsCompressionBelowThreshold(t *testing.T) {
	enc, err := Encode(testBody{TranslatedText: "Hola"}, EncodeOptions{
		CompressionEnabled: true, Threshold: 1024, Level: 6,
	})
	require.NoError(t, err)
	assert.False(t, enc.IsCompressed)
	assert.Equal(t, enc.OriginalSize, enc.StoredSize)
}

func TestEncode_CompressesLargeCompressibleBody(t *testing.T) {
	big := testBody{TranslatedText: strings.Repeat("Hola mundo, como estas hoy? ", 200)}
	enc, err := Encode(big, EncodeOptions{CompressionEnabled: true, Threshold: 10, Level: 6})
	require.NoError(t, err)
	assert.True(t, enc.IsCompressed)
	assert.Less(t, enc.StoredSize, enc.OriginalSize)
}

func TestEncode_ForceAlwaysAttempts(t *testing.T) {
	enc, err := Encode(testBody{TranslatedText: "x"}, EncodeOptions{Force: true, Level: 6})
	require.NoError(t, err)
	// A tiny, low-entropy body may not compress smaller; invariant 1 says
	// storedSize is never recorded as compressed unless it actually shrank.
	if enc.IsCompressed {
		assert.Less(t, enc.StoredSize, enc.OriginalSize)
	}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	original := testBody{TranslatedText: strings.Repeat("roundtrip payload ", 100), Confidence: "high"}

	for _, force := range []bool{true, false} {
		enc, err := Encode(original, EncodeOptions{CompressionEnabled: true, Threshold: 5, Level: 6, Force: force})
		require.NoError(t, err)

		var decoded testBody
		_, err = Decode(enc.Payload, enc.IsCompressed, &decoded)
		require.NoError(t, err)
		assert.Equal(t, original, decoded)
	}
}

func TestDecode_CorruptCompressedPayloadSurfacesRawBytes(t *testing.T) {
	corrupt := []byte{0x01, 0x02, 0x03}
	var out testBody
	raw, err := Decode(corrupt, true, &out)
	require.Error(t, err)
	assert.Equal(t, corrupt, raw)
}

func TestPeekString(t *testing.T) {
	raw := []byte(`{"translatedText":"Hola","confidence":"high","context":"diagnosis"}`)
	v, ok := PeekString(raw, "confidence")
	require.True(t, ok)
	assert.Equal(t, "high", v)

	_, ok = PeekString(raw, "missing")
	assert.False(t, ok)
}

func TestStampProvenance(t *testing.T) {
	raw := []byte(`{"translatedText":"Muchas gracias"}`)
	stamped, err := StampProvenance(raw, "remote", 12345)
	require.NoError(t, err)

	src, _ := PeekString(stamped, "mergeSource")
	assert.Equal(t, "remote", src)
	assert.Equal(t, int64(12345), gjson.GetBytes(stamped, "mergeTimestamp").Int())
}
