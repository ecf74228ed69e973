// Package pipeline is the Request Pipeline (spec §4.5): it orchestrates
// lookup, local/cloud fallback, cache-write and sync-enqueue for a single
// translation or audio request. It owns no state of its own — only handles
// to the Cache Engine and Sync Manager it was constructed with (spec §9:
// no module-level singletons).
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/sreejagatab/medtranslate-ai-sub009/internal/cacheclass"
	"github.com/sreejagatab/medtranslate-ai-sub009/internal/cacheengine"
	"github.com/sreejagatab/medtranslate-ai-sub009/internal/cacheentry"
	"github.com/sreejagatab/medtranslate-ai-sub009/internal/codec"
	"github.com/sreejagatab/medtranslate-ai-sub009/internal/edgeerr"
	"github.com/sreejagatab/medtranslate-ai-sub009/internal/syncmanager"
)

// TranslationResult is the black-box translation engine's output contract
// (spec §1, out-of-scope collaborator): `translate(text, src, tgt, context)
// → {translatedText, confidence, …}`.
type TranslationResult struct {
	TranslatedText string `json:"translatedText"`
	Confidence     string `json:"confidence"`
}

// AudioResult is the audio-engine analogue (spec §4.5).
type AudioResult struct {
	AudioBase64 string `json:"audioBase64"`
	Confidence  string `json:"confidence"`
}

// TextEngine is satisfied by both the on-device and cloud translation engines.
type TextEngine interface {
	TranslateText(ctx context.Context, text, sourceLang, targetLang, context string) (TranslationResult, error)
}

// AudioEngine is satisfied by both the on-device and cloud audio engines.
type AudioEngine interface {
	TranslateAudio(ctx context.Context, audio []byte, sourceLang, targetLang, context string) (AudioResult, error)
}

// Response is what the Pipeline returns to its caller (spec §4.5, §6).
type Response struct {
	Result    TranslationResult `json:"result"`
	FromCache bool              `json:"fromCache"`
	Source    string            `json:"source"` // "cache" | "local" | "cloud"
}

// AudioResponse is the audio analogue of Response.
type AudioResponse struct {
	Result    AudioResult `json:"result"`
	FromCache bool        `json:"fromCache"`
	Source    string      `json:"source"`
}

// Pipeline is the Request Pipeline (spec §4.5).
type Pipeline struct {
	cache *cacheengine.Engine
	sync  *syncmanager.Manager

	localText  TextEngine
	cloudText  TextEngine
	localAudio AudioEngine
	cloudAudio AudioEngine

	clock func() int64
}

// New constructs a Pipeline. Any of the four engines may be nil; a nil
// engine is treated as always failing over to the next fallback (or to
// EngineFailed if there is none left).
func New(cache *cacheengine.Engine, sync *syncmanager.Manager, localText, cloudText TextEngine, localAudio, cloudAudio AudioEngine) *Pipeline {
	return &Pipeline{
		cache:      cache,
		sync:       sync,
		localText:  localText,
		cloudText:  cloudText,
		localAudio: localAudio,
		cloudAudio: cloudAudio,
		clock:      func() int64 { return time.Now().UnixMilli() },
	}
}

// WithClock overrides the time source; used by tests.
func (p *Pipeline) WithClock(clock func() int64) *Pipeline {
	if clock != nil {
		p.clock = clock
	}
	return p
}

// TranslateRequest implements the Pipeline's translateRequest contract
// (spec §4.5).
func (p *Pipeline) TranslateRequest(ctx context.Context, text, sourceLang, targetLang, reqContext string) (Response, error) {
	if text == "" || sourceLang == "" || targetLang == "" {
		return Response{}, fmt.Errorf("pipeline: translateRequest: %w", edgeerr.BadRequest)
	}

	key := codec.TranslationKey(sourceLang, targetLang, reqContext, text)

	if res, err := p.cache.Get(cacheclass.Translation, key, cacheengine.GetOptions{IncludeMetadata: true}); err == nil && res.Entry != nil {
		var result TranslationResult
		if _, decErr := codec.Decode(res.Entry.Payload, res.Entry.IsCompressed, &result); decErr == nil {
			return Response{Result: result, FromCache: true, Source: "cache"}, nil
		}
		log.Error().Str("key", key).Msg("pipeline: cached payload failed to decode, falling through to engines")
	}

	result, source, err := p.translateViaEngines(ctx, text, sourceLang, targetLang, reqContext)
	if err != nil {
		return Response{}, err
	}

	if err := p.cache.Set(cacheclass.Translation, key, result, cacheengine.SetOptions{
		NeedsSync: true,
		Context:   reqContext,
		Confidence: result.Confidence,
	}); err != nil {
		log.Error().Err(err).Str("key", key).Msg("pipeline: cache write failed")
	}

	if err := p.enqueueSync(key, cacheclass.Translation, "translation", map[string]any{
		"text": text, "sourceLang": sourceLang, "targetLang": targetLang, "context": reqContext, "result": result,
	}); err != nil {
		log.Error().Err(err).Str("key", key).Msg("pipeline: sync enqueue failed")
	}

	return Response{Result: result, FromCache: false, Source: source}, nil
}

func (p *Pipeline) translateViaEngines(ctx context.Context, text, sourceLang, targetLang, reqContext string) (TranslationResult, string, error) {
	if p.localText != nil {
		if result, err := p.localText.TranslateText(ctx, text, sourceLang, targetLang, reqContext); err == nil {
			return result, "local", nil
		} else {
			log.Warn().Err(err).Msg("pipeline: local engine failed, falling back to cloud")
		}
	}
	if p.cloudText != nil {
		result, err := p.cloudText.TranslateText(ctx, text, sourceLang, targetLang, reqContext)
		if err != nil {
			return TranslationResult{}, "", fmt.Errorf("pipeline: cloud engine: %w: %w", edgeerr.UpstreamUnreachable, err)
		}
		return result, "cloud", nil
	}
	return TranslationResult{}, "", fmt.Errorf("pipeline: %w", edgeerr.EngineFailed)
}

// TranslateAudio implements the audio analogue (spec §4.5: "translateAudio(audioBytes, src, tgt, context)").
func (p *Pipeline) TranslateAudio(ctx context.Context, audio []byte, sourceLang, targetLang, reqContext string) (AudioResponse, error) {
	if len(audio) == 0 || sourceLang == "" || targetLang == "" {
		return AudioResponse{}, fmt.Errorf("pipeline: translateAudio: %w", edgeerr.BadRequest)
	}

	key := codec.TranslationKey(sourceLang, targetLang, reqContext, fmt.Sprintf("audio:%d", len(audio)))

	if res, err := p.cache.Get(cacheclass.Audio, key, cacheengine.GetOptions{IncludeMetadata: true}); err == nil && res.Entry != nil {
		var result AudioResult
		if _, decErr := codec.Decode(res.Entry.Payload, res.Entry.IsCompressed, &result); decErr == nil {
			return AudioResponse{Result: result, FromCache: true, Source: "cache"}, nil
		}
	}

	result, source, err := p.translateAudioViaEngines(ctx, audio, sourceLang, targetLang, reqContext)
	if err != nil {
		return AudioResponse{}, err
	}

	if err := p.cache.Set(cacheclass.Audio, key, result, cacheengine.SetOptions{
		NeedsSync:  true,
		Context:    reqContext,
		Confidence: result.Confidence,
	}); err != nil {
		log.Error().Err(err).Str("key", key).Msg("pipeline: audio cache write failed")
	}

	if err := p.enqueueSync(key, cacheclass.Audio, "audio", map[string]any{
		"sourceLang": sourceLang, "targetLang": targetLang, "context": reqContext, "result": result,
	}); err != nil {
		log.Error().Err(err).Str("key", key).Msg("pipeline: audio sync enqueue failed")
	}

	return AudioResponse{Result: result, FromCache: false, Source: source}, nil
}

func (p *Pipeline) translateAudioViaEngines(ctx context.Context, audio []byte, sourceLang, targetLang, reqContext string) (AudioResult, string, error) {
	if p.localAudio != nil {
		if result, err := p.localAudio.TranslateAudio(ctx, audio, sourceLang, targetLang, reqContext); err == nil {
			return result, "local", nil
		} else {
			log.Warn().Err(err).Msg("pipeline: local audio engine failed, falling back to cloud")
		}
	}
	if p.cloudAudio != nil {
		result, err := p.cloudAudio.TranslateAudio(ctx, audio, sourceLang, targetLang, reqContext)
		if err != nil {
			return AudioResult{}, "", fmt.Errorf("pipeline: cloud audio engine: %w: %w", edgeerr.UpstreamUnreachable, err)
		}
		return result, "cloud", nil
	}
	return AudioResult{}, "", fmt.Errorf("pipeline: %w", edgeerr.EngineFailed)
}

func (p *Pipeline) enqueueSync(key string, class cacheclass.Class, kind string, body map[string]any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("pipeline: marshal sync payload: %w", err)
	}
	rec := &cacheentry.SyncRecord{
		ID:         uuid.NewString(),
		EnqueuedAt: p.clock(),
		Kind:       kind,
		Class:      class,
		Key:        key,
		Payload:    payload,
	}
	return p.sync.Enqueue(rec)
}
