package cacheengine

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/sreejagatab/medtranslate-ai-sub009/internal/cacheclass"
	"github.com/sreejagatab/medtranslate-ai-sub009/internal/cacheentry"
	"github.com/sreejagatab/medtranslate-ai-sub009/internal/codec"
	"github.com/sreejagatab/medtranslate-ai-sub009/internal/edgeerr"
)

// ConflictStrategy names how resolveConflict picks a winner (spec §4.3).
type ConflictStrategy string

const (
	StrategyLocal  ConflictStrategy = "local"
	StrategyRemote ConflictStrategy = "remote"
	StrategyBoth   ConflictStrategy = "both"
	StrategyMerge  ConflictStrategy = "merge"
)

// ConflictSide is one half of a conflicting pair handed to ResolveConflict.
type ConflictSide struct {
	Body       json.RawMessage
	Timestamp  int64
	Confidence string
}

// ResolveConflict implements the Cache Engine's resolveConflict operation
// (spec §4.3, P11).
func (e *Engine) ResolveConflict(class cacheclass.Class, key string, local, remote ConflictSide, strategy ConflictStrategy) (*cacheentry.CacheEntry, error) {
	if !cacheclass.Valid(class) {
		return nil, fmt.Errorf("cacheengine: resolveConflict: %w", edgeerr.InvalidClass)
	}
	e.stats.recordConflict()

	var winner json.RawMessage
	var source string
	needsSync := true

	switch strategy {
	case StrategyLocal:
		winner, source = local.Body, "local"
	case StrategyRemote:
		winner, source = remote.Body, "remote"
		needsSync = false
	case StrategyBoth:
		winner, source = local.Body, "both"
	case StrategyMerge:
		winner, source = e.resolveMerge(class, local, remote)
	default:
		e.stats.recordSyncError()
		return nil, fmt.Errorf("cacheengine: resolveConflict: strategy %q: %w", strategy, edgeerr.ConflictUnresolved)
	}

	now := e.now()
	if strategy == StrategyMerge {
		stamped, err := codec.StampProvenance(winner, source, now)
		if err != nil {
			log.Error().Err(err).Msg("cacheengine: provenance stamp failed, keeping unstamped body")
		} else {
			winner = stamped
		}
	}

	version := "resolved-" + string(strategy) + "-" + fmt.Sprint(now)
	if strategy == StrategyMerge {
		version = "merged-" + source + "-" + fmt.Sprint(now)
	}

	criticality := cacheentry.Low
	if existing, ok := e.store.Get(class, key); ok {
		criticality = existing.Criticality
	}

	if err := e.Set(class, key, winner, SetOptions{
		NeedsSync:   needsSync,
		Version:     version,
		Criticality: criticality,
	}); err != nil {
		return nil, fmt.Errorf("cacheengine: resolveConflict: %w", err)
	}

	e.stats.recordResolved()
	entry, _ := e.store.Get(class, key)
	return entry, nil
}

// resolveMerge implements the merge strategy: confidence-weighted for
// Translation, newest-timestamp-wins otherwise (spec §4.3, P11). When
// neither side offers a usable signal it falls back to remote-wins and
// counts a sync error (spec §7 ConflictUnresolved fallback).
func (e *Engine) resolveMerge(class cacheclass.Class, local, remote ConflictSide) (json.RawMessage, string) {
	if class == cacheclass.Translation {
		localScore, localOK := confidenceScore(local.Confidence)
		remoteScore, remoteOK := confidenceScore(remote.Confidence)
		if !localOK && !remoteOK {
			e.stats.recordSyncError()
			return remote.Body, "remote"
		}
		if remoteScore > localScore {
			return remote.Body, "remote"
		}
		return local.Body, "local"
	}

	if local.Timestamp == 0 && remote.Timestamp == 0 {
		e.stats.recordSyncError()
		return remote.Body, "remote"
	}
	if remote.Timestamp >= local.Timestamp {
		return remote.Body, "remote"
	}
	return local.Body, "local"
}

// confidenceScore maps the confidence tiers to the comparison scale from
// spec §4.3 (high=0.9, medium=0.6, low=0.3), with numeric passthrough.
func confidenceScore(confidence string) (float64, bool) {
	switch confidence {
	case "high":
		return 0.9, true
	case "medium":
		return 0.6, true
	case "low":
		return 0.3, true
	case "":
		return 0, false
	default:
		if v, err := strconv.ParseFloat(confidence, 64); err == nil {
			return v, true
		}
		return 0, false
	}
}
