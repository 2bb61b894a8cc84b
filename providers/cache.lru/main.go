// Package main implements the cache.lru plugin provider. It captures
// the capacity and ordered entries of an LRU cache and rebuilds the
// same shape on decode. The host passes values across the WASM
// boundary as JSON; build with GOOS=wasip1 GOARCH=wasm
// -buildmode=c-shared to produce provider.wasm.
package main

import (
	"encoding/json"
	"fmt"
)

// matchRequest and friends mirror the host side of the JSON bridge.
type matchRequest struct {
	TypeName string          `json:"type_name"`
	Value    json.RawMessage `json:"value"`
}

type matchResponse struct {
	Match bool `json:"match"`
}

type fieldJSON struct {
	Name  string          `json:"name"`
	Value json.RawMessage `json:"value"`
}

type extractResponse struct {
	Fields []fieldJSON `json:"fields"`
	Error  string      `json:"error,omitempty"`
}

type rebuildRequest struct {
	TypeName string      `json:"type_name"`
	Fields   []fieldJSON `json:"fields"`
}

type rebuildResponse struct {
	Value json.RawMessage `json:"value"`
	Error string          `json:"error,omitempty"`
}

// cacheState is the JSON shape of an LRU cache: a capacity and its
// entries from most to least recently used.
type cacheState struct {
	Capacity int          `json:"capacity"`
	Entries  []cacheEntry `json:"entries"`
}

type cacheEntry struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// handleMatch accepts values that decode into a cache with a positive
// capacity.
func handleMatch(input []byte) []byte {
	var req matchRequest
	if err := json.Unmarshal(input, &req); err != nil {
		return mustMarshal(matchResponse{Match: false})
	}

	var state cacheState
	if err := json.Unmarshal(req.Value, &state); err != nil {
		return mustMarshal(matchResponse{Match: false})
	}

	return mustMarshal(matchResponse{Match: state.Capacity > 0})
}

// handleExtract splits the cache into a capacity field and an ordered
// entries field.
func handleExtract(input []byte) []byte {
	var req matchRequest
	if err := json.Unmarshal(input, &req); err != nil {
		return mustMarshal(extractResponse{Error: fmt.Sprintf("invalid request: %v", err)})
	}

	var state cacheState
	if err := json.Unmarshal(req.Value, &state); err != nil {
		return mustMarshal(extractResponse{Error: fmt.Sprintf("value is not an LRU cache: %v", err)})
	}

	if state.Capacity <= 0 {
		return mustMarshal(extractResponse{Error: "cache capacity must be positive"})
	}

	entries, err := json.Marshal(state.Entries)
	if err != nil {
		return mustMarshal(extractResponse{Error: err.Error()})
	}

	capacity, err := json.Marshal(state.Capacity)
	if err != nil {
		return mustMarshal(extractResponse{Error: err.Error()})
	}

	return mustMarshal(extractResponse{
		Fields: []fieldJSON{
			{Name: "capacity", Value: capacity},
			{Name: "entries", Value: entries},
		},
	})
}

// handleRebuild reassembles the cache state from decoded fields.
func handleRebuild(input []byte) []byte {
	var req rebuildRequest
	if err := json.Unmarshal(input, &req); err != nil {
		return mustMarshal(rebuildResponse{Error: fmt.Sprintf("invalid request: %v", err)})
	}

	state := cacheState{Entries: []cacheEntry{}}
	for _, f := range req.Fields {
		switch f.Name {
		case "capacity":
			if err := json.Unmarshal(f.Value, &state.Capacity); err != nil {
				return mustMarshal(rebuildResponse{Error: fmt.Sprintf("capacity: %v", err)})
			}
		case "entries":
			if len(f.Value) > 0 && string(f.Value) != "null" {
				if err := json.Unmarshal(f.Value, &state.Entries); err != nil {
					return mustMarshal(rebuildResponse{Error: fmt.Sprintf("entries: %v", err)})
				}
			}
		}
	}

	if state.Capacity <= 0 {
		return mustMarshal(rebuildResponse{Error: "capacity field missing or not positive"})
	}
	if len(state.Entries) > state.Capacity {
		return mustMarshal(rebuildResponse{Error: fmt.Sprintf(
			"%d entries exceed capacity %d", len(state.Entries), state.Capacity)})
	}

	value, err := json.Marshal(state)
	if err != nil {
		return mustMarshal(rebuildResponse{Error: err.Error()})
	}

	return mustMarshal(rebuildResponse{Value: value})
}

func mustMarshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		// Response types only hold strings and raw JSON; this cannot
		// fail at runtime.
		panic(err)
	}
	return data
}

func main() {}
