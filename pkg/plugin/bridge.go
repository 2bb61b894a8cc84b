package plugin

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tetratelabs/wazero/api"
)

// bridge calls the three provider functions a plugin module exports,
// passing JSON through WASM linear memory. Every exchange follows the
// same convention: the host allocates input with the module's malloc,
// the function returns (output_ptr << 32) | output_len, and the host
// frees both sides.
type bridge struct {
	module api.Module
	memory api.Memory

	malloc api.Function
	free   api.Function

	matchFn   api.Function
	extractFn api.Function
	rebuildFn api.Function

	timeout time.Duration
}

// fieldJSON is one state-bundle field on the wire between host and
// module.
type fieldJSON struct {
	Name  string          `json:"name"`
	Value json.RawMessage `json:"value"`
}

type matchRequest struct {
	TypeName string          `json:"type_name"`
	Value    json.RawMessage `json:"value"`
}

type matchResponse struct {
	Match bool `json:"match"`
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

// newBridge resolves the required exports of a plugin module.
func newBridge(module api.Module, timeout time.Duration) (*bridge, error) {
	b := &bridge{
		module:  module,
		timeout: timeout,
	}

	b.memory = module.Memory()
	if b.memory == nil {
		return nil, fmt.Errorf("WASM module does not export memory")
	}

	for _, fn := range []struct {
		name string
		dst  *api.Function
	}{
		{"malloc", &b.malloc},
		{"free", &b.free},
		{"provider_match", &b.matchFn},
		{"provider_extract", &b.extractFn},
		{"provider_rebuild", &b.rebuildFn},
	} {
		f := module.ExportedFunction(fn.name)
		if f == nil {
			return nil, fmt.Errorf("WASM module does not export %s function", fn.name)
		}
		*fn.dst = f
	}

	return b, nil
}

// Match asks the module whether it handles the value.
func (b *bridge) Match(ctx context.Context, typeName string, value json.RawMessage) (bool, error) {
	reqJSON, err := json.Marshal(matchRequest{TypeName: typeName, Value: value})
	if err != nil {
		return false, fmt.Errorf("failed to marshal match request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	resultJSON, err := b.call(ctx, b.matchFn, reqJSON)
	if err != nil {
		return false, fmt.Errorf("provider_match failed: %w", err)
	}

	var resp matchResponse
	if err := json.Unmarshal(resultJSON, &resp); err != nil {
		return false, fmt.Errorf("failed to unmarshal match response: %w", err)
	}

	return resp.Match, nil
}

// Extract asks the module to capture the value's state.
func (b *bridge) Extract(ctx context.Context, typeName string, value json.RawMessage) ([]fieldJSON, error) {
	reqJSON, err := json.Marshal(matchRequest{TypeName: typeName, Value: value})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal extract request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	resultJSON, err := b.call(ctx, b.extractFn, reqJSON)
	if err != nil {
		return nil, fmt.Errorf("provider_extract failed: %w", err)
	}

	var resp extractResponse
	if err := json.Unmarshal(resultJSON, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal extract response: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("plugin extract error: %s", resp.Error)
	}

	return resp.Fields, nil
}

// Rebuild asks the module to reconstruct a value from decoded fields.
func (b *bridge) Rebuild(ctx context.Context, typeName string, fields []fieldJSON) (json.RawMessage, error) {
	reqJSON, err := json.Marshal(rebuildRequest{TypeName: typeName, Fields: fields})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rebuild request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	resultJSON, err := b.call(ctx, b.rebuildFn, reqJSON)
	if err != nil {
		return nil, fmt.Errorf("provider_rebuild failed: %w", err)
	}

	var resp rebuildResponse
	if err := json.Unmarshal(resultJSON, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rebuild response: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("plugin rebuild error: %s", resp.Error)
	}

	return resp.Value, nil
}

// call invokes a plugin function with JSON input and returns its JSON
// output. Function signature: fn(input_ptr, input_len: u32) -> u64
// packed as (output_ptr << 32) | output_len.
func (b *bridge) call(ctx context.Context, fn api.Function, input []byte) ([]byte, error) {
	var inputPtr, inputLen uint32
	if len(input) > 0 {
		ptr, err := b.allocate(ctx, uint32(len(input)))
		if err != nil {
			return nil, fmt.Errorf("failed to allocate WASM memory: %w", err)
		}
		defer b.deallocate(ctx, ptr)

		inputPtr = ptr
		inputLen = uint32(len(input))

		if !b.memory.Write(inputPtr, input) {
			return nil, fmt.Errorf("failed to write input to WASM memory")
		}
	}

	results, err := fn.Call(ctx, uint64(inputPtr), uint64(inputLen))
	if err != nil {
		return nil, fmt.Errorf("WASM function call failed: %w", err)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("WASM function returned no results")
	}

	packed := results[0]
	outputPtr := uint32(packed >> 32)
	outputLen := uint32(packed & 0xFFFFFFFF)

	if outputLen == 0 {
		return []byte("{}"), nil
	}

	output, ok := b.memory.Read(outputPtr, outputLen)
	if !ok {
		return nil, fmt.Errorf("failed to read output from WASM memory")
	}

	// Copy before freeing: Read returns a view into linear memory.
	out := make([]byte, len(output))
	copy(out, output)

	if err := b.deallocate(ctx, outputPtr); err != nil {
		return nil, fmt.Errorf("failed to free WASM output: %w", err)
	}

	return out, nil
}

func (b *bridge) allocate(ctx context.Context, size uint32) (uint32, error) {
	results, err := b.malloc.Call(ctx, uint64(size))
	if err != nil {
		return 0, fmt.Errorf("malloc failed: %w", err)
	}
	if len(results) == 0 {
		return 0, fmt.Errorf("malloc returned no results")
	}

	ptr := uint32(results[0])
	if ptr == 0 {
		return 0, fmt.Errorf("malloc returned null pointer")
	}

	return ptr, nil
}

func (b *bridge) deallocate(ctx context.Context, ptr uint32) error {
	if _, err := b.free.Call(ctx, uint64(ptr)); err != nil {
		return fmt.Errorf("free failed: %w", err)
	}
	return nil
}
