//go:build wasip1

package main

import "unsafe"

// allocations pins buffers handed to the host so the garbage collector
// does not move or reclaim them between malloc and free.
var allocations = map[uint32][]byte{}

//go:wasmexport malloc
func malloc(size uint32) uint32 {
	buf := make([]byte, size)
	ptr := uint32(uintptr(unsafe.Pointer(unsafe.SliceData(buf))))
	allocations[ptr] = buf
	return ptr
}

//go:wasmexport free
func free(ptr uint32) {
	delete(allocations, ptr)
}

//go:wasmexport provider_match
func providerMatch(ptr, length uint32) uint64 {
	return respond(handleMatch(readInput(ptr, length)))
}

//go:wasmexport provider_extract
func providerExtract(ptr, length uint32) uint64 {
	return respond(handleExtract(readInput(ptr, length)))
}

//go:wasmexport provider_rebuild
func providerRebuild(ptr, length uint32) uint64 {
	return respond(handleRebuild(readInput(ptr, length)))
}

func readInput(ptr, length uint32) []byte {
	if length == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(uintptr(ptr))), length)
}

// respond copies the output into host-freeable memory and packs the
// pointer and length into the bridge's u64 return convention.
func respond(output []byte) uint64 {
	if len(output) == 0 {
		return 0
	}
	ptr := malloc(uint32(len(output)))
	copy(allocations[ptr], output)
	return uint64(ptr)<<32 | uint64(len(output))
}
