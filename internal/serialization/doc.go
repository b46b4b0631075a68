// Package serialization provides the native .peft format for saving and
// loading adapter and model weights.
//
// A .peft file has the following layout:
//
//	[0:4]   magic bytes "PEFT"
//	[4:8]   format version (uint32, little endian)
//	[8:12]  flags (uint32, little endian)
//	[12:20] header size (uint64, little endian)
//	[20:N]  JSON header (tensor metadata, adapter hyperparameters,
//	        SHA-256 checksum of the data section)
//	[N:M]   zero padding to a 64-byte boundary
//	[M:]    raw tensor data, concatenated in header order
//
// The checksum covers the data section only, so a truncated or corrupted
// file is rejected at load time before any tensor is materialized.
package serialization
