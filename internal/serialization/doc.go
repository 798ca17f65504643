// Package serialization implements the .s2s checkpoint format.
//
// A .s2s file holds named tensors plus a JSON header describing them and
// the model they belong to:
//
//	Fixed header (64 bytes):
//	  0x00  [4 bytes: Magic "S2SQ"]
//	  0x04  [4 bytes: Version (uint32 LE)]
//	  0x08  [4 bytes: Flags (uint32 LE)]
//	  0x0C  [4 bytes: Reserved]
//	  0x10  [8 bytes: Header size (uint64 LE)]
//	  0x18  [8 bytes: Data size (uint64 LE)]
//	  0x20  [32 bytes: SHA-256 of header JSON followed by tensor data]
//	[Header: JSON]
//	[Padding to a 64-byte boundary]
//	[Tensor data: raw little-endian bytes, sorted by tensor name]
//
// Readers verify the checksum before trusting any offset in the header, and
// validate tensor names and regions against the data section.
//
// Example usage:
//
//	w, err := serialization.NewWriter("model.s2s")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := w.WriteStateDict(model.StateDict(), header); err != nil {
//	    log.Fatal(err)
//	}
//	w.Close()
//
//	r, err := serialization.NewReader("model.s2s")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer r.Close()
//	dict, err := r.ReadStateDict(tensor.CPU)
package serialization
