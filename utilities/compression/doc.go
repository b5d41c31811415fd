// Package compression shrinks volume images for storage on the host.
//
// A freshly formatted volume is almost entirely null bytes, and even a busy one
// has long runs of them in unused data blocks and at the end of the descriptor
// table. Images are first run-length encoded with RLE8, then gzipped. The RLE
// pass alone takes care of the empty blocks; gzip then picks up what's left in
// the metadata.
//
// RLE8 is the run-length encoding used by the BMP file format. If a byte B
// occurs N times in a row where N >= 2, B is written twice, followed by a third
// (unsigned) byte giving how many more times B occurred:
//
//	WXXXXXXXXXXXXXXXYZZ
//	W XX 13 Y ZZ 0
//
// A run longer than 257 bytes is split into several runs. Since a byte is its
// own escape sequence, a byte occurring exactly twice costs three bytes.
//
// Compressed images are recognized by their ".gz" extension; see
// [IsCompressedPath].
package compression
