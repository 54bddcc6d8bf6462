// Package glb validates the binary tile-content container and defines
// the decode/import collaborator interfaces. Mesh-codec internals live
// behind those interfaces, not here.
package glb

import (
	"encoding/binary"

	"worldpager.dev/internal/tiles"
)

const (
	magic        = 0x46546C67 // "glTF", little-endian
	version      = 2
	chunkJSON    = 0x4E4F534A // "JSON"
	chunkBinary  = 0x004E4942 // "BIN\0"
	headerSize   = 12
	chunkHdrSize = 8
)

// Parse validates the container and returns its JSON and binary chunks.
// Any magic/version/chunk-type/length violation is a TileLoading error.
func Parse(b []byte) (jsonChunk, binChunk []byte, err error) {
	if len(b) < headerSize+chunkHdrSize {
		return nil, nil, tiles.Errorf(tiles.KindTileLoading, "container truncated: %d bytes", len(b))
	}
	if binary.LittleEndian.Uint32(b[0:4]) != magic {
		return nil, nil, tiles.Errorf(tiles.KindTileLoading, "bad container magic %#08x", binary.LittleEndian.Uint32(b[0:4]))
	}
	if v := binary.LittleEndian.Uint32(b[4:8]); v != version {
		return nil, nil, tiles.Errorf(tiles.KindTileLoading, "unsupported container version %d", v)
	}
	total := binary.LittleEndian.Uint32(b[8:12])
	if int(total) > len(b) {
		return nil, nil, tiles.Errorf(tiles.KindTileLoading, "container declares %d bytes, buffer has %d", total, len(b))
	}

	// JSON chunk.
	jsonLen := binary.LittleEndian.Uint32(b[12:16])
	if typ := binary.LittleEndian.Uint32(b[16:20]); typ != chunkJSON {
		return nil, nil, tiles.Errorf(tiles.KindTileLoading, "expected JSON chunk, got %#08x", typ)
	}
	jsonEnd := headerSize + chunkHdrSize + int(jsonLen)
	if jsonEnd+chunkHdrSize > len(b) {
		return nil, nil, tiles.Errorf(tiles.KindTileLoading, "container truncated before binary chunk")
	}
	jsonChunk = b[headerSize+chunkHdrSize : jsonEnd]

	// BIN chunk.
	binLen := binary.LittleEndian.Uint32(b[jsonEnd : jsonEnd+4])
	if typ := binary.LittleEndian.Uint32(b[jsonEnd+4 : jsonEnd+8]); typ != chunkBinary {
		return nil, nil, tiles.Errorf(tiles.KindTileLoading, "expected BIN chunk, got %#08x", typ)
	}
	binEnd := jsonEnd + chunkHdrSize + int(binLen)
	if binEnd > len(b) {
		return nil, nil, tiles.Errorf(tiles.KindTileLoading, "binary chunk truncated: want %d bytes, have %d", binLen, len(b)-jsonEnd-chunkHdrSize)
	}
	binChunk = b[jsonEnd+chunkHdrSize : binEnd]

	return jsonChunk, binChunk, nil
}
