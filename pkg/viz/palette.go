package viz

import (
	"hash/fnv"

	"github.com/ritzau/community-explorer/pkg/model"
)

// NeutralColor is used for nodes without a community
const NeutralColor = "#888"

// Palette is the ordered set of community colors. Communities whose ids
// differ by a multiple of len(Palette) share a color.
var Palette = [...]string{
	"#FF6B6B", "#4ECDC4", "#45B7D1", "#FFA07A", "#98FB98",
	"#DDA0DD", "#F0E68C", "#87CEFA", "#FFB6C1", "#20B2AA",
}

// ColorFor maps a community id to its display color. Integer ids index the
// palette modulo its size; other ids are hashed to an index.
func ColorFor(id model.CommunityID) string {
	if id.IsZero() {
		return NeutralColor
	}
	return Palette[paletteIndex(id)]
}

func paletteIndex(id model.CommunityID) int {
	size := int64(len(Palette))
	if n, ok := id.Int(); ok {
		return int(((n % size) + size) % size)
	}
	h := fnv.New32a()
	h.Write([]byte(id.Key()))
	return int(h.Sum32() % uint32(size))
}
