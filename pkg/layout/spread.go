package layout

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"slices"

	"github.com/localwebb/backend/pkg/common"
)

// MinSpreadNodes is the smallest graph for which saved positions are trusted.
const MinSpreadNodes = 3

type roundedPos struct{ x, y int64 }

// HasSpreadLayout reports whether the nodes already carry a usable layout:
// at least minNodes nodes, and either at least 3 distinct rounded
// coordinate pairs or distinct pairs for more than half of the nodes.
// Graphs stored with every node at the origin fail this test and get laid
// out again.
func HasSpreadLayout(nodes []common.GraphNode, minNodes int) bool {
	if minNodes < MinSpreadNodes {
		minNodes = MinSpreadNodes
	}
	if len(nodes) < minNodes {
		return false
	}
	distinct := make(map[roundedPos]struct{}, len(nodes))
	for _, n := range nodes {
		if !n.Position.IsFinite() {
			continue
		}
		distinct[roundedPos{int64(math.Round(n.Position.X)), int64(math.Round(n.Position.Y))}] = struct{}{}
	}
	return len(distinct) >= 3 || len(distinct)*2 > len(nodes)
}

// Fingerprint hashes the structure of a graph: its node ids and the
// endpoints of its valid edges. Positions, labels and edge metadata do not
// contribute, so a pure filter or restyle keeps the fingerprint stable.
func Fingerprint(nodes []common.GraphNode, edges []common.GraphEdge) string {
	ids := make([]string, 0, len(nodes))
	for _, n := range nodes {
		ids = append(ids, n.ID)
	}
	slices.Sort(ids)

	valid := ValidEdges(nodes, edges)
	pairs := make([]string, 0, len(valid))
	for _, e := range valid {
		pairs = append(pairs, e.Source+"\x00"+e.Target)
	}
	slices.Sort(pairs)

	h := sha256.New()
	for _, id := range ids {
		h.Write([]byte(id))
		h.Write([]byte{0x1e})
	}
	h.Write([]byte{0x1d})
	for _, p := range pairs {
		h.Write([]byte(p))
		h.Write([]byte{0x1e})
	}
	return hex.EncodeToString(h.Sum(nil))
}
