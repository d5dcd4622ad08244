// Package nodeset holds the set algebra applied between parsing and
// rendering: merging fresh nodes with published ones, age-based pruning,
// and final naming/ordering.
package nodeset

import (
	"strconv"
	"strings"

	"github.com/DaiZhouHui/vless-automation-go/internal/model"
)

// Merge combines freshly generated nodes with previously published ones.
// Identity is the full connection tuple (type, server, port, user id,
// params); the remark is cosmetic and ignored. First occurrence wins, and
// fresh nodes are scanned before prior ones, so a server that shows up
// again keeps its newer remark.
func Merge(fresh, prior []model.Node) []model.Node {
	seen := make(map[string]struct{}, len(fresh)+len(prior))
	out := make([]model.Node, 0, len(fresh)+len(prior))
	for _, list := range [][]model.Node{fresh, prior} {
		for _, n := range list {
			key := identityKey(n)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, n)
		}
	}
	return out
}

func identityKey(n model.Node) string {
	var b strings.Builder
	b.WriteString(n.Type)
	b.WriteByte('\n')
	b.WriteString(strings.ToLower(strings.TrimSpace(n.Server)))
	b.WriteByte('\n')
	b.WriteString(strconv.Itoa(n.Port))
	b.WriteByte('\n')
	b.WriteString(strings.ToLower(n.UUID))
	b.WriteByte('\n')
	for _, kv := range n.Params {
		b.WriteString(kv.Key)
		b.WriteByte('=')
		b.WriteString(kv.Value)
		b.WriteByte(';')
	}
	return b.String()
}
