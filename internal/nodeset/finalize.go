package nodeset

import (
	"fmt"
	"sort"
	"strings"

	"github.com/DaiZhouHui/vless-automation-go/internal/model"
)

// Finalize gives every node a unique remark and puts the set in its
// published order. Names are assigned in input order, so when a fresh node
// and an older one collide the fresh one keeps the clean name; empty names
// become "server:port"; "DIRECT" and "REJECT" are reserved for client
// builtins and always renamed. Collisions get a "-N" suffix starting at 2.
// The result is sorted by server, port, then user id.
func Finalize(nodes []model.Node) []model.Node {
	out := make([]model.Node, len(nodes))
	copy(out, nodes)

	used := make(map[string]struct{}, len(out))
	for i := range out {
		base := strings.TrimSpace(out[i].Name)
		if base == "" {
			base = fmt.Sprintf("%s:%d", out[i].Server, out[i].Port)
		}

		name := base
		if name == "DIRECT" || name == "REJECT" {
			name = ""
		}
		if name != "" {
			if _, ok := used[name]; ok {
				name = ""
			}
		}
		if name == "" {
			// Pick base-N starting from 2.
			for n := 2; ; n++ {
				try := fmt.Sprintf("%s-%d", base, n)
				if _, ok := used[try]; ok {
					continue
				}
				name = try
				break
			}
		}

		out[i].Name = name
		used[name] = struct{}{}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Server != out[j].Server {
			return out[i].Server < out[j].Server
		}
		if out[i].Port != out[j].Port {
			return out[i].Port < out[j].Port
		}
		return out[i].UUID < out[j].UUID
	})
	return out
}
