package vless

import (
	"fmt"
	"strings"
	"time"

	"github.com/DaiZhouHui/vless-automation-go/internal/model"
)

// Spec is the connection identity shared by every generated node.
type Spec struct {
	UUID        string
	Host        string
	SNI         string
	Fingerprint string
	Path        string
}

// GenerateOptions control naming and port policy for fresh nodes.
type GenerateOptions struct {
	RemarksPrefix string
	ForcePort443  bool
	Now           time.Time
}

// Generate builds one vless node per endpoint, in input order. Remarks
// follow {prefix}{MMDD}-{NN}-{port}-{address}, where NN is a two-digit
// counter over endpoints sharing the same first two address octets. An
// endpoint without its own user id gets the spec UUID.
func Generate(spec Spec, endpoints []model.Endpoint, opt GenerateOptions) []model.Node {
	day := opt.Now.Format("0102")
	counter := make(map[string]int)

	nodes := make([]model.Node, 0, len(endpoints))
	for _, ep := range endpoints {
		port := ep.Port
		if opt.ForcePort443 {
			port = 443
		}
		userID := ep.UserID
		if userID == "" {
			userID = spec.UUID
		}

		prefix := ipPrefix(ep.Address)
		counter[prefix]++
		remark := fmt.Sprintf("%s%s-%02d-%d-%s", opt.RemarksPrefix, day, counter[prefix], port, ep.Address)

		nodes = append(nodes, model.Node{
			Type:   "vless",
			Name:   remark,
			Server: ep.Address,
			Port:   port,
			UUID:   userID,
			Params: []model.KV{
				{Key: "encryption", Value: "none"},
				{Key: "security", Value: "tls"},
				{Key: "sni", Value: spec.SNI},
				{Key: "fp", Value: spec.Fingerprint},
				{Key: "type", Value: "ws"},
				{Key: "host", Value: spec.Host},
				{Key: "path", Value: spec.Path},
				{Key: "alpn", Value: "h2,http/1.1"},
				{Key: "flow", Value: ""},
			},
		})
	}
	return nodes
}

// ipPrefix groups IPv4 addresses by their first two octets ("1.2.3.4" ->
// "1.2"). Non-dotted addresses group by themselves.
func ipPrefix(addr string) string {
	parts := strings.SplitN(addr, ".", 3)
	if len(parts) < 3 {
		return addr
	}
	return parts[0] + "." + parts[1]
}
