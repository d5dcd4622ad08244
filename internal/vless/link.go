package vless

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/DaiZhouHui/vless-automation-go/internal/model"
)

// BuildURI renders a node as its canonical vless:// link: uuid@host:port,
// percent-encoded parameter values in stored order, percent-encoded remark
// as the fragment.
func BuildURI(n model.Node) (string, error) {
	if n.Type != "vless" {
		return "", fmt.Errorf("unsupported node type: %s", n.Type)
	}
	if n.UUID == "" {
		return "", errors.New("empty uuid")
	}
	if n.Server == "" {
		return "", errors.New("empty server")
	}
	if n.Port < 1 || n.Port > 65535 {
		return "", fmt.Errorf("port out of range: %d", n.Port)
	}

	host := n.Server
	// IPv6 host must be wrapped in [] in URI form.
	if strings.Contains(host, ":") && !(strings.HasPrefix(host, "[") && strings.HasSuffix(host, "]")) {
		host = "[" + host + "]"
	}

	var b strings.Builder
	b.WriteString(Scheme)
	b.WriteString(n.UUID)
	b.WriteByte('@')
	b.WriteString(host)
	b.WriteByte(':')
	b.WriteString(strconv.Itoa(n.Port))
	for i, kv := range n.Params {
		if i == 0 {
			b.WriteByte('?')
		} else {
			b.WriteByte('&')
		}
		b.WriteString(kv.Key)
		b.WriteByte('=')
		b.WriteString(pctEncode(kv.Value))
	}
	if n.Name != "" {
		b.WriteByte('#')
		b.WriteString(pctEncode(n.Name))
	}
	return b.String(), nil
}

func pctEncode(s string) string {
	// RFC 3986 percent-encoding for query/fragment. Go's QueryEscape uses '+'
	// for spaces, which we rewrite to %20 for stability and to avoid ambiguity.
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
