// Package subscription converts between node lists and the published
// subscription payload: one vless:// link per line, wrapped in two rounds
// of standard base64.
package subscription

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/DaiZhouHui/vless-automation-go/internal/model"
	"github.com/DaiZhouHui/vless-automation-go/internal/vless"
)

// Encode renders nodes as a newline-joined link list (no trailing newline)
// and applies standard base64 twice.
func Encode(nodes []model.Node) (string, error) {
	lines := make([]string, 0, len(nodes))
	for _, n := range nodes {
		uri, err := vless.BuildURI(n)
		if err != nil {
			return "", fmt.Errorf("encode subscription: %w", err)
		}
		lines = append(lines, uri)
	}
	plain := strings.Join(lines, "\n")
	once := base64.StdEncoding.EncodeToString([]byte(plain))
	return base64.StdEncoding.EncodeToString([]byte(once)), nil
}
