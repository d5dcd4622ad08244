// Package csvsource parses endpoint lists exported by speed-test tools:
// one row per server, address first, optional port and user id columns.
package csvsource

import (
	"encoding/csv"
	"errors"
	"io"
	"net/netip"
	"strconv"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/DaiZhouHui/vless-automation-go/internal/model"
)

// RowIssue describes one skipped CSV row.
type RowIssue struct {
	Line    int
	Reason  string
	Snippet string
}

// Result of parsing one CSV payload. Rows counts data rows (header
// excluded); Duplicates counts well-formed rows dropped because an earlier
// row already produced the same endpoint.
type Result struct {
	Endpoints  []model.Endpoint
	Rows       int
	Duplicates int
	Skipped    []RowIssue
}

// Parse reads endpoints out of CSV content. Schema, by position:
//
//	col 0  IPv4 address, optionally address:port
//	col 1  port (optional; defaultPort applies when absent)
//	col 2  user id override (optional)
//
// A first row whose address column contains letters is treated as a header.
// Malformed rows are recorded in Skipped, never fatal.
func Parse(content string, defaultPort int) *Result {
	res := &Result{}
	content = strings.TrimPrefix(content, "\uFEFF")

	r := csv.NewReader(strings.NewReader(content))
	r.FieldsPerRecord = -1
	r.Comment = '#'

	seen := make(map[string]struct{})
	first := true
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			line := 0
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				line = pe.Line
			}
			res.Rows++
			res.Skipped = append(res.Skipped, RowIssue{Line: line, Reason: "CSV 行解析失败: " + err.Error()})
			continue
		}
		line, _ := r.FieldPos(0)

		if first {
			first = false
			if isHeader(rec) {
				continue
			}
		}
		res.Rows++

		ep, reason := parseRecord(rec, defaultPort)
		if reason != "" {
			res.Skipped = append(res.Skipped, RowIssue{Line: line, Reason: reason, Snippet: snippet(rec)})
			continue
		}

		key := ep.Address + ":" + strconv.Itoa(ep.Port) + ":" + ep.UserID
		if _, ok := seen[key]; ok {
			res.Duplicates++
			continue
		}
		seen[key] = struct{}{}
		res.Endpoints = append(res.Endpoints, ep)
	}
	return res
}

func parseRecord(rec []string, defaultPort int) (model.Endpoint, string) {
	addr := ""
	if len(rec) > 0 {
		addr = strings.TrimSpace(rec[0])
	}
	if addr == "" {
		return model.Endpoint{}, "IP 地址为空"
	}

	// An address:port pair in the first column wins over the port column.
	port := 0
	if host, portStr, ok := strings.Cut(addr, ":"); ok {
		p, err := parsePort(portStr)
		if err != nil {
			return model.Endpoint{}, "IP 地址中的端口不合法"
		}
		addr, port = host, p
	}

	ip, err := netip.ParseAddr(addr)
	if err != nil || !ip.Is4() {
		return model.Endpoint{}, "不是合法的 IPv4 地址"
	}
	addr = ip.String()

	if port == 0 {
		if len(rec) > 1 && strings.TrimSpace(rec[1]) != "" {
			p, err := parsePort(rec[1])
			if err != nil {
				return model.Endpoint{}, "端口不合法"
			}
			port = p
		} else {
			port = defaultPort
		}
	}

	userID := ""
	if len(rec) > 2 && strings.TrimSpace(rec[2]) != "" {
		id, err := uuid.Parse(strings.TrimSpace(rec[2]))
		if err != nil {
			return model.Endpoint{}, "用户 ID 不是合法 UUID"
		}
		userID = id.String()
	}

	return model.Endpoint{Address: addr, Port: port, UserID: userID}, ""
}

func parsePort(s string) (int, error) {
	p, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if p < 1 || p > 65535 {
		return 0, errors.New("port out of range")
	}
	return p, nil
}

// isHeader reports whether the first row looks like column names rather
// than data ("IP 地址", "address", ...).
func isHeader(rec []string) bool {
	if len(rec) == 0 {
		return false
	}
	for _, r := range strings.TrimSpace(rec[0]) {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

func snippet(rec []string) string {
	s := strings.Join(rec, ",")
	if len(s) > 200 {
		return s[:200]
	}
	return s
}
