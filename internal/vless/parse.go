package vless

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/DaiZhouHui/vless-automation-go/internal/model"
)

// Scheme is the URI scheme produced and consumed by this tool.
const Scheme = "vless://"

type ParseError struct {
	AppError model.AppError
	Cause    error
}

func (e *ParseError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *ParseError) Unwrap() error { return e.Cause }

// ParseURI parses a single vless:// link of the shape
// vless://<uuid>@<host>:<port>[?k=v&...][#name].
// The user id is canonicalized to lowercase hyphenated form; query
// parameters are kept in link order.
func ParseURI(sourceURL string, lineNo int, s string) (model.Node, error) {
	// Split fragment first: #name
	withoutFrag, frag, hasFrag := strings.Cut(s, "#")
	name := ""
	if hasFrag {
		decoded, err := url.PathUnescape(frag)
		if err != nil {
			return model.Node{}, newParseError(sourceURL, lineNo, truncateSnippet(s, 200), "NODE_PARSE_ERROR", "节点名称 URL 解码失败", "", err)
		}
		name = strings.TrimSpace(decoded)
		if strings.ContainsAny(name, "\r\n\x00") {
			return model.Node{}, newParseError(sourceURL, lineNo, truncateSnippet(s, 200), "NODE_PARSE_ERROR", "节点名称包含非法控制字符", "forbidden: \\r \\n \\0", nil)
		}
	}

	withoutQuery, query, hasQuery := strings.Cut(withoutFrag, "?")
	params, err := parseQuery(sourceURL, lineNo, query, hasQuery, s)
	if err != nil {
		return model.Node{}, err
	}

	if !strings.HasPrefix(withoutQuery, Scheme) {
		return model.Node{}, newParseError(sourceURL, lineNo, truncateSnippet(s, 200), "NODE_UNSUPPORTED_SCHEME", "仅支持 vless:// 协议", "expected: vless://...", nil)
	}
	rest := strings.TrimPrefix(withoutQuery, Scheme)
	if rest == "" {
		return model.Node{}, newParseError(sourceURL, lineNo, truncateSnippet(s, 200), "NODE_PARSE_ERROR", "vless:// 后缺少内容", "", nil)
	}

	userPart, hostPart, ok := strings.Cut(rest, "@")
	if !ok || userPart == "" || hostPart == "" {
		return model.Node{}, newParseError(sourceURL, lineNo, truncateSnippet(s, 200), "NODE_PARSE_ERROR", "vless uri 格式不合法（缺少 uuid@host:port）", "", nil)
	}

	id, err := uuid.Parse(userPart)
	if err != nil {
		return model.Node{}, newParseError(sourceURL, lineNo, truncateSnippet(s, 200), "NODE_PARSE_ERROR", "用户 ID 不是合法 UUID", "", err)
	}

	hostPort := hostPart
	if idx := strings.IndexByte(hostPort, '/'); idx >= 0 {
		// Only allow empty path or a single trailing "/".
		if hostPort[idx:] != "/" {
			return model.Node{}, newParseError(sourceURL, lineNo, truncateSnippet(s, 200), "NODE_PARSE_ERROR", "vless uri path 不支持（仅允许空或 /）", "", nil)
		}
		hostPort = hostPort[:idx]
	}

	server, port, err := parseHostPort(hostPort)
	if err != nil {
		return model.Node{}, newParseError(sourceURL, lineNo, truncateSnippet(s, 200), "NODE_PARSE_ERROR", "服务器地址或端口不合法", "", err)
	}

	return model.Node{
		Type:   "vless",
		Name:   name,
		Server: server,
		Port:   port,
		UUID:   id.String(),
		Params: params,
	}, nil
}

func parseQuery(sourceURL string, lineNo int, query string, hasQuery bool, fullLine string) ([]model.KV, error) {
	if !hasQuery || query == "" {
		return nil, nil
	}

	// net/url.Values is a map and loses parameter order, which is part of
	// node identity here. Parse manually; only '&' separates parameters.
	parts := strings.Split(query, "&")
	params := make([]model.KV, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			continue
		}
		kRaw, vRaw, hasEq := strings.Cut(part, "=")
		if !hasEq {
			// Unlike net/url.ParseQuery we do not accept key-without-=
			// because it makes strict validation ambiguous.
			return nil, newParseError(sourceURL, lineNo, truncateSnippet(fullLine, 200), "NODE_PARSE_ERROR", "query 参数必须是 key=value 形式", "", nil)
		}
		k, err := url.PathUnescape(kRaw)
		if err != nil {
			return nil, newParseError(sourceURL, lineNo, truncateSnippet(fullLine, 200), "NODE_PARSE_ERROR", "query 参数解码失败", "", err)
		}
		v, err := url.PathUnescape(vRaw)
		if err != nil {
			return nil, newParseError(sourceURL, lineNo, truncateSnippet(fullLine, 200), "NODE_PARSE_ERROR", "query 参数解码失败", "", err)
		}
		if k == "" {
			return nil, newParseError(sourceURL, lineNo, truncateSnippet(fullLine, 200), "NODE_PARSE_ERROR", "query 参数 key 不能为空", "", nil)
		}
		params = append(params, model.KV{Key: k, Value: v})
	}
	if len(params) == 0 {
		return nil, nil
	}
	return params, nil
}

func parseHostPort(s string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return "", 0, err
	}
	host = strings.ToLower(strings.TrimSpace(host))
	if host == "" {
		return "", 0, errors.New("empty host")
	}
	portInt, err := strconv.Atoi(strings.TrimSpace(portStr))
	if err != nil {
		return "", 0, err
	}
	if portInt < 1 || portInt > 65535 {
		return "", 0, errors.New("port out of range")
	}
	return host, portInt, nil
}

func truncateSnippet(s string, max int) string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", "")
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func newParseError(sourceURL string, lineNo int, snippet string, code string, message string, hint string, cause error) error {
	return &ParseError{
		AppError: model.AppError{
			Code:    code,
			Message: message,
			Stage:   "parse_node",
			URL:     sourceURL,
			Line:    lineNo,
			Snippet: snippet,
			Hint:    hint,
		},
		Cause: cause,
	}
}
