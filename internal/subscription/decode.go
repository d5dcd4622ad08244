package subscription

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/DaiZhouHui/vless-automation-go/internal/model"
	"github.com/DaiZhouHui/vless-automation-go/internal/vless"
)

// DecodeError reports a subscription payload that could not be turned into
// a line list at all. Per-line problems are not errors; they only bump
// Result.Skipped.
type DecodeError struct {
	AppError model.AppError
	Cause    error
}

func (e *DecodeError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *DecodeError) Unwrap() error { return e.Cause }

// Result is a decoded subscription. Skipped counts lines that were present
// but unusable: foreign schemes and links that failed to parse.
type Result struct {
	Nodes   []model.Node
	Skipped int
}

// Decode parses a previously published subscription. The canonical payload
// is double-base64, but single-base64 and plaintext link lists from older
// runs are accepted too:
//  1. if the payload contains "vless://" it is treated as a raw link list;
//  2. otherwise it is base64-decoded, and decoded a second time when the
//     first pass still shows no link.
//
// Malformed lines are skipped and counted, never fatal; only a payload that
// cannot be decoded at all yields a *DecodeError.
func Decode(sourceURL string, content string) (*Result, error) {
	s := stripUTF8BOM(content)
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, newDecodeError(sourceURL, "", "SUB_DECODE_ERROR", "订阅内容为空", "", nil)
	}

	if !strings.Contains(s, vless.Scheme) {
		decoded, err := decodeContentBase64(s)
		if err != nil {
			return nil, newDecodeError(sourceURL, truncateSnippet(s, 200), "SUB_BASE64_DECODE_ERROR", "订阅 base64 解码失败", "", err)
		}
		s = strings.TrimSpace(stripUTF8BOM(decoded))
		if !strings.Contains(s, vless.Scheme) {
			decoded, err = decodeContentBase64(s)
			if err != nil {
				return nil, newDecodeError(sourceURL, truncateSnippet(s, 200), "SUB_BASE64_DECODE_ERROR", "订阅二次 base64 解码失败", "", err)
			}
			s = strings.TrimSpace(stripUTF8BOM(decoded))
		}
		if s == "" {
			return nil, newDecodeError(sourceURL, "", "SUB_DECODE_ERROR", "订阅解码后内容为空", "", nil)
		}
	}

	res := &Result{}
	for i, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			continue
		}
		if !strings.HasPrefix(line, vless.Scheme) {
			res.Skipped++
			continue
		}
		node, err := vless.ParseURI(sourceURL, i+1, line)
		if err != nil {
			res.Skipped++
			continue
		}
		res.Nodes = append(res.Nodes, node)
	}
	return res, nil
}

func decodeContentBase64(s string) (string, error) {
	// Remove all whitespace (space/tab/CR/LF) before decoding.
	s2 := removeSpaceTabCRLF(s)
	b, err := decodeB64ToBytes(s2)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", errors.New("decoded subscription is not valid utf-8")
	}
	return string(b), nil
}

func decodeB64ToBytes(s string) ([]byte, error) {
	// Try standard alphabet (with padding) first, then URL-safe, then raw (no padding).
	encodings := []*base64.Encoding{
		base64.StdEncoding,
		base64.URLEncoding,
		base64.RawStdEncoding,
		base64.RawURLEncoding,
	}
	var lastErr error
	for _, enc := range encodings {
		b, err := enc.DecodeString(s)
		if err == nil {
			return b, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func removeSpaceTabCRLF(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case ' ', '\t', '\r', '\n':
			continue
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

func stripUTF8BOM(s string) string {
	if strings.HasPrefix(s, "\uFEFF") {
		return strings.TrimPrefix(s, "\uFEFF")
	}
	return s
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

func newDecodeError(sourceURL string, snippet string, code string, message string, hint string, cause error) error {
	return &DecodeError{
		AppError: model.AppError{
			Code:    code,
			Message: message,
			Stage:   "decode_sub",
			URL:     sourceURL,
			Snippet: snippet,
			Hint:    hint,
		},
		Cause: cause,
	}
}
