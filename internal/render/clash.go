// Package render produces client configuration files from a node set.
package render

import (
	"bytes"
	"fmt"
	"strings"
	"time"
	"unicode"

	"gopkg.in/yaml.v3"

	"github.com/DaiZhouHui/vless-automation-go/internal/model"
)

type RenderError struct {
	AppError model.AppError
	Cause    error
}

func (e *RenderError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *RenderError) Unwrap() error { return e.Cause }

// Options carry per-run defaults for nodes whose links omit a parameter
// (typically entries recovered from an older published subscription).
type Options struct {
	DefaultSNI         string
	DefaultHost        string
	DefaultPath        string
	DefaultFingerprint string
	GeneratedAt        time.Time
}

type clashConfig struct {
	MixedPort          int          `yaml:"mixed-port"`
	SocksPort          int          `yaml:"socks-port,omitempty"`
	AllowLan           bool         `yaml:"allow-lan"`
	Mode               string       `yaml:"mode"`
	LogLevel           string       `yaml:"log-level"`
	ExternalController string       `yaml:"external-controller,omitempty"`
	Proxies            []clashProxy `yaml:"proxies"`
	ProxyGroups        []clashGroup `yaml:"proxy-groups"`
	Rules              []string     `yaml:"rules"`
}

type clashProxy struct {
	Name           string   `yaml:"name"`
	Type           string   `yaml:"type"`
	Server         string   `yaml:"server"`
	Port           int      `yaml:"port"`
	UUID           string   `yaml:"uuid"`
	Network        string   `yaml:"network"`
	TLS            bool     `yaml:"tls"`
	ServerName     string   `yaml:"servername,omitempty"`
	Fingerprint    string   `yaml:"fingerprint,omitempty"`
	ALPN           []string `yaml:"alpn,omitempty"`
	WSOpts         *wsOpts  `yaml:"ws-opts,omitempty"`
	UDP            bool     `yaml:"udp"`
	SkipCertVerify bool     `yaml:"skip-cert-verify"`
}

type wsOpts struct {
	Path    string    `yaml:"path"`
	Headers wsHeaders `yaml:"headers"`
}

type wsHeaders struct {
	Host string `yaml:"Host"`
}

type clashGroup struct {
	Name     string   `yaml:"name"`
	Type     string   `yaml:"type"`
	URL      string   `yaml:"url,omitempty"`
	Interval int      `yaml:"interval,omitempty"`
	Proxies  []string `yaml:"proxies"`
}

const (
	groupSelect = "🚀 节点选择"
	groupAuto   = "♻️ 自动选择"
	groupMedia  = "📲 国外媒体"
)

var mediaDomains = []string{
	"openai.com", "chatgpt.com", "bing.com", "github.com", "gitlab.com",
	"twitter.com", "facebook.com", "instagram.com", "youtube.com",
	"netflix.com", "disneyplus.com", "spotify.com", "telegram.org",
	"whatsapp.com", "discord.com", "google.com", "gstatic.com",
}

// Clash renders the node set as a Clash YAML config: a commented header,
// the proxy list, three proxy groups (manual select, latency auto-select,
// foreign media), and the rule list. An empty node set yields a minimal
// valid config instead of an error so clients keep a loadable file.
func Clash(nodes []model.Node, opt Options) (string, error) {
	if len(nodes) == 0 {
		return marshalConfig(emptyConfig(), "")
	}

	proxies := make([]clashProxy, 0, len(nodes))
	names := make([]string, 0, len(nodes))
	for _, n := range nodes {
		p, err := toClashProxy(n, opt)
		if err != nil {
			return "", err
		}
		proxies = append(proxies, p)
		names = append(names, p.Name)
	}

	groups := []clashGroup{
		{Name: groupSelect, Type: "select", Proxies: names},
		{Name: groupAuto, Type: "url-test", URL: "http://www.gstatic.com/generate_204", Interval: 300, Proxies: names},
		{Name: groupMedia, Type: "select", Proxies: []string{groupSelect, groupAuto, "DIRECT"}},
	}

	rules := make([]string, 0, len(mediaDomains)+2)
	for _, d := range mediaDomains {
		rules = append(rules, "DOMAIN-SUFFIX,"+d+","+groupMedia)
	}
	rules = append(rules, "GEOIP,CN,DIRECT", "MATCH,"+groupSelect)

	cfg := clashConfig{
		MixedPort:          7890,
		SocksPort:          7891,
		AllowLan:           true,
		Mode:               "rule",
		LogLevel:           "info",
		ExternalController: "127.0.0.1:9090",
		Proxies:            proxies,
		ProxyGroups:        groups,
		Rules:              rules,
	}

	header := fmt.Sprintf("# Clash 配置\n# 生成时间: %s\n# 节点数量: %d\n\n",
		opt.GeneratedAt.Format("2006-01-02 15:04:05"), len(nodes))
	return marshalConfig(cfg, header)
}

func toClashProxy(n model.Node, opt Options) (clashProxy, error) {
	if n.Type != "vless" {
		return clashProxy{}, &RenderError{
			AppError: model.AppError{
				Code:    "INVALID_ARGUMENT",
				Message: "仅支持 vless 节点渲染",
				Stage:   "render",
				Snippet: n.Type,
			},
		}
	}

	network := n.Param("type")
	if network == "" {
		network = "ws"
	}
	tls := n.Param("security") == "tls"

	p := clashProxy{
		Name:    safeProxyName(n),
		Type:    "vless",
		Server:  n.Server,
		Port:    n.Port,
		UUID:    n.UUID,
		Network: network,
		TLS:     tls,
		UDP:     true,
	}

	if tls {
		p.ServerName = paramOr(n, "sni", opt.DefaultSNI)
		p.Fingerprint = paramOr(n, "fp", opt.DefaultFingerprint)
		p.ALPN = alpnList(n.Param("alpn"))
	}
	if network == "ws" {
		p.WSOpts = &wsOpts{
			Path:    paramOr(n, "path", opt.DefaultPath),
			Headers: wsHeaders{Host: paramOr(n, "host", opt.DefaultHost)},
		}
	}
	return p, nil
}

func paramOr(n model.Node, key, fallback string) string {
	if v := n.Param(key); v != "" {
		return v
	}
	return fallback
}

func alpnList(v string) []string {
	if v == "" {
		return []string{"h2", "http/1.1"}
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{"h2", "http/1.1"}
	}
	return out
}

// safeProxyName strips characters that routinely break hand-edited Clash
// files from a remark. An emptied name falls back to 节点-server:port.
func safeProxyName(n model.Node) string {
	var b strings.Builder
	for _, r := range n.Name {
		if r == '\n' || r == '\r' {
			continue
		}
		if !unicode.IsPrint(r) && !unicode.IsSpace(r) {
			continue
		}
		if strings.ContainsRune("{}<>[]|&*#!%^@`~", r) {
			continue
		}
		b.WriteRune(r)
	}
	name := strings.TrimSpace(b.String())
	if name == "" {
		return fmt.Sprintf("节点-%s:%d", n.Server, n.Port)
	}
	return name
}

func emptyConfig() clashConfig {
	return clashConfig{
		MixedPort: 7890,
		AllowLan:  true,
		Mode:      "rule",
		LogLevel:  "info",
		ProxyGroups: []clashGroup{
			{Name: "🚀 代理", Type: "select"},
		},
		Rules: []string{"GEOIP,CN,DIRECT", "MATCH,🚀 代理"},
	}
}

func marshalConfig(cfg clashConfig, header string) (string, error) {
	var buf bytes.Buffer
	buf.WriteString(header)
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return "", &RenderError{
			AppError: model.AppError{
				Code:    "RENDER_ERROR",
				Message: "YAML 序列化失败",
				Stage:   "render",
			},
			Cause: err,
		}
	}
	if err := enc.Close(); err != nil {
		return "", &RenderError{
			AppError: model.AppError{
				Code:    "RENDER_ERROR",
				Message: "YAML 序列化失败",
				Stage:   "render",
			},
			Cause: err,
		}
	}
	return buf.String(), nil
}
