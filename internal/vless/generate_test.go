package vless

import (
	"testing"
	"time"

	"github.com/DaiZhouHui/vless-automation-go/internal/model"
)

func testSpec() Spec {
	return Spec{
		UUID:        "471a8e64-7b21-4703-b1d1-45a221098459",
		Host:        "knny.dpdns.org",
		SNI:         "knny.dpdns.org",
		Fingerprint: "chrome",
		Path:        "/?ed=2048",
	}
}

func TestGenerate_RemarkSequence(t *testing.T) {
	endpoints := []model.Endpoint{
		{Address: "104.16.1.1", Port: 8443},
		{Address: "104.16.2.2", Port: 2053},
		{Address: "172.64.9.9", Port: 2083},
		{Address: "104.16.3.3", Port: 2096},
	}
	opt := GenerateOptions{
		RemarksPrefix: "香港节点-",
		ForcePort443:  true,
		Now:           time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC),
	}

	nodes := Generate(testSpec(), endpoints, opt)
	if len(nodes) != 4 {
		t.Fatalf("len=%d, want=4", len(nodes))
	}
	// Counters run per first-two-octet group, in input order.
	wantNames := []string{
		"香港节点-0102-01-443-104.16.1.1",
		"香港节点-0102-02-443-104.16.2.2",
		"香港节点-0102-01-443-172.64.9.9",
		"香港节点-0102-03-443-104.16.3.3",
	}
	for i, want := range wantNames {
		if nodes[i].Name != want {
			t.Fatalf("name %d=%q, want=%q", i, nodes[i].Name, want)
		}
	}
}

func TestGenerate_ForcePort443(t *testing.T) {
	endpoints := []model.Endpoint{{Address: "1.2.3.4", Port: 2053}}
	opt := GenerateOptions{RemarksPrefix: "N-", ForcePort443: true, Now: time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)}

	nodes := Generate(testSpec(), endpoints, opt)
	if nodes[0].Port != 443 {
		t.Fatalf("port=%d, want=443", nodes[0].Port)
	}
	if nodes[0].Name != "N-0825-01-443-1.2.3.4" {
		t.Fatalf("name=%q, want=N-0825-01-443-1.2.3.4", nodes[0].Name)
	}
}

func TestGenerate_KeepsEndpointPort(t *testing.T) {
	endpoints := []model.Endpoint{{Address: "1.2.3.4", Port: 2053}}
	opt := GenerateOptions{RemarksPrefix: "N-", ForcePort443: false, Now: time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)}

	nodes := Generate(testSpec(), endpoints, opt)
	if nodes[0].Port != 2053 {
		t.Fatalf("port=%d, want=2053", nodes[0].Port)
	}
	if nodes[0].Name != "N-0825-01-2053-1.2.3.4" {
		t.Fatalf("name=%q, want=N-0825-01-2053-1.2.3.4", nodes[0].Name)
	}
}

func TestGenerate_UserIDFallback(t *testing.T) {
	endpoints := []model.Endpoint{
		{Address: "1.2.3.4", Port: 443, UserID: "a8e0d743-6a0f-4b35-8a94-5a7e5c2a1f00"},
		{Address: "5.6.7.8", Port: 443},
	}
	opt := GenerateOptions{RemarksPrefix: "N-", ForcePort443: true, Now: time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)}

	nodes := Generate(testSpec(), endpoints, opt)
	if nodes[0].UUID != "a8e0d743-6a0f-4b35-8a94-5a7e5c2a1f00" {
		t.Fatalf("uuid=%q, want endpoint-specific id", nodes[0].UUID)
	}
	if nodes[1].UUID != testSpec().UUID {
		t.Fatalf("uuid=%q, want Spec UUID fallback", nodes[1].UUID)
	}
}

func TestGenerate_ParamsAndLink(t *testing.T) {
	endpoints := []model.Endpoint{{Address: "1.2.3.4", Port: 443}}
	opt := GenerateOptions{RemarksPrefix: "N-", ForcePort443: true, Now: time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)}

	nodes := Generate(testSpec(), endpoints, opt)
	node := nodes[0]
	if node.Param("security") != "tls" || node.Param("type") != "ws" {
		t.Fatalf("security/type=%q/%q, want tls/ws", node.Param("security"), node.Param("type"))
	}
	if node.Param("sni") != "knny.dpdns.org" || node.Param("host") != "knny.dpdns.org" {
		t.Fatalf("sni/host=%q/%q, want knny.dpdns.org both", node.Param("sni"), node.Param("host"))
	}
	if node.Param("alpn") != "h2,http/1.1" {
		t.Fatalf("alpn=%q, want=h2,http/1.1", node.Param("alpn"))
	}

	// Generated nodes must render and re-parse cleanly.
	uri, err := BuildURI(node)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	parsed, err := ParseURI("https://example.com/sub", 1, uri)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.Name != node.Name || parsed.Server != node.Server || parsed.UUID != node.UUID {
		t.Fatalf("round trip mismatch: %+v vs %+v", parsed, node)
	}
}

func TestGenerate_Empty(t *testing.T) {
	nodes := Generate(testSpec(), nil, GenerateOptions{RemarksPrefix: "N-", Now: time.Now()})
	if len(nodes) != 0 {
		t.Fatalf("len=%d, want=0", len(nodes))
	}
}
