package subscription

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/DaiZhouHui/vless-automation-go/internal/model"
	"github.com/DaiZhouHui/vless-automation-go/internal/vless"
)

func testNodes() []model.Node {
	return []model.Node{
		{
			Type: "vless", Name: "N-0102-01-443-1.2.3.4", Server: "1.2.3.4", Port: 443,
			UUID: "471a8e64-7b21-4703-b1d1-45a221098459",
			Params: []model.KV{
				{Key: "encryption", Value: "none"},
				{Key: "security", Value: "tls"},
				{Key: "type", Value: "ws"},
			},
		},
		{
			Type: "vless", Name: "N-0102-01-443-5.6.7.8", Server: "5.6.7.8", Port: 443,
			UUID: "471a8e64-7b21-4703-b1d1-45a221098459",
			Params: []model.KV{
				{Key: "encryption", Value: "none"},
				{Key: "security", Value: "tls"},
				{Key: "type", Value: "ws"},
			},
		},
	}
}

func TestEncode_DoubleBase64(t *testing.T) {
	nodes := testNodes()
	out, err := Encode(nodes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	once, err := base64.StdEncoding.DecodeString(out)
	if err != nil {
		t.Fatalf("outer decode: %v", err)
	}
	plain, err := base64.StdEncoding.DecodeString(string(once))
	if err != nil {
		t.Fatalf("inner decode: %v", err)
	}

	lines := strings.Split(string(plain), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines=%d, want=2", len(lines))
	}
	if strings.HasSuffix(string(plain), "\n") {
		t.Fatalf("plain list must not end with a newline")
	}
	for i, line := range lines {
		want, err := vless.BuildURI(nodes[i])
		if err != nil {
			t.Fatalf("build %d: %v", i, err)
		}
		if line != want {
			t.Fatalf("line %d=%q, want=%q", i, line, want)
		}
	}
}

func TestEncode_Empty(t *testing.T) {
	out, err := Encode(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "" {
		t.Fatalf("out=%q, want empty", out)
	}
}

func TestEncode_InvalidNode(t *testing.T) {
	nodes := testNodes()
	nodes[1].Port = 0
	if _, err := Encode(nodes); err == nil {
		t.Fatalf("expected error for invalid node")
	}
}
