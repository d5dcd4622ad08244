package model

type KV struct {
	Key   string
	Value string
}

// Node is the single proxy node representation flowing through the pipeline.
// This tool only produces Type=="vless".
type Node struct {
	Type string

	// Name is the display remark (URI fragment, #name). It may be empty and
	// is not part of node identity; the nodeset phase normalizes and
	// deduplicates names before output.
	Name string

	Server string
	Port   int

	// UUID is the VLESS user identifier.
	UUID string

	// Params are the transport query parameters in link order (encryption,
	// security, sni, fp, type, host, path, alpn, flow for generated nodes).
	// Order must be preserved (no map) to keep output deterministic.
	Params []KV
}

// Param returns the value of the first parameter named key, or "" when the
// node carries no such parameter.
func (n Node) Param(key string) string {
	for _, kv := range n.Params {
		if kv.Key == key {
			return kv.Value
		}
	}
	return ""
}

// Endpoint is one usable CSV row: a candidate server address with the port
// and optional per-row user id it was listed with.
type Endpoint struct {
	Address string
	Port    int
	UserID  string
}
