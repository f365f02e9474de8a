package subgraph

import "github.com/thundergraph/gateway/schema"

// ApplyHeaderRules evaluates sg's HeaderRules against incoming (the
// gateway's inbound request headers) and returns the outbound header set
// for the subgraph call. incoming is never mutated: each rule application
// copies on write, per spec §5's "Headers are copy-on-write per subgraph
// rule evaluation".
func ApplyHeaderRules(sg *schema.Subgraph, incoming map[string]string) map[string]string {
	out := make(map[string]string, len(incoming))
	for _, r := range sg.HeaderRules {
		switch r.Op {
		case schema.HeaderForward:
			if v, ok := incoming[r.Name]; ok {
				out[r.Name] = v
			}
		case schema.HeaderInsert:
			out[r.Name] = r.Value
		case schema.HeaderRemove:
			delete(out, r.Name)
		case schema.HeaderRename:
			if v, ok := incoming[r.Name]; ok {
				out[r.Value] = v
			}
		}
	}
	return out
}
