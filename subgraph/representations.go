package subgraph

import "github.com/thundergraph/gateway/plan"

// BuildRepresentations turns one entity partition's already-ingested
// parent response objects into the `representations` variable value
// spec §6 describes: one map per object, `__typename` plus the flat key
// fields rep.KeyFields names, read out of that object by response key.
func BuildRepresentations(rep *plan.Representations, parentObjects []map[string]interface{}) []map[string]interface{} {
	reps := make([]map[string]interface{}, 0, len(parentObjects))
	for _, obj := range parentObjects {
		r := make(map[string]interface{}, len(rep.KeyFields)+1)
		r["__typename"] = rep.Typename
		for _, kf := range rep.KeyFields {
			r[kf] = obj[kf]
		}
		reps = append(reps, r)
	}
	return reps
}
