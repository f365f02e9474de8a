package executor

import (
	"encoding/json"
	"sort"

	"github.com/thundergraph/gateway/plan"
	"github.com/thundergraph/gateway/response"
	"github.com/thundergraph/gateway/subgraph"
)

// dedupedRepresentations builds the deduplicated `representations`
// argument value for an entity partition plus the grouping needed to
// fan its `_entities` reply back out to every parent object sharing a
// key (spec §8 "Deduplication: for an entity partition, no two
// representations in the representations batch are structurally equal";
// §4.5 step 2 "deduplicate by key value").
type dedupedRepresentations struct {
	// Values is the `representations` variable value to send, one entry
	// per distinct key.
	Values []map[string]interface{}
	// groups[i] lists every parent ObjectID whose key matches Values[i],
	// in encounter order.
	groups [][]response.ObjectID
}

func buildDedupedRepresentations(tree *response.Tree, rep *plan.Representations, parents []response.ObjectID) dedupedRepresentations {
	parentMaps := make([]map[string]interface{}, len(parents))
	for i, id := range parents {
		obj, ok := tree.ReadObject(id)
		if !ok {
			continue
		}
		parentMaps[i] = objectToMap(tree, obj)
	}

	keyOf := func(m map[string]interface{}) string {
		kv := make(map[string]interface{}, len(rep.KeyFields))
		for _, k := range rep.KeyFields {
			kv[k] = m[k]
		}
		keys := make([]string, 0, len(kv))
		for k := range kv {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		ordered := make([]interface{}, len(keys))
		for i, k := range keys {
			ordered[i] = []interface{}{k, kv[k]}
		}
		b, _ := json.Marshal(ordered)
		return string(b)
	}

	seen := map[string]int{}
	var distinct []map[string]interface{}
	var groups [][]response.ObjectID
	for i, m := range parentMaps {
		k := keyOf(m)
		if idx, ok := seen[k]; ok {
			groups[idx] = append(groups[idx], parents[i])
			continue
		}
		seen[k] = len(distinct)
		distinct = append(distinct, m)
		groups = append(groups, []response.ObjectID{parents[i]})
	}

	return dedupedRepresentations{
		Values: subgraph.BuildRepresentations(rep, distinct),
		groups: groups,
	}
}
