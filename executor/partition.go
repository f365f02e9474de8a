package executor

import (
	"context"
	"encoding/json"

	"github.com/thundergraph/gateway/authz"
	"github.com/thundergraph/gateway/gwerrors"
	"github.com/thundergraph/gateway/operation"
	"github.com/thundergraph/gateway/plan"
	"github.com/thundergraph/gateway/response"
	"github.com/thundergraph/gateway/subgraph"
)

// dispatch sends p's request to its subgraph, ingests the reply into a
// fresh response.Tree part, and merges the result onto the shared root
// object (a root-form partition) or onto every parent object an entity
// partition's representations were built from. Called once per partition
// from the scheduler's per-partition goroutine.
func (d *dispatcher) dispatch(ctx context.Context, p *plan.Partition) {
	sg := d.sch.Subgraph(p.Subgraph)

	var finish func(error)
	if d.hooks != nil {
		finish = d.hooks.PartitionStart(ctx, sg.Name, p.Form.String())
	}

	vars := partitionVariables(p, d.variables)
	var dedup dedupedRepresentations
	var parents []response.ObjectID
	if p.Form == plan.FormEntity {
		parents = d.entityParents(p)
		if len(parents) == 0 {
			if finish != nil {
				finish(nil)
			}
			return
		}
		dedup = buildDedupedRepresentations(d.tree, p.Representations, parents)
		if vars == nil {
			vars = map[string]interface{}{}
		}
		vars["representations"] = dedup.Values
	}

	headers := subgraph.ApplyHeaderRules(sg, d.outboundHeaders())

	resp, err := d.transport.Call(ctx, sg, subgraph.Request{
		Query:     p.SelectionText,
		Variables: vars,
		Headers:   headers,
	})
	if finish != nil {
		finish(err)
	}
	if err != nil {
		d.addErr(asGatewayError(err))
		d.failPartition(p, parents)
		return
	}

	builder := d.tree.NewPart()
	ing := newIngester(d.sch, d.op, builder)

	for _, e := range resp.Errors {
		d.addErr(subgraphError(nil, e))
	}

	if p.Form == plan.FormEntity {
		d.ingestEntityReply(p, ing, resp.Data, dedup)
	} else {
		d.ingestRootReply(p, ing, resp.Data)
	}

	if err := d.tree.Insert(builder); err != nil {
		d.addErr(gwerrors.Internal(err, "inserting partition %d response part", p.ID))
	}
	d.recordCreated(p, ing.createdByType)
}

func (d *dispatcher) ingestRootReply(p *plan.Partition, ing *ingester, raw json.RawMessage) {
	fields, hits, viol := ing.ingestFields(p.Shape, "", raw)
	if viol {
		d.markRootNull()
		return
	}
	fields = d.applyQueryAuthz(fields)
	d.applyResponseAuthz(hits, fields)
	if err := d.tree.MergeFields(d.rootObject, fields); err != nil {
		d.addErr(gwerrors.Internal(err, "merging partition %d into root object", p.ID))
	}
}

func (d *dispatcher) ingestEntityReply(p *plan.Partition, ing *ingester, raw json.RawMessage, dedup dedupedRepresentations) {
	var head struct {
		Entities []json.RawMessage `json:"_entities"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		d.addErr(gwerrors.PartialData(nil, err, "subgraph returned a malformed _entities reply"))
		d.failPartition(p, allGroups(dedup.groups))
		return
	}
	for i, elem := range dedup.groups {
		if i >= len(head.Entities) || isJSONNull(head.Entities[i]) {
			d.failPartition(p, elem)
			continue
		}
		fields, hits, viol := ing.ingestFields(p.Shape, p.Representations.Typename, head.Entities[i])
		if viol {
			d.failPartition(p, elem)
			continue
		}
		fields = d.applyQueryAuthz(fields)
		d.applyResponseAuthz(hits, fields)
		for _, objID := range elem {
			if err := d.tree.MergeFields(objID, fields); err != nil {
				d.addErr(gwerrors.Internal(err, "merging entity partition %d onto object %d", p.ID, objID))
			}
		}
	}
}

func allGroups(groups [][]response.ObjectID) []response.ObjectID {
	var out []response.ObjectID
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// failPartition records err-less placeholder failures for a partition that
// could not be dispatched or whose reply was unusable: every response key
// it owned becomes Inaccessible, and a NonNull one nulls the whole
// operation's data rather than leaving a dangling field. Nulling the
// whole data for a NonNull failure (rather than walking back up to the
// nearest nullable ancestor across partitions) is a deliberate
// simplification — the gateway does not track an object/list ancestor
// chain across partition boundaries, only within one partition's own
// ingest (the viol propagation in ingest.go) — recorded as an open
// decision in DESIGN.md.
func (d *dispatcher) failPartition(p *plan.Partition, targets []response.ObjectID) {
	fields, anyNonNull := d.placeholderFields(p)
	if len(targets) == 0 {
		if anyNonNull {
			d.markRootNull()
			return
		}
		if err := d.tree.MergeFields(d.rootObject, fields); err != nil {
			d.addErr(gwerrors.Internal(err, "merging placeholder fields for partition %d", p.ID))
		}
		return
	}
	if anyNonNull {
		d.markRootNull()
		return
	}
	for _, objID := range targets {
		if err := d.tree.MergeFields(objID, fields); err != nil {
			d.addErr(gwerrors.Internal(err, "merging placeholder fields for partition %d", p.ID))
		}
	}
}

func (d *dispatcher) placeholderFields(p *plan.Partition) ([]response.Field, bool) {
	fields := make([]response.Field, 0, len(p.Fields))
	anyNonNull := false
	for _, fid := range p.Fields {
		bf := d.op.Field(fid)
		nonNull := bf.Kind != operation.KindTypeName && d.sch.Field(bf.Definition).Type.IsNonNull()
		anyNonNull = anyNonNull || nonNull
		fields = append(fields, response.Field{
			ResponseKey:   d.op.ResponseKeys.Name(bf.ResponseKey),
			QueryPosition: queryPosition(bf),
			NonNull:       nonNull,
			Value:         response.Inaccessible(),
		})
	}
	return fields, anyNonNull
}

// applyQueryAuthz rewrites a just-ingested field list in place for any
// field whose query-time QueryElement was denied, per spec §4.7 ("inserts
// the associated error at the field path and marks the field
// inaccessible"). Matching is by response key against the site table built
// at AuthorizeQuery time rather than by a precise per-object path, the
// same simplification plan/render.go's alias handling documents.
func (d *dispatcher) applyQueryAuthz(fields []response.Field) []response.Field {
	if d.decisions == nil || d.decisions.Kind == authz.GrantAll {
		return fields
	}
	for i := range fields {
		id, ok := d.elementIDByResponseKey[fields[i].ResponseKey]
		if !ok {
			continue
		}
		if gerr, denied := d.decisions.Denied(id); denied {
			fields[i].Value = response.Inaccessible()
			d.addErr(gerr)
		}
	}
	return fields
}

// applyResponseAuthz batches a partition's modifierHits by directive name
// and calls AuthorizeResponse once per directive, rewriting denied fields
// to Inaccessible. Batching scope is one partition's own ingestion rather
// than the whole operation (spec §4.7 names batching by directive without
// pinning batch scope); cross-partition batching would need to delay
// every partition's merge until the whole plan finishes, which would
// serialize otherwise-independent subgraph calls.
func (d *dispatcher) applyResponseAuthz(hits []modifierHit, fields []response.Field) {
	if len(hits) == 0 || d.weaver == nil {
		return
	}
	byDirective := map[string][]modifierHit{}
	for _, h := range hits {
		byDirective[h.rule.Name] = append(byDirective[h.rule.Name], h)
	}
	for directive, group := range byDirective {
		items := make([]interface{}, len(group))
		for i, h := range group {
			items[i] = h.item
		}
		site := group[0].site
		dec, err := d.weaver.AuthorizeResponse(d.authState, directive, site, items)
		if err != nil {
			d.addErr(gwerrors.Internal(err, "authorize_response for %s", directive))
			continue
		}
		for i, h := range group {
			if gerr, denied := dec.Denied(i); denied {
				d.addErr(gerr)
				for fi := range fields {
					if fields[fi].ResponseKey == h.responseKey {
						fields[fi].Value = response.Inaccessible()
					}
				}
			}
		}
	}
}

func asGatewayError(err error) *gwerrors.GatewayError {
	if gerr, ok := err.(*gwerrors.GatewayError); ok {
		return gerr
	}
	return gwerrors.PartialData(nil, err, "subgraph call failed")
}
