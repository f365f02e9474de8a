package executor

import (
	"context"
	"sync"

	"github.com/thundergraph/gateway/authz"
	"github.com/thundergraph/gateway/gwerrors"
	"github.com/thundergraph/gateway/observability"
	"github.com/thundergraph/gateway/operation"
	"github.com/thundergraph/gateway/plan"
	"github.com/thundergraph/gateway/response"
	"github.com/thundergraph/gateway/schema"
	"github.com/thundergraph/gateway/subgraph"
)

// Request is one bound-and-planned operation ready for execution.
type Request struct {
	Schema    *schema.Schema
	Operation *operation.BoundOperation
	Plan      *plan.Plan
	// OperationName is the client-supplied operation name, for
	// observability labels only.
	OperationName string
	Variables     map[string]interface{}
	Headers       map[string]string
	Token         []byte
}

// Result is the executor's output: serialized response bytes plus any
// errors collected along the way (spec §7's "errors array alongside
// partial data").
type Result struct {
	Data   []byte
	Errors []*gwerrors.GatewayError
}

// Executor drives a materialized Plan to completion against subgraphs,
// weaving in authorization and observability at the seams spec §2 names.
type Executor struct {
	Transport *subgraph.Transport
	Weaver    *authz.Weaver
	Hooks     *observability.Hooks
}

// New builds an Executor. A nil weaver trivially grants every element.
func New(transport *subgraph.Transport, weaver *authz.Weaver, hooks *observability.Hooks) *Executor {
	if weaver == nil {
		weaver = authz.New(nil)
	}
	return &Executor{Transport: transport, Weaver: weaver, Hooks: hooks}
}

// dispatcher is the per-request mutable state every partition's goroutine
// reads and writes into, guarded by mu except where noted (Builder,
// Transport, Weaver themselves are safe for concurrent use).
type dispatcher struct {
	sch       *schema.Schema
	op        *operation.BoundOperation
	transport *subgraph.Transport
	weaver    *authz.Weaver
	hooks     *observability.Hooks

	tree       *response.Tree
	rootObject response.ObjectID

	variables              map[string]interface{}
	baseHeaders            map[string]string
	decisions              *authz.Decisions
	authState              []byte
	elementIDByResponseKey map[string]int

	mu       sync.Mutex
	created  map[*plan.Partition]map[string][]response.ObjectID
	errs     []*gwerrors.GatewayError
	rootNull bool
}

func (d *dispatcher) outboundHeaders() map[string]string {
	d.mu.Lock()
	extra := d.decisions
	d.mu.Unlock()
	if extra == nil || len(extra.ExtraHeaders) == 0 {
		return d.baseHeaders
	}
	out := make(map[string]string, len(d.baseHeaders)+len(extra.ExtraHeaders))
	for k, v := range d.baseHeaders {
		out[k] = v
	}
	for k, v := range extra.ExtraHeaders {
		out[k] = v
	}
	return out
}

func (d *dispatcher) addErr(err *gwerrors.GatewayError) {
	if err == nil {
		return
	}
	d.mu.Lock()
	d.errs = append(d.errs, err)
	d.mu.Unlock()
}

func (d *dispatcher) markRootNull() {
	d.mu.Lock()
	d.rootNull = true
	d.mu.Unlock()
}

// recordCreated publishes the entity-typed objects p's ingestion pushed,
// for a child entity partition (Parent == p) to discover as the parent
// response objects its representations are built from.
func (d *dispatcher) recordCreated(p *plan.Partition, byType map[string][]response.ObjectID) {
	d.mu.Lock()
	d.created[p] = byType
	d.mu.Unlock()
}

// entityParents reads the parent partition's created objects of
// Representations.Typename. Safe without additional synchronization
// beyond the scheduler's gate: p's goroutine only starts after its
// Parent's gate closes, which happens-after recordCreated(parent, ...)
// was called, and the mutex here makes that write visible.
func (d *dispatcher) entityParents(p *plan.Partition) []response.ObjectID {
	d.mu.Lock()
	defer d.mu.Unlock()
	byType := d.created[p.Parent]
	if byType == nil {
		return nil
	}
	return byType[p.Representations.Typename]
}

// Execute runs req's plan to completion and returns the serialized
// response. Root and entity partitions run concurrently to the extent
// their Parent/MutationAfter dependencies allow (executor/scheduler.go).
func (ex *Executor) Execute(ctx context.Context, req *Request) *Result {
	var endOp func(int)
	if ex.Hooks != nil {
		ctx, endOp = ex.Hooks.OperationReceived(ctx, req.OperationName, req.Operation.Kind.String())
	}

	elements, byResponseKey := buildQueryElements(req.Schema, req.Operation)
	decisions, err := ex.Weaver.AuthorizeQuery(req.Headers, req.Token, elements)
	if err != nil {
		res := &Result{Errors: []*gwerrors.GatewayError{gwerrors.Internal(err, "authorize_query")}}
		if endOp != nil {
			endOp(len(res.Errors))
		}
		return res
	}
	if decisions.Kind == authz.DenyAll {
		res := &Result{Data: []byte("null"), Errors: []*gwerrors.GatewayError{decisions.DenyAllErr}}
		if endOp != nil {
			endOp(len(res.Errors))
		}
		return res
	}
	if rootDenials := authz.RootDenials(elements, decisions); len(rootDenials) > 0 {
		errs := make([]*gwerrors.GatewayError, len(rootDenials))
		for i, rd := range rootDenials {
			errs[i] = rd.Err
		}
		res := &Result{Data: []byte("null"), Errors: errs}
		if endOp != nil {
			endOp(len(res.Errors))
		}
		return res
	}

	tree := response.New()
	rootBuilder := tree.NewPart()
	rootType := req.Schema.Type(req.Operation.RootType).Name
	rootID := rootBuilder.PushObject(response.Object{Typename: rootType})
	if err := tree.Insert(rootBuilder); err != nil {
		res := &Result{Errors: []*gwerrors.GatewayError{gwerrors.Internal(err, "seeding response root")}}
		if endOp != nil {
			endOp(len(res.Errors))
		}
		return res
	}
	tree.RootObject = rootID

	d := &dispatcher{
		sch:                    req.Schema,
		op:                     req.Operation,
		transport:              ex.Transport,
		weaver:                 ex.Weaver,
		hooks:                  ex.Hooks,
		tree:                   tree,
		rootObject:             rootID,
		variables:              req.Variables,
		baseHeaders:            req.Headers,
		decisions:              decisions,
		authState:              decisions.State,
		elementIDByResponseKey: byResponseKey,
		created:                map[*plan.Partition]map[string][]response.ObjectID{},
	}

	if ex.Hooks != nil {
		ex.Hooks.PlanReady(ctx, len(req.Plan.All))
	}

	sched := newScheduler(req.Plan.All)
	sched.run(req.Plan.All, func(p *plan.Partition) {
		d.dispatch(ctx, p)
	})

	res := &Result{Errors: d.errs}
	if d.rootNull {
		res.Data = []byte("null")
	} else {
		data, err := tree.Serialize()
		if err != nil {
			res.Errors = append(res.Errors, gwerrors.Internal(err, "serializing response"))
			res.Data = []byte("null")
		} else {
			res.Data = data
		}
	}
	if endOp != nil {
		endOp(len(res.Errors))
	}
	return res
}

// buildQueryElements walks the whole bound operation tree from its root
// selection set for @authorized metadata, producing the pre-execution
// QueryElement list spec §4.7 describes plus a response-key index
// applyQueryAuthz uses to map an ingested top-level field straight back to
// its element id (a nested authorized field is still included in elements
// for the pre-execution grant/deny decision; applyQueryAuthz's own
// response-key matching only reaches fields at the partition's own top
// level -- see its doc comment).
func buildQueryElements(sch *schema.Schema, op *operation.BoundOperation) ([]authz.QueryElement, map[string]int) {
	var elements []authz.QueryElement
	byResponseKey := map[string]int{}
	seen := map[schema.FieldID]bool{}

	var walk func(setID operation.BoundSelectionSetID, isRoot bool)
	walk = func(setID operation.BoundSelectionSetID, isRoot bool) {
		for _, fid := range op.SelectionSet(setID).Fields {
			bf := op.Field(fid)
			if bf.Kind != operation.KindTypeName {
				fd := sch.Field(bf.Definition)
				if fd.Authorized != nil && !seen[fd.ID] {
					seen[fd.ID] = true
					site := authz.Site{TypeName: sch.Type(bf.ParentType).Name, FieldName: fd.Name, IsRoot: isRoot}
					args := queryElementArgs(op, bf, fd.Authorized.ArgumentNames)
					id := len(elements)
					elements = append(elements, authz.QueryElement{ID: id, Directive: "authorized", Arguments: args, Site: site})
					byResponseKey[op.ResponseKeys.Name(bf.ResponseKey)] = id
				}
			}
			if bf.HasSelectionSet {
				walk(bf.SelectionSet, false)
			}
		}
	}
	walk(op.Root, true)
	return elements, byResponseKey
}

// queryElementArgs reads bf's argument values for the names @authorized
// names, resolving literals directly and variable references through
// their VariableDefinition name (the executor does not have the coerced
// runtime value at plan-build time here, so a variable-valued argument is
// passed through as its $name placeholder; policies that need the actual
// value should read it via the coerced Variables map the binder already
// validated it against).
func queryElementArgs(op *operation.BoundOperation, bf *operation.BoundField, names []string) map[string]interface{} {
	if len(names) == 0 {
		return nil
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	args := map[string]interface{}{}
	for i := bf.Args.Start; i < bf.Args.End; i++ {
		arg := op.Arguments[i]
		if !want[arg.Name] {
			continue
		}
		args[arg.Name] = literalOf(op, arg.Value)
	}
	return args
}

func literalOf(op *operation.BoundOperation, id operation.QueryInputValueID) interface{} {
	v := op.InputValue(id)
	switch v.Kind {
	case operation.ValueScalar, operation.ValueEnum:
		return v.Scalar
	case operation.ValueVariable:
		return "$" + op.Variables[v.Variable].Name
	case operation.ValueList:
		out := make([]interface{}, len(v.List))
		for i, e := range v.List {
			out[i] = literalOf(op, e)
		}
		return out
	case operation.ValueInputObject:
		out := make(map[string]interface{}, len(v.Object))
		for _, f := range v.Object {
			out[f.Name] = literalOf(op, f.Value)
		}
		return out
	default:
		return nil
	}
}
