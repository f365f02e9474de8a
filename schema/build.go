package schema

import (
	"sort"
	"strconv"

	"github.com/samsarahq/go/oops"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"github.com/vektah/gqlparser/v2/parser"
)

// BuildError describes a violating SDL position, matching the schema
// model's failure policy from §4.1 ("construction returns an error
// describing the violating SDL position").
type BuildError struct {
	Message string
	Line    int
	Column  int
}

func (e *BuildError) Error() string {
	if e.Line == 0 {
		return e.Message
	}
	return "supergraph.graphql:" + itoa(e.Line) + ":" + itoa(e.Column) + ": " + e.Message
}

func itoa(i int) string { return strconv.Itoa(i) }

// Build parses a supergraph SDL document (already composed, enriched with
// @join__type/@join__field/@link per §6) into an immutable Schema.
//
// Build does not re-validate composition; it trusts the document was
// produced by a conformant composer, per §6.
func Build(sdl string) (*Schema, error) {
	src := &ast.Source{Name: "supergraph.graphql", Input: sdl}
	doc, err := parser.ParseSchema(src)
	if err != nil {
		if gqlErr, ok := err.(*gqlerror.Error); ok {
			be := &BuildError{Message: gqlErr.Message}
			if len(gqlErr.Locations) > 0 {
				be.Line = gqlErr.Locations[0].Line
				be.Column = gqlErr.Locations[0].Column
			}
			return nil, be
		}
		return nil, oops.Wrapf(err, "parsing supergraph SDL")
	}

	b := &builder{
		doc:            doc,
		typeByName:     map[string]TypeID{},
		entities:       map[TypeID]*EntityDefinition{},
		subgraphByName: map[string]SubgraphID{},
	}

	// Built-in scalars are registered unconditionally, not only on first
	// use by some field: a variable can declare e.g. `Boolean` even if no
	// field in the supergraph happens to return one.
	for _, name := range []string{"String", "Int", "Float", "Boolean", "ID"} {
		id := TypeID(len(b.types))
		b.types = append(b.types, TypeDefinition{ID: id, Name: name, Kind: KindScalar})
		b.typeByName[name] = id
	}

	if err := b.collectSubgraphs(); err != nil {
		return nil, err
	}
	if err := b.collectTypes(); err != nil {
		return nil, err
	}
	if err := b.collectFields(); err != nil {
		return nil, err
	}
	if err := b.collectEntities(); err != nil {
		return nil, err
	}

	s := &Schema{
		types:       b.types,
		fields:      b.fields,
		inputValues: b.inputValues,
		subgraphs:   b.subgraphs,
		directives:  b.directives,
		entities:    b.entities,
		typeByName:  b.typeByName,
	}

	if id, ok := s.typeByName["Query"]; ok {
		s.queryType = id
	} else {
		return nil, &BuildError{Message: "schema has no Query root type"}
	}
	if id, ok := s.typeByName["Mutation"]; ok {
		s.mutationType, s.hasMutation = id, true
	}
	if id, ok := s.typeByName["Subscription"]; ok {
		s.subType, s.hasSub = id, true
	}

	if err := s.validate(); err != nil {
		return nil, err
	}

	return s, nil
}

// builder accumulates the dense arenas while walking the gqlparser AST,
// mirroring the teacher's two-pass "initialize barebones types, then fill
// fields" approach in parseSchema.
type builder struct {
	doc *ast.SchemaDocument

	types       []TypeDefinition
	fields      []FieldDefinition
	inputValues []InputValueDefinition
	subgraphs   []Subgraph
	directives  []TypeSystemDirective
	entities    map[TypeID]*EntityDefinition

	typeByName     map[string]TypeID
	subgraphByName map[string]SubgraphID
}

func (b *builder) collectSubgraphs() error {
	var names []string
	seen := map[string]bool{}
	for _, def := range b.doc.Definitions {
		dir := def.Directives.ForName("join__type")
		if dir == nil {
			continue
		}
		for _, d := range def.Directives {
			if d.Name != "join__type" {
				continue
			}
			if g := directiveArgString(d, "graph"); g != "" && !seen[g] {
				seen[g] = true
				names = append(names, g)
			}
		}
	}
	sort.Strings(names)
	for _, n := range names {
		id := SubgraphID(len(b.subgraphs))
		b.subgraphs = append(b.subgraphs, Subgraph{ID: id, Name: n, Kind: SubgraphGraphQLEndpoint})
		b.subgraphByName[n] = id
	}
	return nil
}

func (b *builder) collectTypes() error {
	defs := make([]*ast.Definition, 0, len(b.doc.Definitions))
	for _, def := range b.doc.Definitions {
		if isBuiltin(def.Name) {
			continue
		}
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })

	for _, def := range defs {
		if _, ok := b.typeByName[def.Name]; ok {
			line := 0
			if def.Position != nil {
				line = def.Position.Line
			}
			return &BuildError{Message: "duplicate type " + def.Name, Line: line}
		}
		kind, ok := astKind(def.Kind)
		if !ok {
			continue
		}
		id := TypeID(len(b.types))
		b.types = append(b.types, TypeDefinition{ID: id, Name: def.Name, Kind: kind})
		b.typeByName[def.Name] = id
		b.types[id].Directives = b.recordDirectives(def.Directives)
	}
	return nil
}

// recordDirectives appends every directive application in dirs (including
// ones with dedicated typed representations elsewhere, e.g. @join__field)
// to the generic directive arena, so DirectivesOf also surfaces directives
// this builder has no specific model for (@deprecated, @tag, and the
// like) instead of silently dropping them.
func (b *builder) recordDirectives(dirs ast.DirectiveList) IDRange {
	start := len(b.directives)
	for _, d := range dirs {
		args := map[string]interface{}{}
		for _, a := range d.Arguments {
			args[a.Name] = astValueLiteral(a.Value)
		}
		b.directives = append(b.directives, TypeSystemDirective{Name: d.Name, Args: args})
	}
	return IDRange{Start: uint32(start), End: uint32(len(b.directives))}
}

func astKind(k ast.DefinitionKind) (TypeKind, bool) {
	switch k {
	case ast.Scalar:
		return KindScalar, true
	case ast.Object:
		return KindObject, true
	case ast.Interface:
		return KindInterface, true
	case ast.Union:
		return KindUnion, true
	case ast.Enum:
		return KindEnum, true
	case ast.InputObject:
		return KindInputObject, true
	default:
		return 0, false
	}
}

func isBuiltin(name string) bool {
	switch name {
	case "String", "Int", "Float", "Boolean", "ID":
		return true
	}
	return len(name) >= 2 && name[:2] == "__"
}

func (b *builder) collectFields() error {
	for _, def := range b.doc.Definitions {
		tid, ok := b.typeByName[def.Name]
		if !ok {
			continue
		}
		// Read by index (never held as a pointer across the loop body);
		// buildField only looks types up, since the built-in scalars are
		// registered before this pass.
		kind := b.types[tid].Kind

		switch kind {
		case KindObject, KindInterface:
			start := len(b.fields)
			fieldDefs := append([]*ast.FieldDefinition{}, def.Fields...)
			sort.Slice(fieldDefs, func(i, j int) bool { return fieldDefs[i].Name < fieldDefs[j].Name })
			for _, f := range fieldDefs {
				fd, err := b.buildField(tid, f)
				if err != nil {
					return err
				}
				fd.ID = FieldID(len(b.fields))
				b.fields = append(b.fields, fd)
			}
			b.types[tid].Fields = IDRange{Start: uint32(start), End: uint32(len(b.fields))}

			for _, iface := range def.Interfaces {
				if iid, ok := b.typeByName[iface]; ok {
					b.types[tid].Interfaces = append(b.types[tid].Interfaces, iid)
					b.types[iid].PossibleTypes = append(b.types[iid].PossibleTypes, tid)
				}
			}

		case KindUnion:
			for _, member := range def.Types {
				if mid, ok := b.typeByName[member]; ok {
					b.types[tid].PossibleTypes = append(b.types[tid].PossibleTypes, mid)
				}
			}

		case KindEnum:
			for _, v := range def.EnumValues {
				b.types[tid].EnumValues = append(b.types[tid].EnumValues, v.Name)
			}

		case KindInputObject:
			start := len(b.inputValues)
			for _, f := range def.Fields {
				iv, err := b.buildInputValue(f)
				if err != nil {
					return err
				}
				b.inputValues = append(b.inputValues, iv)
			}
			b.types[tid].InputFields = IDRange{Start: uint32(start), End: uint32(len(b.inputValues))}
		}
	}
	return nil
}

func (b *builder) buildField(parent TypeID, f *ast.FieldDefinition) (FieldDefinition, error) {
	ftype, err := b.resolveFieldType(f.Type)
	if err != nil {
		return FieldDefinition{}, oops.Wrapf(err, "field %s", f.Name)
	}

	argStart := len(b.inputValues)
	args := append([]*ast.ArgumentDefinition{}, f.Arguments...)
	for _, a := range args {
		iv, err := b.buildArg(a)
		if err != nil {
			return FieldDefinition{}, err
		}
		b.inputValues = append(b.inputValues, iv)
	}

	fd := FieldDefinition{
		Parent:     parent,
		Name:       f.Name,
		Type:       ftype,
		Args:       IDRange{Start: uint32(argStart), End: uint32(len(b.inputValues))},
		Directives: b.recordDirectives(f.Directives),
		Resolvable: map[SubgraphID]bool{},
		Requires:   map[SubgraphID]FieldSet{},
		Provides:   map[SubgraphID]FieldSet{},
	}

	for _, d := range f.Directives {
		switch d.Name {
		case "join__field":
			graph := directiveArgString(d, "graph")
			sg, ok := b.subgraphByName[graph]
			if graph == "" {
				// No graph argument: left to collectEntities, which gives
				// a field with no resolvable subgraph the graph of its
				// type's first @join__type only.
				continue
			}
			if !ok {
				return FieldDefinition{}, oops.Errorf("field %s.%s references unknown graph %q", fd.Parent, f.Name, graph)
			}
			if external := directiveArgBool(d, "external"); !external {
				fd.Resolvable[sg] = true
			}
			if req := directiveArgString(d, "requires"); req != "" {
				fs, err := ParseFieldSet(req)
				if err != nil {
					return FieldDefinition{}, oops.Wrapf(err, "@requires on %s", f.Name)
				}
				fd.Requires[sg] = fs
			}
			if prov := directiveArgString(d, "provides"); prov != "" {
				fs, err := ParseFieldSet(prov)
				if err != nil {
					return FieldDefinition{}, oops.Wrapf(err, "@provides on %s", f.Name)
				}
				fd.Provides[sg] = fs
			}
		case "cost":
			fd.Cost = directiveArgInt(d, "weight")
		case "listSize":
			fd.ListSize = &ListSizeHint{
				AssumedSize:       directiveArgInt(d, "assumedSize"),
				SlicingArguments:  directiveArgStringList(d, "slicingArguments"),
				SizedFields:       directiveArgStringList(d, "sizedFields"),
				RequireOneSlicing: directiveArgBool(d, "requireOneSlicingArgument"),
			}
		case "authorized":
			fd.Authorized = &AuthorizedMetadata{
				ArgumentNames: directiveArgStringList(d, "arguments"),
			}
			if fs := directiveArgString(d, "fields"); fs != "" {
				parsed, err := ParseFieldSet(fs)
				if err != nil {
					return FieldDefinition{}, oops.Wrapf(err, "@authorized fields on %s", f.Name)
				}
				fd.Authorized.Fields = parsed
			}
		case "derived":
			fd.Derived = &DerivedField{From: directiveArgString(d, "from")}
		}
	}

	return fd, nil
}

func (b *builder) buildArg(a *ast.ArgumentDefinition) (InputValueDefinition, error) {
	ftype, err := b.resolveFieldType(a.Type)
	if err != nil {
		return InputValueDefinition{}, oops.Wrapf(err, "argument %s", a.Name)
	}
	return InputValueDefinition{
		Name:         a.Name,
		Type:         ftype,
		HasDefault:   a.DefaultValue != nil,
		DefaultValue: astValueLiteral(a.DefaultValue),
	}, nil
}

func (b *builder) buildInputValue(f *ast.FieldDefinition) (InputValueDefinition, error) {
	ftype, err := b.resolveFieldType(f.Type)
	if err != nil {
		return InputValueDefinition{}, oops.Wrapf(err, "input field %s", f.Name)
	}
	return InputValueDefinition{
		Name:         f.Name,
		Type:         ftype,
		HasDefault:   f.DefaultValue != nil,
		DefaultValue: astValueLiteral(f.DefaultValue),
	}, nil
}

func (b *builder) resolveFieldType(t *ast.Type) (FieldType, error) {
	return resolveASTType(b.typeByName, t)
}

// ResolveType resolves an ast.Type parsed from an operation document's
// variable declarations against an already-built Schema.
func ResolveType(s *Schema, t *ast.Type) (FieldType, error) {
	return resolveASTType(s.typeByName, t)
}

func resolveASTType(typeByName map[string]TypeID, t *ast.Type) (FieldType, error) {
	var wrapping []Wrapper
	cur := t
	for {
		if cur.NonNull {
			wrapping = append(wrapping, WrapNonNull)
		}
		if cur.Elem != nil {
			wrapping = append(wrapping, WrapList)
			cur = cur.Elem
			continue
		}
		break
	}
	tid, ok := typeByName[cur.NamedType]
	if !ok {
		return FieldType{}, oops.Errorf("unknown named type %q", cur.NamedType)
	}
	return FieldType{Leaf: tid, Wrapping: wrapping}, nil
}

// collectEntities builds per-subgraph key lists for every type carrying a
// @join__type(key: "...") directive.
func (b *builder) collectEntities() error {
	for _, def := range b.doc.Definitions {
		tid, ok := b.typeByName[def.Name]
		if !ok {
			continue
		}
		td := &b.types[tid]
		if td.Kind != KindObject && td.Kind != KindInterface {
			continue
		}

		for _, d := range def.Directives {
			if d.Name != "join__type" {
				continue
			}
			graph := directiveArgString(d, "graph")
			sg, ok := b.subgraphByName[graph]
			if !ok {
				continue
			}

			// A bare join__type(graph: X) with no key still means every
			// field resolvable nowhere else defaults to X.
			for i := td.Fields.Start; i < td.Fields.End; i++ {
				fd := &b.fields[i]
				if len(fd.Resolvable) == 0 {
					fd.Resolvable[sg] = true
				}
			}

			key := directiveArgString(d, "key")
			if key == "" {
				continue
			}
			fs, err := ParseFieldSet(key)
			if err != nil {
				return oops.Wrapf(err, "@join__type key on %s", def.Name)
			}
			resolvable := true
			if d.Arguments.ForName("resolvable") != nil {
				resolvable = directiveArgBool(d, "resolvable")
			}
			if !resolvable {
				continue
			}

			ent, ok := b.entities[tid]
			if !ok {
				ent = &EntityDefinition{Type: tid, Keys: map[SubgraphID][]Key{}}
				b.entities[tid] = ent
			}
			ent.Keys[sg] = append(ent.Keys[sg], Key{Fields: fs})
		}
	}
	return nil
}

func directiveArgString(d *ast.Directive, name string) string {
	a := d.Arguments.ForName(name)
	if a == nil || a.Value == nil {
		return ""
	}
	v, _ := astValueLiteral(a.Value).(string)
	return v
}

func directiveArgBool(d *ast.Directive, name string) bool {
	a := d.Arguments.ForName(name)
	if a == nil || a.Value == nil {
		return false
	}
	v, _ := astValueLiteral(a.Value).(bool)
	return v
}

func directiveArgInt(d *ast.Directive, name string) int {
	a := d.Arguments.ForName(name)
	if a == nil || a.Value == nil {
		return 0
	}
	switch v := astValueLiteral(a.Value).(type) {
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func directiveArgStringList(d *ast.Directive, name string) []string {
	a := d.Arguments.ForName(name)
	if a == nil || a.Value == nil || a.Value.Kind != ast.ListValue {
		return nil
	}
	var out []string
	for _, c := range a.Value.Children {
		if s, ok := astValueLiteral(c.Value).(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// astValueLiteral converts a constant ast.Value into a plain Go value.
// Variables are not valid in type-system directive arguments so they are
// not handled here.
func astValueLiteral(v *ast.Value) interface{} {
	if v == nil {
		return nil
	}
	switch v.Kind {
	case ast.StringValue, ast.BlockValue, ast.EnumValue:
		return v.Raw
	case ast.IntValue:
		n, _ := strconv.ParseInt(v.Raw, 10, 64)
		return n
	case ast.FloatValue:
		f, _ := strconv.ParseFloat(v.Raw, 64)
		return f
	case ast.BooleanValue:
		return v.Raw == "true"
	case ast.NullValue:
		return nil
	case ast.ListValue:
		out := make([]interface{}, 0, len(v.Children))
		for _, c := range v.Children {
			out = append(out, astValueLiteral(c.Value))
		}
		return out
	case ast.ObjectValue:
		out := map[string]interface{}{}
		for _, c := range v.Children {
			out[c.Name] = astValueLiteral(c.Value)
		}
		return out
	default:
		return v.Raw
	}
}
