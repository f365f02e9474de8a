package response

// AncestorKind discriminates whether one frame of a bubble chain is an
// object field container or a list element slot.
type AncestorKind uint8

const (
	AncestorObject AncestorKind = iota
	AncestorList
)

// Ancestor implements GraphQL's null-propagation rule (data model §3,
// spec §4.5 step 5 and §8 "Null bubbling correctness"): when a field
// whose own type is non-null resolves to null or Inaccessible, the
// nearest nullable ancestor in the response absorbs the null instead.
// Grounded on hanpama-protograph's doc.go "Non-Null propagation and
// pruning" (a located violation nulls the nearest nullable ancestor and
// tombstones the subtree under it), adapted from that package's BFS
// frontier-pruning to this tree's already-built Object/Value shape:
// ApplyBubble walks from an offending leaf up through already-pushed
// parent objects/lists. The executor's ingestion does not call it; it
// carries a violation up to the nearest nullable field itself while
// building objects (executor/ingest.go).
//
// One Ancestor is one frame of the chain from the violating field's
// immediate container (innermost) outward. NonNull is that frame's own
// non-null-ness: a frame with NonNull==true must itself keep bubbling
// once it becomes null, so the walk continues past it.
type Ancestor struct {
	Kind AncestorKind

	Object      ObjectID
	ResponseKey string

	List  ListID
	Index int

	NonNull bool
}

// ApplyBubble walks chain (innermost first), writing Inaccessible at the
// first nullable frame and stopping there. It reports whether the null
// was absorbed within chain (true) or the caller's own container --  or,
// if chain was the whole response, the response root itself -- must
// become null (false): spec §4.5 "if none exists below the root, the
// entire response data becomes null".
func ApplyBubble(builders map[PartID]*Builder, chain []Ancestor) bool {
	for _, a := range chain {
		switch a.Kind {
		case AncestorObject:
			if b := builders[a.Object.Part()]; b != nil {
				b.SetObjectField(a.Object, a.ResponseKey, Inaccessible())
			}
		case AncestorList:
			if b := builders[a.List.Part()]; b != nil {
				setListElement(b, a.List, a.Index, Inaccessible())
			}
		}
		if !a.NonNull {
			return true
		}
	}
	return false
}

// setListElement overwrites one element of an already-pushed list in
// place, analogous to Builder.SetObjectField for objects.
func setListElement(b *Builder, id ListID, index int, v Value) {
	if id.Part() != b.id {
		return
	}
	list := b.part.lists[id.index()]
	if index >= 0 && index < len(list) {
		list[index] = v
	}
}
