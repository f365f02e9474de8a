package response

import (
	"sort"
	"sync"

	"github.com/thundergraph/gateway/gwerrors"
)

// part is one DataPart: two arenas (objects, lists) reserved empty by
// NewPart and filled exactly once by the owning partition's ingestion.
type part struct {
	id      PartID
	filled  bool
	objects []Object
	lists   [][]Value
}

// Tree is the multi-part response arena partitions write into
// concurrently (data model §3, §4.6). A part is reserved with NewPart,
// populated with PushObject/PushList calls, and handed back with
// Insert; the scheduler (executor package) guarantees a part is never
// read by another partition until its owner has called Insert, so the
// mutex here only guards the parts slice itself, never a part's own
// arenas mid-fill.
type Tree struct {
	mu    sync.Mutex
	parts []*part

	RootObject ObjectID
}

// New builds an empty Tree.
func New() *Tree {
	return &Tree{}
}

// NewPart reserves a fresh, empty part and returns a handle the caller
// must eventually pass to Insert exactly once.
func (t *Tree) NewPart() *Builder {
	t.mu.Lock()
	id := PartID(len(t.parts))
	t.parts = append(t.parts, &part{id: id})
	t.mu.Unlock()
	return &Builder{id: id, part: &part{id: id}}
}

// Builder accumulates one part's objects/lists before Insert commits it
// into the Tree. It is owned by exactly one partition and never touched
// concurrently, so it needs no locking of its own.
type Builder struct {
	id   PartID
	part *part
}

// ID returns the PartID this builder will commit into.
func (b *Builder) ID() PartID { return b.id }

// PushObject appends obj to the builder's object arena, sorting its
// Fields by (QueryPosition, ResponseKey) per the data model's ordering
// invariant, and returns its stable ObjectID.
func (b *Builder) PushObject(obj Object) ObjectID {
	sort.SliceStable(obj.Fields, func(i, j int) bool {
		if obj.Fields[i].QueryPosition != obj.Fields[j].QueryPosition {
			return obj.Fields[i].QueryPosition < obj.Fields[j].QueryPosition
		}
		return obj.Fields[i].ResponseKey < obj.Fields[j].ResponseKey
	})
	idx := uint32(len(b.part.objects))
	b.part.objects = append(b.part.objects, obj)
	return newObjectID(b.id, idx)
}

// PushList appends values as a new response list and returns its stable
// ListID.
func (b *Builder) PushList(values []Value) ListID {
	idx := uint32(len(b.part.lists))
	b.part.lists = append(b.part.lists, values)
	return newListID(b.id, idx)
}

// SetObjectField overwrites the value of an already-pushed object's
// field in place, matching on response key. Used by ApplyBubble to
// write a child's null into its parent object after the parent was
// already pushed.
func (b *Builder) SetObjectField(id ObjectID, responseKey string, v Value) bool {
	if id.Part() != b.id {
		return false
	}
	obj := &b.part.objects[id.index()]
	for i := range obj.Fields {
		if obj.Fields[i].ResponseKey == responseKey {
			obj.Fields[i].Value = v
			return true
		}
	}
	return false
}

// Object returns the already-pushed object for id, for read access
// within the owning builder (e.g. reading key fields back out to build
// an entity partition's representations) before Insert.
func (b *Builder) Object(id ObjectID) *Object {
	if id.Part() != b.id {
		return nil
	}
	return &b.part.objects[id.index()]
}

// Insert commits a filled builder's part into the Tree. Calling Insert
// twice for the same builder, or inserting into a Tree that already has
// this PartID filled, is a scheduler bug and returns a CodeInternal
// error per data model §3 ("DataParts.insert... panics if the slot was
// already filled") -- surfaced as an error here rather than a panic
// since this is a library the executor should be able to recover from
// in tests.
func (t *Tree) Insert(b *Builder) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if int(b.id) >= len(t.parts) {
		return gwerrors.Internal(nil, "response: insert into unreserved part %d", b.id)
	}
	if t.parts[b.id].filled {
		return gwerrors.Internal(nil, "response: part %d already inserted", b.id)
	}
	b.part.filled = true
	t.parts[b.id] = b.part
	return nil
}

// Discard abandons a builder's part without inserting it (cancellation
// per spec §5: "A partition that is mid-ingest discards its DataPart on
// cancellation"). The reserved slot stays empty; nothing may reference
// ids from it since nothing was ever inserted.
func (t *Tree) Discard(b *Builder) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if int(b.id) < len(t.parts) {
		t.parts[b.id] = &part{id: b.id, filled: false}
	}
}

func (t *Tree) object(id ObjectID) (*Object, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := id.Part()
	if int(p) >= len(t.parts) || !t.parts[p].filled {
		return nil, false
	}
	objs := t.parts[p].objects
	idx := id.index()
	if int(idx) >= len(objs) {
		return nil, false
	}
	return &objs[idx], true
}

func (t *Tree) list(id ListID) ([]Value, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := id.Part()
	if int(p) >= len(t.parts) || !t.parts[p].filled {
		return nil, false
	}
	lists := t.parts[p].lists
	idx := id.index()
	if int(idx) >= len(lists) {
		return nil, false
	}
	return lists[idx], true
}

// MergeFields appends fields onto an already-inserted object, re-sorting
// by (QueryPosition, ResponseKey). This is how an entity partition's
// ingestion stitches its resolved fields (e.g. "reviews") onto the same
// response object an ancestor partition already produced (e.g. the
// "users" partition's User object carrying "id"/"name"): both
// contribute to one logical entity, so the tree allows a filled part's
// object to gain fields from a later partition even though the part
// itself was only *created* once. The scheduler guarantees no two
// partitions target the same response key concurrently (the solver
// never assigns the same field to two partitions), so this never races
// with another writer of the same object.
func (t *Tree) MergeFields(id ObjectID, fields []Field) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := id.Part()
	if int(p) >= len(t.parts) || !t.parts[p].filled {
		return gwerrors.Internal(nil, "response: merge into unfilled part %d", p)
	}
	idx := id.index()
	if int(idx) >= len(t.parts[p].objects) {
		return gwerrors.Internal(nil, "response: merge into dangling object %d", id)
	}
	obj := &t.parts[p].objects[idx]
	obj.Fields = append(obj.Fields, fields...)
	sort.SliceStable(obj.Fields, func(i, j int) bool {
		if obj.Fields[i].QueryPosition != obj.Fields[j].QueryPosition {
			return obj.Fields[i].QueryPosition < obj.Fields[j].QueryPosition
		}
		return obj.Fields[i].ResponseKey < obj.Fields[j].ResponseKey
	})
	return nil
}

// ReadObject reads back an already-inserted object by id, for code outside
// the tree (representations building, authorization item batching) that
// needs read access after ingestion. ok is false if the id references a
// part that was never inserted -- the "no dangling references" invariant
// means this should never happen for a well-formed plan, but callers
// check it rather than indexing blind.
func (t *Tree) ReadObject(id ObjectID) (*Object, bool) { return t.object(id) }

// ReadList reads back an already-inserted list by id.
func (t *Tree) ReadList(id ListID) ([]Value, bool) { return t.list(id) }
