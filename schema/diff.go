package schema

import "sort"

// SchemaDiff summarizes the structural changes between two successive
// supergraph builds — the narrow piece of the original's hot-reload
// safety check (crates/graphql-schema-diff) this core keeps even though
// hot-reload itself (file watching, atomic swap) stays out of scope: the
// Plan Materializer's cache needs to know whether a schema swap
// invalidates previously rendered selection text and field shapes.
type SchemaDiff struct {
	// RemovedTypes lists type names present in the old schema but absent
	// from the updated one.
	RemovedTypes []string
	// RemovedFields lists "TypeName.fieldName" entries for fields that
	// existed on a type still present in both schemas but disappeared.
	RemovedFields []string
	// ChangedFieldTypes lists "TypeName.fieldName" entries whose declared
	// type (leaf or wrapping) changed between schemas.
	ChangedFieldTypes []string
}

// Safe reports whether a cached Plan built against the old schema could
// still be valid against the updated one: no type/field removal and no
// field retyping. Additions are always safe — a Plan never references a
// field it doesn't name.
func (d *SchemaDiff) Safe() bool {
	return len(d.RemovedTypes) == 0 && len(d.RemovedFields) == 0 && len(d.ChangedFieldTypes) == 0
}

// Diff compares old against updated, reporting every removal or field-
// type change a plan cached against old might have been built around. A
// nil old is always reported safe (first load, nothing to invalidate).
func Diff(old, updated *Schema) (*SchemaDiff, error) {
	d := &SchemaDiff{}
	if old == nil || updated == nil {
		return d, nil
	}

	for name, tid := range old.typeByName {
		newID, ok := updated.typeByName[name]
		if !ok {
			d.RemovedTypes = append(d.RemovedTypes, name)
			continue
		}

		oldType := old.Type(tid)
		if oldType.Kind != KindObject && oldType.Kind != KindInterface {
			continue
		}

		oldFields := old.fields[oldType.Fields.Start:oldType.Fields.End]
		for i := range oldFields {
			oldFD := &oldFields[i]
			newFID, ok := updated.FieldByName(newID, oldFD.Name)
			if !ok {
				d.RemovedFields = append(d.RemovedFields, name+"."+oldFD.Name)
				continue
			}
			if !sameFieldType(oldFD.Type, updated.Field(newFID).Type) {
				d.ChangedFieldTypes = append(d.ChangedFieldTypes, name+"."+oldFD.Name)
			}
		}
	}

	sort.Strings(d.RemovedTypes)
	sort.Strings(d.RemovedFields)
	sort.Strings(d.ChangedFieldTypes)
	return d, nil
}

func sameFieldType(a, b FieldType) bool {
	if a.Leaf != b.Leaf || len(a.Wrapping) != len(b.Wrapping) {
		return false
	}
	for i := range a.Wrapping {
		if a.Wrapping[i] != b.Wrapping[i] {
			return false
		}
	}
	return true
}
