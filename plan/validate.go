package plan

import "fmt"

// Validate sanity-checks a materialized Plan: no partition id appears
// twice in All and each partition's parent precedes it there, entity
// partitions carry Representations, selection text is non-empty, and no
// partition reachable from Roots is its own ancestor. It does not check
// that every partition reachable from Roots is listed in All. Exported standalone (rather than folded into Materialize) so
// a future verification surface can reuse the same check the materializer
// already trusts internally, the same way the original's MCP verify tool
// re-exposed its planner's own validation rather than re-implementing it.
func (pl *Plan) Validate() error {
	seen := make(map[int]bool, len(pl.All))
	for i, p := range pl.All {
		if seen[p.ID] {
			return fmt.Errorf("plan: duplicate partition id %d", p.ID)
		}
		seen[p.ID] = true
		if p.Parent != nil && !seen[p.Parent.ID] {
			return fmt.Errorf("plan: partition %d appears before its parent %d in All", p.ID, p.Parent.ID)
		}
		if p.Form == FormEntity && p.Representations == nil {
			return fmt.Errorf("plan: entity partition %d has no representations", p.ID)
		}
		if p.SelectionText == "" {
			return fmt.Errorf("plan: partition %d has empty selection text", p.ID)
		}
		_ = i
	}

	for _, root := range pl.Roots {
		if err := validateAcyclic(root, map[int]bool{}); err != nil {
			return err
		}
	}
	return nil
}

func validateAcyclic(p *Partition, ancestors map[int]bool) error {
	if ancestors[p.ID] {
		return fmt.Errorf("plan: partition %d is its own ancestor", p.ID)
	}
	ancestors[p.ID] = true
	for _, c := range p.Children {
		if c.Parent != p {
			return fmt.Errorf("plan: partition %d's child %d has mismatched Parent pointer", p.ID, c.ID)
		}
		if err := validateAcyclic(c, ancestors); err != nil {
			return err
		}
	}
	delete(ancestors, p.ID)
	return nil
}
