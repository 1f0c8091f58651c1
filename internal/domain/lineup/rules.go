package lineup

import "fmt"

// DuplicateAssignmentError reports the first slot in which two entries
// carry the same non-excluded position label.
type DuplicateAssignmentError struct {
	Slot  int
	Label string
}

func (e *DuplicateAssignmentError) Error() string {
	return fmt.Sprintf("duplicate assignment: label %s already taken in slot %d", e.Label, e.Slot)
}

// ValidateExclusivity enforces that within any single slot no two entries
// carry the same non-excluded label. Labels compare case-insensitively;
// excluded labels may repeat freely. It must run before every lineup
// persist, manual or generated.
func ValidateExclusivity(entries []Entry, slotCount int) error {
	for slot := 1; slot <= slotCount; slot++ {
		seen := make(map[string]struct{}, len(entries))
		for _, entry := range entries {
			label, ok := entry.Assignments[slot]
			if !ok {
				continue
			}
			folded := foldLabel(label)
			if folded == "" || IsExcludedLabel(folded) {
				continue
			}
			if _, dup := seen[folded]; dup {
				return &DuplicateAssignmentError{Slot: slot, Label: folded}
			}
			seen[folded] = struct{}{}
		}
	}

	return nil
}
