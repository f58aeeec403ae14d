package stage

import "strings"

// Stage is one of the three production phases every variable and label file
// is scoped to. It is a classification tag, not a stored entity.
type Stage string

const (
	Raw Stage = "Raw"
	SFG Stage = "SFG"
	FG  Stage = "FG"
)

func (s Stage) String() string { return string(s) }

// All returns the three canonical stages in pipeline order.
func All() []Stage {
	return []Stage{Raw, SFG, FG}
}

// Normalize canonicalizes a free-form stage name. It accepts the canonical
// forms verbatim plus the case-insensitive alias set clients are known to
// send. Unknown input reports ok=false; callers must reject the request.
func Normalize(raw string) (Stage, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", false
	}
	switch strings.ToLower(trimmed) {
	case "raw", "rawmaterial", "raw_material", "raw material", "raw-material":
		return Raw, true
	case "sfg", "semi", "semi_finished", "semi_finished_good", "semi finished", "semi-finished", "semifinished":
		return SFG, true
	case "fg", "finished", "finished_good", "finished good", "finished-good":
		return FG, true
	}
	return "", false
}
