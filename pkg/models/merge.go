package models

// MergeOutcomeKind classifies the result of the merge primitive (spec
// section 4.4).
type MergeOutcomeKind string

const (
	MergeSuccess         MergeOutcomeKind = "success"
	MergeFastForward     MergeOutcomeKind = "fast_forward"
	MergeAlreadyUpToDate MergeOutcomeKind = "already_up_to_date"
	MergeNoBranch        MergeOutcomeKind = "no_branch"
	MergeConflictKind    MergeOutcomeKind = "conflict"
)

// MergeOutcome is the result of attempting to merge a completed
// stage's branch into the merge point.
type MergeOutcome struct {
	Kind          MergeOutcomeKind
	FilesChanged  int
	Insertions    int
	Deletions     int
	ConflictFiles []string
}

// Ok reports whether the outcome requires no further resolution
// (everything except Conflict).
func (o MergeOutcome) Ok() bool {
	return o.Kind != MergeConflictKind
}
