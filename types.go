package shadwell

import "github.com/pfmoore/shadwell/candidate"

// RejectReason names the eligibility check a candidate failed.
type RejectReason string

// Rejection reasons, in pipeline order.
const (
	RejectNameMismatch     RejectReason = "name-mismatch"
	RejectMalformed        RejectReason = "malformed"
	RejectSpecifier        RejectReason = "specifier"
	RejectPrerelease       RejectReason = "prerelease"
	RejectRequiresPython   RejectReason = "requires-python"
	RejectBinaryProhibited RejectReason = "binary-prohibited"
	RejectIncompatibleTags RejectReason = "incompatible-tags"
	RejectBinaryRequired   RejectReason = "binary-required"
	RejectYanked           RejectReason = "yanked"
)

// AllRejectReasons lists every reason in pipeline order.
var AllRejectReasons = []RejectReason{
	RejectNameMismatch,
	RejectMalformed,
	RejectSpecifier,
	RejectPrerelease,
	RejectRequiresPython,
	RejectBinaryProhibited,
	RejectIncompatibleTags,
	RejectBinaryRequired,
	RejectYanked,
}

// Evaluation is the verdict on one candidate of a pool.
type Evaluation struct {
	Candidate candidate.Candidate
	// Reason is empty for candidates that made it into the result.
	Reason RejectReason
	// Position is the 0-based index in the ranked result, or -1 when rejected.
	Position int
	// Rank is the compatibility rank: 0 for source artifacts, positive for
	// compatible wheels. Zero for rejected candidates.
	Rank int
}

// Accepted reports whether the candidate is part of the ranked result.
func (e Evaluation) Accepted() bool {
	return e.Reason == ""
}
