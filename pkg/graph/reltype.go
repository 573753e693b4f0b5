package graph

// Suggested relationship vocabulary.
//
// The store accepts any non-empty relationship type so callers can model
// domains the vocabulary never anticipated, but sticking to these constants
// keeps hypothesis aggregation by type meaningful across subsystems.
// IsKnownRelationship reports whether a type is part of the vocabulary;
// unknown types are legal, just unaggregatable with the known ones.
const (
	RelIsA           = "is_a"
	RelPartOf        = "part_of"
	RelHasProperty   = "has_property"
	RelCauses        = "causes"
	RelEnables       = "enables"
	RelPrevents      = "prevents"
	RelInfluences    = "influences"
	RelPrecedes      = "precedes"
	RelFollows       = "follows"
	RelCoOccursWith  = "co_occurs_with"
	RelSimilarTo     = "similar_to"
	RelOppositeOf    = "opposite_of"
	RelRelatedTo     = "related_to"
	RelUses          = "uses"
	RelDependsOn     = "depends_on"
	RelSupports      = "supports"
	RelConflictsWith = "conflicts_with"
	RelMentionedWith = "mentioned_with"
	RelLearnedFrom   = "learned_from"
	RelAppliedTo     = "applied_to"
	RelImplies       = "implies"
	RelContradicts   = "contradicts"
	RelExemplifies   = "exemplifies"
)

var knownRelationships = map[string]struct{}{
	RelIsA:           {},
	RelPartOf:        {},
	RelHasProperty:   {},
	RelCauses:        {},
	RelEnables:       {},
	RelPrevents:      {},
	RelInfluences:    {},
	RelPrecedes:      {},
	RelFollows:       {},
	RelCoOccursWith:  {},
	RelSimilarTo:     {},
	RelOppositeOf:    {},
	RelRelatedTo:     {},
	RelUses:          {},
	RelDependsOn:     {},
	RelSupports:      {},
	RelConflictsWith: {},
	RelMentionedWith: {},
	RelLearnedFrom:   {},
	RelAppliedTo:     {},
	RelImplies:       {},
	RelContradicts:   {},
	RelExemplifies:   {},
}

// IsKnownRelationship reports whether relType belongs to the suggested
// vocabulary. Custom types return false and are still accepted by Connect.
func IsKnownRelationship(relType string) bool {
	_, ok := knownRelationships[relType]
	return ok
}

// KnownRelationships returns the suggested vocabulary as a sorted-stable
// slice (insertion order of the constants above is not guaranteed; callers
// needing determinism should sort).
func KnownRelationships() []string {
	out := make([]string, 0, len(knownRelationships))
	for r := range knownRelationships {
		out = append(out, r)
	}
	return out
}
