package schema

// ResolveDataPoint picks between two definitions for the same key.
//
// Higher confidence wins. On a tie, the definition backed by the existing
// corpus wins, then the one with more sources, then the incumbent. The
// winner's sources absorb the loser's. conflict reports whether the two
// described the data point differently.
func ResolveDataPoint(incumbent, challenger DataPointDefinition) (resolved DataPointDefinition, conflict bool) {
	conflict = !sameMapping(incumbent, challenger)

	winner, loser := incumbent, challenger
	if outranks(challenger, incumbent) {
		winner, loser = challenger, incumbent
	}

	resolved = winner.clone()
	resolved.Sources = unionStrings(resolved.Sources, loser.Sources)
	if !conflict && resolved.Transform == nil && loser.Transform != nil {
		resolved.Transform = loser.clone().Transform
	}
	return resolved, conflict
}

// outranks reports whether a strictly beats b.
func outranks(a, b DataPointDefinition) bool {
	if ra, rb := a.Confidence.Rank(), b.Confidence.Rank(); ra != rb {
		return ra > rb
	}
	if ea, eb := a.HasSource(SourceExisting), b.HasSource(SourceExisting); ea != eb {
		return ea
	}
	return len(a.Sources) > len(b.Sources)
}
