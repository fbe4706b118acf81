package facility

// Dedupe returns the candidates unique by ProviderID, keeping the first
// occurrence and the input order. Candidates without an ID are dropped
// since they cannot be told apart.
func Dedupe(candidates []Candidate) []Candidate {
	seen := make(map[string]struct{}, len(candidates))
	out := make([]Candidate, 0, len(candidates))

	for _, c := range candidates {
		if c.ProviderID == "" {
			continue
		}
		if _, ok := seen[c.ProviderID]; ok {
			continue
		}
		seen[c.ProviderID] = struct{}{}
		out = append(out, c)
	}
	return out
}
