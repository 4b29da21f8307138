package services

// EstimateTokens returns an approximate token count using the ~4 chars/token
// heuristic. The approximation is deliberate: the budget math stays
// deterministic and reproducible across deployments, which an LLM-specific
// tokenizer would break.
func EstimateTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	return (len(text) + 3) / 4
}
