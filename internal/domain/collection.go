package domain

// Categories returns the distinct categories of quotes in first-seen order,
// with CategoryAll in front.
func Categories(quotes []Quote) []string {
	seen := make(map[string]struct{}, len(quotes))
	out := make([]string, 0, len(quotes)+1)
	out = append(out, CategoryAll)

	for _, q := range quotes {
		if _, ok := seen[q.Category]; ok {
			continue
		}

		seen[q.Category] = struct{}{}
		out = append(out, q.Category)
	}

	return out
}

// ContainsCategory reports whether any quote is filed under category.
func ContainsCategory(quotes []Quote, category string) bool {
	for _, q := range quotes {
		if q.Category == category {
			return true
		}
	}

	return false
}

// FilterByCategory returns the quotes whose category matches exactly.
// An empty category or CategoryAll returns a copy of the whole collection.
func FilterByCategory(quotes []Quote, category string) []Quote {
	if category == "" || category == CategoryAll {
		return append([]Quote(nil), quotes...)
	}

	out := make([]Quote, 0, len(quotes))

	for _, q := range quotes {
		if q.Category == category {
			out = append(out, q)
		}
	}

	return out
}

// Reconcile merges a remote snapshot into the local collection. Remote always wins:
// the result holds every remote quote in remote order, followed by the local quotes
// whose Text does not appear remotely. A local quote sharing its Text with a remote
// one is dropped even when the categories differ.
//
// Applying Reconcile twice with the same remote yields the same collection.
func Reconcile(local, remote []Quote) []Quote {
	remoteTexts := make(map[string]struct{}, len(remote))
	for _, q := range remote {
		remoteTexts[q.Text] = struct{}{}
	}

	merged := make([]Quote, 0, len(remote)+len(local))
	merged = append(merged, remote...)

	for _, q := range local {
		if _, taken := remoteTexts[q.Text]; taken {
			continue
		}

		merged = append(merged, q)
	}

	return merged
}
