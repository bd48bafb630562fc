package vector

import "strings"

// NamespaceFor derives the deterministic per-document namespace. Deleting a
// document deletes exactly this namespace and nothing else.
func NamespaceFor(ownerID, docID string) string {
	return sanitizeID(ownerID) + "-" + sanitizeID(docID)
}

func sanitizeID(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var sb strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			sb.WriteRune(r)
		default:
			sb.WriteRune('-')
		}
	}
	return sb.String()
}
