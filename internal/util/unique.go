package util

// GetUniqueList keeps the first item seen for every key and drops later
// duplicates. Order of the survivors is preserved.
func GetUniqueList[T any, K comparable](list []T, key func(T) K) []T {
	if list == nil {
		return nil
	}
	seen := make(map[K]struct{}, len(list))
	out := make([]T, 0, len(list))
	for _, item := range list {
		k := key(item)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, item)
	}
	return out
}
