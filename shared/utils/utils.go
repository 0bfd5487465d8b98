package utils

import "sort"

func CopyAddMap[K comparable, V any](src map[K]V, newKey K, newValue V) map[K]V {
	newMap := make(map[K]V, len(src)+1)
	for k, v := range src {
		newMap[k] = v
	}
	newMap[newKey] = newValue
	return newMap
}

func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
