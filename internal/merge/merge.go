// Package merge deep-merges key-value documents such as table descriptions.
//
// Merge rules:
//   - the "params" key is always overwritten wholesale
//   - nested objects recurse
//   - lists of objects merge element-wise, matching elements by "db_column";
//     addition elements without a match are dropped
//   - anything else (scalars, lists holding non-objects) overwrites
package merge

// ParamsKey is always overwritten wholesale, whatever its type.
const ParamsKey = "params"

// IdentityKey matches list elements between destination and addition.
const IdentityKey = "db_column"

// Merge merges addition into destination in place and returns destination.
// A nil destination is allocated.
func Merge(destination, addition map[string]any) map[string]any {
	if destination == nil {
		destination = make(map[string]any, len(addition))
	}

	for key, value := range addition {
		if key == ParamsKey {
			destination[key] = value
			continue
		}

		switch add := value.(type) {
		case map[string]any:
			dst, ok := destination[key].(map[string]any)
			if !ok {
				dst = make(map[string]any, len(add))
			}
			destination[key] = Merge(dst, add)

		case []any:
			if !allObjects(add) {
				destination[key] = value
				continue
			}
			dst, _ := destination[key].([]any)
			destination[key] = mergeList(dst, add)

		default:
			destination[key] = value
		}
	}

	return destination
}

// mergeList merges each addition element into the destination element
// sharing its identity. Unmatched additions are not appended.
func mergeList(destination, addition []any) []any {
	if destination == nil {
		destination = []any{}
	}

	for _, item := range addition {
		add := item.(map[string]any)
		id, ok := add[IdentityKey].(string)
		if !ok {
			continue
		}
		for _, existing := range destination {
			dst, ok := existing.(map[string]any)
			if !ok {
				continue
			}
			if other, _ := dst[IdentityKey].(string); other == id {
				Merge(dst, add)
				break
			}
		}
	}

	return destination
}

func allObjects(items []any) bool {
	for _, item := range items {
		if _, ok := item.(map[string]any); !ok {
			return false
		}
	}
	return true
}
