package value

import (
	"github.com/mohae/deepcopy"
)

// DeepCopy returns a deep copy of v. Configuration layers are deep-copied on
// every merge so that merging never mutates the caller's input, per the
// reader's invariant.
func DeepCopy(v Value) Value {
	return deepcopy.Copy(v)
}

// Merge folds right onto left according to the merge rule: maps merge
// recursively, lists concatenate (right appended to left), and every other
// scalar type is right-wins. Neither argument is mutated; the result is a
// fresh tree.
func Merge(left, right Value) Value {
	leftCopy := DeepCopy(left)
	rightCopy := DeepCopy(right)
	return mergeValues(leftCopy, rightCopy)
}

func mergeValues(left, right Value) Value {
	if right == nil {
		return left
	}
	leftMap, leftIsMap := AsMap(left)
	rightMap, rightIsMap := AsMap(right)
	if leftIsMap && rightIsMap {
		return mergeMaps(leftMap, rightMap)
	}
	leftList, leftIsList := AsList(left)
	rightList, rightIsList := AsList(right)
	if leftIsList && rightIsList {
		out := make(List, 0, len(leftList)+len(rightList))
		out = append(out, leftList...)
		out = append(out, rightList...)
		return out
	}
	// Scalars, and any mismatched-kind pair: right wins.
	return right
}

// mergeMaps merges two maps key by key using the recursive merge rule.
func mergeMaps(left, right Map) Map {
	out := Map{}
	for k, v := range left {
		out[k] = v
	}
	for k, rv := range right {
		lv, exists := out[k]
		if !exists {
			out[k] = rv
			continue
		}
		_, lIsMap := AsMap(lv)
		_, rIsMap := AsMap(rv)
		_, lIsList := AsList(lv)
		_, rIsList := AsList(rv)
		if (lIsMap && rIsMap) || (lIsList && rIsList) {
			out[k] = mergeValues(lv, rv)
			continue
		}
		out[k] = rv
	}
	return out
}
