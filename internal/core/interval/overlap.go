package interval

// HasOverlap は candidate と同じ所有者の既存区間のうち、重なるものが 1 つでもあるかを返します。
func HasOverlap(candidate Interval, existing []Interval) bool {
	_, found := FirstOverlap(candidate, existing)
	return found
}

// FirstOverlap は candidate と重なる最初の既存区間のインデックスを返します。
// 所有者が異なる区間は比較対象外です。
func FirstOverlap(candidate Interval, existing []Interval) (int, bool) {
	for idx, other := range existing {
		if other.OwnerID != candidate.OwnerID {
			continue
		}
		if candidate.Overlaps(other) {
			return idx, true
		}
	}
	return -1, false
}
