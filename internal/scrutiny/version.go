package scrutiny

// ShouldReplace reports whether candidate is a legitimate newer version of
// original: an Update from the same author, strictly later, whose root
// reference points at original.
func ShouldReplace(original, candidate RawPost) bool {
	if candidate.Author != original.Author {
		return false
	}
	if candidate.CreatedAt <= original.CreatedAt {
		return false
	}
	tags := ParseTags(candidate.Tags)
	if !topicsOf(tags).matches(TagUpdate) {
		return false
	}
	for _, ref := range references(tags, MarkerRoot) {
		if ref.ID == original.ID {
			return true
		}
	}
	return false
}

// DisplayPost picks the post to show for original. A nil candidate, or
// forceOriginal, always yields original.
func DisplayPost(original RawPost, candidate *RawPost, forceOriginal bool) RawPost {
	if candidate == nil || forceOriginal {
		return original
	}
	if ShouldReplace(original, *candidate) {
		return *candidate
	}
	return original
}

// LatestUpdate returns the newest update that replaces original. Equal
// timestamps are broken by the greater id so the choice is stable.
func LatestUpdate(original RawPost, updates []ClassifiedPost) (RawPost, bool) {
	var (
		latest RawPost
		found  bool
	)
	for _, u := range updates {
		if !ShouldReplace(original, u.RawPost) {
			continue
		}
		if !found ||
			u.CreatedAt > latest.CreatedAt ||
			(u.CreatedAt == latest.CreatedAt && u.ID > latest.ID) {
			latest = u.RawPost
			found = true
		}
	}
	return latest, found
}

// Display resolves the post to show for id within the snapshot, following
// the latest valid update unless forceOriginal is set.
func (s *Snapshot) Display(id string, forceOriginal bool) (RawPost, bool) {
	original, ok := s.Collections.Lookup(id)
	if !ok {
		return RawPost{}, false
	}
	latest, found := LatestUpdate(original.RawPost, s.Collections.UpdatesByRoot[id])
	if !found {
		return original.RawPost, true
	}
	return DisplayPost(original.RawPost, &latest, forceOriginal), true
}
