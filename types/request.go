package types

// Items holds either a single RawItem or an ordered list of them.
// Both shapes normalize to the same sequence; the distinction only exists
// so request builders can mirror what callers sent.
type Items struct {
	items  []RawItem
	single bool
}

// One wraps a single item.
func One(item RawItem) Items {
	return Items{items: []RawItem{item}, single: true}
}

// Many wraps an ordered list of items. An empty list is valid.
func Many(items ...RawItem) Items {
	cp := make([]RawItem, len(items))
	copy(cp, items)
	return Items{items: cp}
}

// Slice returns the canonical sequence. The returned slice is a copy.
func (i Items) Slice() []RawItem {
	out := make([]RawItem, len(i.items))
	copy(out, i.items)
	return out
}

// Len returns the number of items.
func (i Items) Len() int {
	return len(i.items)
}

// IsSingle reports whether the items were given as a bare item.
func (i Items) IsSingle() bool {
	return i.single
}

// MMData maps a modality to its items. A missing modality is equivalent to
// an empty list.
type MMData map[Modality]Items

// Counts returns the number of items per modality, including zero counts
// for every canonical modality.
func (d MMData) Counts() map[Modality]int {
	counts := make(map[Modality]int, len(CanonicalModalities))
	for _, m := range CanonicalModalities {
		counts[m] = d[m].Len()
	}
	return counts
}

// Normalize resolves every modality to its canonical sequence. Unknown
// modalities are reported through the second return value.
func (d MMData) Normalize() (map[Modality][]RawItem, []Modality) {
	out := make(map[Modality][]RawItem, len(CanonicalModalities))
	for _, m := range CanonicalModalities {
		out[m] = d[m].Slice()
	}
	var unknown []Modality
	for m := range d {
		if !m.Valid() {
			unknown = append(unknown, m)
		}
	}
	return out, unknown
}

// BatchRequest is one preprocessing request: a prompt plus its media.
// It is consumed once.
type BatchRequest struct {
	ID     string
	Prompt string
	MMData MMData
}
