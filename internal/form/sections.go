package form

import "sort"

// Sections is a sorted, duplicate-free set of section indices.
type Sections []int

// NewSections builds a set from arbitrary indices.
func NewSections(indices ...int) Sections {
	seen := make(map[int]struct{}, len(indices))
	out := make(Sections, 0, len(indices))
	for _, idx := range indices {
		if _, ok := seen[idx]; ok {
			continue
		}
		seen[idx] = struct{}{}
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}

// AllSections is {0, ..., n-1}.
func AllSections(n int) Sections {
	out := make(Sections, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, i)
	}
	return out
}

func (s Sections) Union(other Sections) Sections {
	merged := make([]int, 0, len(s)+len(other))
	merged = append(merged, s...)
	merged = append(merged, other...)
	return NewSections(merged...)
}

func (s Sections) With(idx int) Sections {
	return s.Union(Sections{idx})
}

func (s Sections) Has(idx int) bool {
	i := sort.SearchInts(s, idx)
	return i < len(s) && s[i] == idx
}

func (s Sections) Max() (int, bool) {
	if len(s) == 0 {
		return 0, false
	}
	return s[len(s)-1], true
}

// Ints returns a never-nil copy.
func (s Sections) Ints() []int {
	out := make([]int, len(s))
	copy(out, s)
	return out
}

// Progress is the persisted progress marker of a submission.
type Progress struct {
	LastSection       int      `json:"lastSection"`
	CompletedSections Sections `json:"completedSections"`
}

// ResumeSection is where a respondent continues: one past the highest
// completed section, clamped to the last section. Without completed
// sections the stored last section is used.
func (p Progress) ResumeSection(sectionCount int) int {
	last := sectionCount - 1
	next := p.LastSection
	if maxDone, ok := p.CompletedSections.Max(); ok {
		next = maxDone + 1
	}
	if next > last {
		next = last
	}
	if next < 0 {
		next = 0
	}
	return next
}
