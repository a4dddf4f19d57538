package vectorstore

import "strings"

// Filter restricts a query to records whose document text contains a
// keyword. Exactly one of Contains or Or is set.
type Filter struct {
	Contains string
	Or       []Filter
}

// Contains matches documents containing kw.
func Contains(kw string) *Filter {
	return &Filter{Contains: kw}
}

// AnyOf matches documents containing any of the keywords.
func AnyOf(keywords ...string) *Filter {
	or := make([]Filter, len(keywords))
	for i, kw := range keywords {
		or[i] = Filter{Contains: kw}
	}
	return &Filter{Or: or}
}

// Matches evaluates the filter against a document. A nil filter matches everything.
func (f *Filter) Matches(document string) bool {
	if f == nil {
		return true
	}
	if len(f.Or) > 0 {
		for i := range f.Or {
			if f.Or[i].Matches(document) {
				return true
			}
		}
		return false
	}
	return strings.Contains(document, f.Contains)
}

// Map renders the filter in the {"$contains": ...} / {"$or": [...]} form.
func (f *Filter) Map() map[string]any {
	if f == nil {
		return nil
	}
	if len(f.Or) > 0 {
		or := make([]any, len(f.Or))
		for i := range f.Or {
			or[i] = f.Or[i].Map()
		}
		return map[string]any{"$or": or}
	}
	return map[string]any{"$contains": f.Contains}
}

// Keywords lists every keyword referenced by the filter.
func (f *Filter) Keywords() []string {
	if f == nil {
		return nil
	}
	if len(f.Or) == 0 {
		return []string{f.Contains}
	}
	var out []string
	for i := range f.Or {
		out = append(out, f.Or[i].Keywords()...)
	}
	return out
}
