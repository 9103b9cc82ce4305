package runtime

import (
	"github.com/mitchellh/mapstructure"
	"k8s.io/klog/v2"
	"sort"
	"strings"
)

type lessTagFunc func(t1, t2 *Tag) bool

type tagSorter struct {
	ts        []*Tag
	lessFuncs []lessTagFunc
}

func ByTag(less ...lessTagFunc) *tagSorter {
	return &tagSorter{
		lessFuncs: less,
	}
}

func (ms *tagSorter) Sort(ts []*Tag) {
	ms.ts = ts
	sort.Sort(ms)
}

func (ms *tagSorter) Len() int {
	return len(ms.ts)
}

func (ms *tagSorter) Swap(i, j int) {
	ms.ts[i], ms.ts[j] = ms.ts[j], ms.ts[i]
}

func (ms *tagSorter) Less(i, j int) bool {
	return ms.less(ms.ts[i], ms.ts[j])
}

func (ms *tagSorter) less(p, q *Tag) bool {
	// Try all but the last comparison.
	var k int
	for k = 0; k < len(ms.lessFuncs)-1; k++ {
		less := ms.lessFuncs[k]
		switch {
		case less(p, q):
			return true
		case less(q, p):
			return false
		}
	}
	return ms.lessFuncs[k](p, q)
}

type NameFilterFunc struct {
	Eq         string
	In         []string
	Contains   string
	StartsWith string
	EndsWith   string
}

// TagFilter selects tags on the list endpoint. Name is either a plain string or a NameFilterFunc object.
type TagFilter struct {
	Name     interface{} `json:"name,omitempty"`
	Id       string      `json:"id,omitempty"`
	DeviceId string      `json:"deviceId,omitempty"`
	TagType  string      `json:"tagType,omitempty"`
	Quality  string      `json:"quality,omitempty"`
	Archived bool        `json:"archived,omitempty"`
}

type predicateType func(t *Tag) bool

func ParseTagFilter(filter *TagFilter) []predicateType {
	predicates := make([]predicateType, 0)

	if len(filter.Id) > 0 {
		predicates = append(predicates, func(t *Tag) bool { return filter.Id == t.ID })
	}
	if len(filter.DeviceId) > 0 {
		predicates = append(predicates, func(t *Tag) bool { return filter.DeviceId == t.DeviceID })
	}
	if len(filter.TagType) > 0 {
		predicates = append(predicates, func(t *Tag) bool { return filter.TagType == t.TagType.String() })
	}
	if len(filter.Quality) > 0 {
		predicates = append(predicates, func(t *Tag) bool { return filter.Quality == t.Quality.String() })
	}
	if !filter.Archived {
		predicates = append(predicates, func(t *Tag) bool { return !t.IsArchived() })
	}

	if filter.Name != nil {
		if name, ok := filter.Name.(string); ok {
			predicates = append(predicates, func(t *Tag) bool { return name == t.Name })
		} else {
			var ff NameFilterFunc
			if err := mapstructure.Decode(filter.Name, &ff); err != nil {
				klog.V(3).InfoS("Failed to parse filter.name", "err", err)
			}
			if len(ff.Eq) > 0 {
				predicates = append(predicates, func(t *Tag) bool { return ff.Eq == t.Name })
			}
			if len(ff.In) > 0 {
				predicates = append(predicates, func(t *Tag) bool {
					for _, name := range ff.In {
						if name == t.Name {
							return true
						}
					}
					return false
				})
			}
			if len(ff.Contains) > 0 {
				predicates = append(predicates, func(t *Tag) bool { return strings.Contains(t.Name, ff.Contains) })
			}
			if len(ff.StartsWith) > 0 {
				predicates = append(predicates, func(t *Tag) bool {
					return strings.HasPrefix(t.Name, strings.TrimSpace(ff.StartsWith))
				})
			}
			if len(ff.EndsWith) > 0 {
				predicates = append(predicates, func(t *Tag) bool {
					return strings.HasSuffix(t.Name, strings.TrimSpace(ff.EndsWith))
				})
			}
		}
	}

	return predicates
}

// Match reports whether t satisfies every predicate.
func Match(t *Tag, predicates []predicateType) bool {
	for _, p := range predicates {
		if !p(t) {
			return false
		}
	}
	return true
}
