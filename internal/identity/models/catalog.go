package models

import (
	"fmt"
	"slices"
)

// Category is the top-level membership class of an identity.
type Category string

const (
	CategoryStudent  Category = "Student"
	CategoryFaculty  Category = "Faculty"
	CategoryStaff    Category = "Staff"
	CategoryExternal Category = "External"
)

// Categories lists every category in display order.
func Categories() []Category {
	return []Category{CategoryStudent, CategoryFaculty, CategoryStaff, CategoryExternal}
}

// IsValid reports whether c is one of the four categories.
func (c Category) IsValid() bool {
	return slices.Contains(Categories(), c)
}

// SubCategory fixes an identity's id range and extension group.
type SubCategory string

const (
	SubUndergraduate         SubCategory = "Undergraduate"
	SubContinuingEducation   SubCategory = "Continuing Education"
	SubPhDCandidates         SubCategory = "PhD Candidates"
	SubInternationalExchange SubCategory = "International/Exchange"
	SubTenured               SubCategory = "Tenured"
	SubAdjunct               SubCategory = "Adjunct/Part-time"
	SubVisitingResearchers   SubCategory = "Visiting Researchers"
	SubAdministrative        SubCategory = "Administrative"
	SubTechnical             SubCategory = "Technical"
	SubTemporary             SubCategory = "Temporary"
	SubContractors           SubCategory = "Contractors/Vendors"
	SubAlumni                SubCategory = "Alumni"
)

// IDRange is the nominal numeric block of a sub-category.
type IDRange struct {
	Prefix string
	Start  int64
	End    int64
}

// SubCategoryInfo describes one catalog entry.
type SubCategoryInfo struct {
	Name     SubCategory
	Category Category
	Range    IDRange
	// Editable is the edit surface beyond the common fields. Left nil,
	// NewCatalog fills in the category's editable group.
	Editable FieldSet
}

// Catalog is the immutable sub-category table. Build it with DefaultCatalog
// or NewCatalog and share it freely.
type Catalog struct {
	order   []SubCategory
	entries map[SubCategory]SubCategoryInfo
}

// NewCatalog builds a catalog, rejecting duplicate names or prefixes and
// inverted ranges.
func NewCatalog(infos ...SubCategoryInfo) (*Catalog, error) {
	c := &Catalog{entries: make(map[SubCategory]SubCategoryInfo, len(infos))}
	prefixes := make(map[string]SubCategory, len(infos))
	for _, info := range infos {
		if !info.Category.IsValid() {
			return nil, fmt.Errorf("sub-category %q: unknown category %q", info.Name, info.Category)
		}
		if _, dup := c.entries[info.Name]; dup {
			return nil, fmt.Errorf("sub-category %q declared twice", info.Name)
		}
		if other, dup := prefixes[info.Range.Prefix]; dup {
			return nil, fmt.Errorf("prefix %q shared by %q and %q", info.Range.Prefix, other, info.Name)
		}
		if info.Range.End < info.Range.Start {
			return nil, fmt.Errorf("sub-category %q: range end %d before start %d", info.Name, info.Range.End, info.Range.Start)
		}
		if info.Editable == nil {
			info.Editable = editableGroup(info.Category)
		}
		for _, f := range info.Editable {
			if !IsProfileField(f) {
				return nil, fmt.Errorf("sub-category %q: field %q cannot be edited", info.Name, f)
			}
		}
		prefixes[info.Range.Prefix] = info.Name
		c.entries[info.Name] = info
		c.order = append(c.order, info.Name)
	}
	return c, nil
}

// DefaultCatalog returns the twelve recognized sub-categories.
func DefaultCatalog() *Catalog {
	const start = 202400001
	entry := func(name SubCategory, cat Category, prefix string, end int64) SubCategoryInfo {
		return SubCategoryInfo{Name: name, Category: cat, Range: IDRange{Prefix: prefix, Start: start, End: end}}
	}
	c, err := NewCatalog(
		entry(SubUndergraduate, CategoryStudent, "STU", 202415000),
		entry(SubContinuingEducation, CategoryStudent, "CED", 202405000),
		entry(SubPhDCandidates, CategoryStudent, "PHD", 202401000),
		entry(SubInternationalExchange, CategoryStudent, "INT", 202402000),
		entry(SubTenured, CategoryFaculty, "FAC", 202401200),
		entry(SubAdjunct, CategoryFaculty, "ADJ", 202400500),
		entry(SubVisitingResearchers, CategoryFaculty, "VIS", 202400300),
		entry(SubAdministrative, CategoryStaff, "STF", 202400800),
		entry(SubTechnical, CategoryStaff, "TEC", 202400400),
		entry(SubTemporary, CategoryStaff, "TMP", 202400500),
		entry(SubContractors, CategoryExternal, "CON", 202400900),
		entry(SubAlumni, CategoryExternal, "ALM", 202420000),
	)
	if err != nil {
		panic(err)
	}
	return c
}

// Lookup returns the entry for sub.
func (c *Catalog) Lookup(sub SubCategory) (SubCategoryInfo, bool) {
	info, ok := c.entries[sub]
	return info, ok
}

// SubCategories returns the catalog's sub-categories in declaration order.
func (c *Catalog) SubCategories() []SubCategory {
	return slices.Clone(c.order)
}

// SubCategoriesOf returns the sub-categories belonging to cat.
func (c *Catalog) SubCategoriesOf(cat Category) []SubCategory {
	var out []SubCategory
	for _, name := range c.order {
		if c.entries[name].Category == cat {
			out = append(out, name)
		}
	}
	return out
}

// EditableFields is the edit surface of an identity in sub: names, status and
// the sub-category's editable group. A sub-category outside the catalog gets
// the common fields only.
func (c *Catalog) EditableFields(sub SubCategory) FieldSet {
	fs := CommonEditableFields()
	if info, ok := c.entries[sub]; ok {
		fs = append(fs, info.Editable...)
	}
	return fs
}
