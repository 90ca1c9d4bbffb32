package mask

import "fmt"

// Catalog indexes fragment definitions by id.
type Catalog struct {
	order []FragmentID
	byID  map[FragmentID]*Attribute
}

// NewCatalog validates attrs and indexes them. Duplicate ids are an error.
func NewCatalog(attrs []Attribute) (*Catalog, error) {
	c := &Catalog{byID: make(map[FragmentID]*Attribute, len(attrs))}
	for i := range attrs {
		a := attrs[i]
		if err := a.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.byID[a.ID]; dup {
			return nil, fmt.Errorf("duplicate fragment id: %s", a.ID)
		}
		c.byID[a.ID] = &a
		c.order = append(c.order, a.ID)
	}
	return c, nil
}

// Lookup returns the definition for id.
func (c *Catalog) Lookup(id FragmentID) (*Attribute, bool) {
	a, ok := c.byID[id]
	return a, ok
}

// Fragment returns a fragment for id. Unknown ids yield a fragment with no
// definition, which aggregation skips.
func (c *Catalog) Fragment(id FragmentID) Fragment {
	return Fragment{Def: c.byID[id]}
}

// IDs returns every id in declaration order.
func (c *Catalog) IDs() []FragmentID {
	return append([]FragmentID(nil), c.order...)
}

// Len returns the number of definitions.
func (c *Catalog) Len() int {
	return len(c.order)
}
