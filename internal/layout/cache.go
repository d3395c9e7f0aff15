package layout

import "tern/internal/types"

type entry struct {
	Layout TypeLayout
	Err    *Error
}

type cache struct {
	byType map[types.TypeID]*entry
}

func newCache() *cache {
	return &cache{byType: make(map[types.TypeID]*entry, 256)}
}

func (c *cache) get(id types.TypeID) (*entry, bool) {
	e, ok := c.byType[id]
	return e, ok && e != nil
}

func (c *cache) put(id types.TypeID, e *entry) {
	if e == nil {
		delete(c.byType, id)
		return
	}
	c.byType[id] = e
}
