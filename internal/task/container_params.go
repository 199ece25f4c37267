package task

import "exposeq/internal/param"

// The parameter staging store holds documents keyed by name, independent of
// the task registry: a staged name does not have to match a registered task.

// SetParams stages a parameter document for name, adding it at the end or
// updating it in place.
func (c *Container) SetParams(name string, doc param.Document) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.params[name]; !ok {
		c.paramOrder = append(c.paramOrder, name)
	}
	c.params[name] = doc
}

// InsertParams stages a parameter document at a specific position in the
// staging order. A name that is already staged is rejected with
// ErrDuplicateParams; a position outside [0, len] is rejected with
// ErrIndexOutOfRange.
func (c *Container) InsertParams(name string, doc param.Document, pos int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.params[name]; ok {
		return ErrDuplicateParams
	}
	if pos < 0 || pos > len(c.paramOrder) {
		return ErrIndexOutOfRange
	}
	c.paramOrder = append(c.paramOrder, "")
	copy(c.paramOrder[pos+1:], c.paramOrder[pos:])
	c.paramOrder[pos] = name
	c.params[name] = doc
	return nil
}

// ParamsFor returns the staged document for name.
func (c *Container) ParamsFor(name string) (param.Document, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	doc, ok := c.params[name]
	return doc, ok
}

// AllParams returns the staged documents in staging order, keyed by name.
func (c *Container) AllParams() []StagedParams {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]StagedParams, 0, len(c.paramOrder))
	for _, name := range c.paramOrder {
		out = append(out, StagedParams{Name: name, Params: c.params[name]})
	}
	return out
}

// StagedParams is one entry of the staging store.
type StagedParams struct {
	Name   string
	Params param.Document
}
