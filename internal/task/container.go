package task

import (
	"sort"
	"sync"

	"exposeq/internal/param"
)

// Container is a thread-safe, ordered task registry.
//
// Tasks are keyed by name with an explicit order slice next to the index,
// so All and Sort have well-defined ordering. A separate staging store
// holds parameter documents keyed by name; staged names need not
// correspond to registered tasks.
//
// Every batch operation holds the write lock for the whole batch, so a
// concurrent reader observes either the pre-batch or the post-batch state,
// never a partial one.
type Container struct {
	mu    sync.RWMutex
	order []string
	tasks map[string]*Task

	paramOrder []string
	params     map[string]param.Document
}

// NewContainer creates an empty container.
func NewContainer() *Container {
	return &Container{
		tasks:  make(map[string]*Task),
		params: make(map[string]param.Document),
	}
}

// Add registers a task. Adding a name twice is last-write-wins: the new
// task replaces the old one in place, keeping its position and leaving the
// count unchanged.
func (c *Container) Add(t *Task) {
	if t == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.addLocked(t)
}

func (c *Container) addLocked(t *Task) {
	if _, ok := c.tasks[t.Name()]; !ok {
		c.order = append(c.order, t.Name())
	}
	c.tasks[t.Name()] = t
}

// Get returns the task registered under name.
func (c *Container) Get(name string) (*Task, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tasks[name]
	return t, ok
}

// Remove unregisters a task and reports whether it was present.
func (c *Container) Remove(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.removeLocked(name)
}

func (c *Container) removeLocked(name string) bool {
	if _, ok := c.tasks[name]; !ok {
		return false
	}
	delete(c.tasks, name)
	for i, n := range c.order {
		if n == name {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return true
}

// All returns a point-in-time snapshot of the tasks in container order.
func (c *Container) All() []*Task {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Task, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.tasks[name])
	}
	return out
}

// Count returns the number of registered tasks.
func (c *Container) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tasks)
}

// Clear removes all registered tasks. The staging store is untouched.
func (c *Container) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order = nil
	c.tasks = make(map[string]*Task)
}

// Find returns, in container order, the tasks currently at the given status.
func (c *Container) Find(status Status) []*Task {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []*Task
	for _, name := range c.order {
		if t := c.tasks[name]; t.Status() == status {
			out = append(out, t)
		}
	}
	return out
}

// Sort rebuilds the container order using less. The new order is observed
// by subsequent All and Find calls.
func (c *Container) Sort(less func(a, b *Task) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sort.SliceStable(c.order, func(i, j int) bool {
		return less(c.tasks[c.order[i]], c.tasks[c.order[j]])
	})
}

// BatchAdd registers all tasks under a single lock acquisition.
func (c *Container) BatchAdd(tasks []*Task) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range tasks {
		if t != nil {
			c.addLocked(t)
		}
	}
}

// BatchRemove unregisters all names under a single lock acquisition.
func (c *Container) BatchRemove(names []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, name := range names {
		c.removeLocked(name)
	}
}

// BatchModify applies fn to every registered task, in container order,
// under a single lock acquisition. fn must not call back into the container.
func (c *Container) BatchModify(fn func(*Task)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, name := range c.order {
		fn(c.tasks[name])
	}
}
