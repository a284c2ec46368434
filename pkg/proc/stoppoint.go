package proc

// Stoppoint is implemented by breakpoint sites and watchpoints.
type Stoppoint interface {
	ID() int32
	Address() VirtAddr
	Enabled() bool
	Enable() error
	Disable() error
}

// StoppointCollection indexes stoppoints of one kind by id and address.
// Lookups are linear scans; collections hold tens of entries at most.
// Duplicate-address prevention is the owning process's responsibility.
type StoppointCollection[T Stoppoint] struct {
	points []T
}

// Push appends point and returns it.
func (c *StoppointCollection[T]) Push(point T) T {
	c.points = append(c.points, point)
	return point
}

// ContainsID reports whether a stoppoint with the given id exists.
func (c *StoppointCollection[T]) ContainsID(id int32) bool {
	return c.findByID(id) >= 0
}

// ContainsAddress reports whether a stoppoint exists at addr.
func (c *StoppointCollection[T]) ContainsAddress(addr VirtAddr) bool {
	return c.findByAddress(addr) >= 0
}

// EnabledStoppointAtAddress reports whether an enabled stoppoint exists at
// addr.
func (c *StoppointCollection[T]) EnabledStoppointAtAddress(addr VirtAddr) bool {
	i := c.findByAddress(addr)
	return i >= 0 && c.points[i].Enabled()
}

// GetByID returns the stoppoint with the given id.
func (c *StoppointCollection[T]) GetByID(id int32) (T, error) {
	if i := c.findByID(id); i >= 0 {
		return c.points[i], nil
	}
	var zero T
	return zero, errorf("invalid stoppoint id")
}

// GetByAddress returns the stoppoint at addr.
func (c *StoppointCollection[T]) GetByAddress(addr VirtAddr) (T, error) {
	if i := c.findByAddress(addr); i >= 0 {
		return c.points[i], nil
	}
	var zero T
	return zero, errorf("stoppoint doesn't exist at given address")
}

// RemoveByID disables and removes the stoppoint with the given id.
func (c *StoppointCollection[T]) RemoveByID(id int32) error {
	i := c.findByID(id)
	if i < 0 {
		return errorf("invalid stoppoint id")
	}
	return c.removeAt(i)
}

// RemoveByAddress disables and removes the stoppoint at addr.
func (c *StoppointCollection[T]) RemoveByAddress(addr VirtAddr) error {
	i := c.findByAddress(addr)
	if i < 0 {
		return errorf("stoppoint doesn't exist at given address")
	}
	return c.removeAt(i)
}

// ForEach calls f for every stoppoint in insertion order.
func (c *StoppointCollection[T]) ForEach(f func(T)) {
	for _, p := range c.points {
		f(p)
	}
}

// Empty reports whether the collection holds no stoppoints.
func (c *StoppointCollection[T]) Empty() bool { return len(c.points) == 0 }

// Size returns the number of stoppoints held.
func (c *StoppointCollection[T]) Size() int { return len(c.points) }

func (c *StoppointCollection[T]) removeAt(i int) error {
	if err := c.points[i].Disable(); err != nil {
		return err
	}
	c.points = append(c.points[:i], c.points[i+1:]...)
	return nil
}

func (c *StoppointCollection[T]) findByID(id int32) int {
	for i, p := range c.points {
		if p.ID() == id {
			return i
		}
	}
	return -1
}

func (c *StoppointCollection[T]) findByAddress(addr VirtAddr) int {
	for i, p := range c.points {
		if p.Address() == addr {
			return i
		}
	}
	return -1
}
