package accessory

import "fmt"

// Loopback is an in-process Binding with no external controller.
//
// It reproduces the allocation quirk the Manager is built around: the
// binding remembers the identifier of the most recently removed accessory
// and hands exactly that back on the next Create, falling back to a
// monotonic counter otherwise. Remove-then-create therefore reuses the
// identifier - unless something else (a placeholder) consumes it first.
//
// Useful for development without a controller and as the reference
// binding in tests.
type Loopback struct {
	next        uint64
	lastFreed   uint64
	accessories map[uint64]Spec
	values      map[uint64]Values
}

// NewLoopback creates an empty loopback binding.
func NewLoopback() *Loopback {
	return &Loopback{
		next:        1,
		accessories: make(map[uint64]Spec),
		values:      make(map[uint64]Values),
	}
}

// Create allocates an identifier and registers the accessory.
// The most recently freed identifier is reused if one is cached.
func (l *Loopback) Create(spec Spec) (uint64, error) {
	var id uint64
	if l.lastFreed != 0 {
		id = l.lastFreed
		l.lastFreed = 0
	} else {
		id = l.next
		l.next++
	}

	l.accessories[id] = spec
	return id, nil
}

// Remove unregisters the accessory and caches its identifier for reuse.
func (l *Loopback) Remove(id uint64) error {
	if _, ok := l.accessories[id]; !ok {
		return fmt.Errorf("%w: %d", ErrUnknownAccessory, id)
	}
	delete(l.accessories, id)
	delete(l.values, id)
	l.lastFreed = id
	return nil
}

// Update stores the values for later inspection.
func (l *Loopback) Update(id uint64, values Values) error {
	if _, ok := l.accessories[id]; !ok {
		return fmt.Errorf("%w: %d", ErrUnknownAccessory, id)
	}
	l.values[id] = values
	return nil
}

// Accessory returns the registered spec for an identifier.
func (l *Loopback) Accessory(id uint64) (Spec, bool) {
	spec, ok := l.accessories[id]
	return spec, ok
}

// AccessoryValues returns the last pushed values for an identifier.
func (l *Loopback) AccessoryValues(id uint64) (Values, bool) {
	v, ok := l.values[id]
	return v, ok
}

// Count returns how many accessories are currently registered.
func (l *Loopback) Count() int {
	return len(l.accessories)
}
