package bitmap

import kbitmap "github.com/kelindar/bitmap"

// Bitmap tracks which slots of a gapped array hold a key.
type Bitmap interface {
	Count() int
	Contains(value uint32) bool
	Set(value uint32)
	Remove(value uint32)
}

var _ Bitmap = (*Occupancy)(nil)

// Occupancy is a fixed capacity Bitmap backed by kelindar/bitmap.
type Occupancy struct {
	bits     kbitmap.Bitmap
	capacity int
}

func (o *Occupancy) Count() int {
	return o.bits.Count()
}

func (o *Occupancy) Contains(value uint32) bool {
	return o.bits.Contains(value)
}

func (o *Occupancy) Set(value uint32) {
	o.bits.Set(value)
}

func (o *Occupancy) Remove(value uint32) {
	o.bits.Remove(value)
}

func (o *Occupancy) Capacity() int {
	return o.capacity
}

func NewOccupancy(capacity int) *Occupancy {
	o := &Occupancy{capacity: capacity}
	if capacity > 0 {
		o.bits.Grow(uint32(capacity - 1))
	}
	return o
}
