package renderer

// DefaultTile is the workgroup footprint in pixels when the shader does not
// report one.
var DefaultTile = [2]uint32{10, 10}

// DispatchSize returns the workgroup grid covering width x height with
// tile-sized groups. Partial tiles at the right and bottom edges get a group.
func DispatchSize(width, height uint32, tile [2]uint32) (uint32, uint32) {
	return ceilDiv(width, tile[0]), ceilDiv(height, tile[1])
}

func ceilDiv(n, d uint32) uint32 {
	if d == 0 {
		d = 1
	}
	q := n / d
	if n%d != 0 {
		q++
	}
	return q
}
