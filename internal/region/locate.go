package region

// Locate returns the category of the tiling interval covering pos, or
// Unmapped when no interval covers it.
//
// The tiling must be sorted by Start. Locate is a plain binary search over
// the tiling indices, not an interval-stabbing query: where intervals
// overlap, the first interval probed that contains pos wins.
func Locate(pos int64, t Tiling) Category {
	i, f := 0, len(t)-1
	for i <= f {
		m := (i + f) / 2
		switch {
		case t[m].Contains(pos):
			return t[m].Category
		case pos > t[m].End:
			i = m + 1
		default:
			f = m - 1
		}
	}
	return Unmapped
}
