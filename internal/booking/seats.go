package booking

// allocateSeats picks the n lowest seat numbers in 1..total that are not
// in occupied. It returns nil when fewer than n seats are free.
func allocateSeats(occupied []int, total, n int) []int {
	taken := make(map[int]struct{}, len(occupied))
	for _, seat := range occupied {
		taken[seat] = struct{}{}
	}

	seats := make([]int, 0, n)
	for seat := 1; seat <= total && len(seats) < n; seat++ {
		if _, ok := taken[seat]; !ok {
			seats = append(seats, seat)
		}
	}
	if len(seats) < n {
		return nil
	}
	return seats
}
