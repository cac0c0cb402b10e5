package domain

import "iter"

// TypeStats is the occupancy breakdown for one room type.
type TypeStats struct {
	Rooms    int
	Capacity int
	Occupied int
}

// OccupancyStats is a point-in-time summary over all rooms.
type OccupancyStats struct {
	TotalRooms    int
	TotalCapacity int
	TotalOccupied int
	// OccupancyRate is occupied/capacity in the range [0,1]; zero when there
	// is no capacity.
	OccupancyRate float64
	ByType        map[RoomType]TypeStats
}

// ComputeOccupancyStats summarizes the given rooms.
func ComputeOccupancyStats(rooms []Room) OccupancyStats {
	stats := OccupancyStats{ByType: make(map[RoomType]TypeStats)}
	for _, room := range rooms {
		stats.TotalRooms++
		stats.TotalCapacity += room.Capacity
		stats.TotalOccupied += room.CurrentOccupancy

		ts := stats.ByType[room.Type]
		ts.Rooms++
		ts.Capacity += room.Capacity
		ts.Occupied += room.CurrentOccupancy
		stats.ByType[room.Type] = ts
	}
	if stats.TotalCapacity > 0 {
		stats.OccupancyRate = float64(stats.TotalOccupied) / float64(stats.TotalCapacity)
	}
	return stats
}

// AvailableRooms yields the rooms that can still accept an assignment:
// available rooms with free capacity, and partially occupied rooms whose
// type allows sharing. The sequence is lazy and restartable; ranging over it
// again re-walks the snapshot.
func AvailableRooms(rooms []Room) iter.Seq[Room] {
	return func(yield func(Room) bool) {
		for _, room := range rooms {
			if !CanAccept(room) {
				continue
			}
			if !yield(room) {
				return
			}
		}
	}
}
