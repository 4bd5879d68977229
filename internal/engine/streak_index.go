package engine

import (
	"maps"
	"slices"

	"github.com/src-lua/apogee/internal/calendar"
	"github.com/src-lua/apogee/internal/storage"
)

// streakIndex is an immutable snapshot of the instance history. Updates build
// a new snapshot that shares untouched days with the old one.
type streakIndex struct {
	days  []calendar.Day
	cells map[calendar.Day]map[string]storage.Instance
}

func buildStreakIndex(all []storage.Instance) *streakIndex {
	idx := &streakIndex{cells: make(map[calendar.Day]map[string]storage.Instance)}
	for _, in := range all {
		row, ok := idx.cells[in.Day]
		if !ok {
			row = make(map[string]storage.Instance)
			idx.cells[in.Day] = row
			idx.days = append(idx.days, in.Day)
		}
		row[in.TemplateID] = in
	}
	slices.SortFunc(idx.days, calendar.Day.Compare)
	return idx
}

func (idx *streakIndex) lookup(day calendar.Day, templateID string) (storage.Instance, bool) {
	in, ok := idx.cells[day][templateID]
	return in, ok
}

// anyLogged reports whether any instance of day has left pending.
func (idx *streakIndex) anyLogged(day calendar.Day) bool {
	for _, in := range idx.cells[day] {
		if in.Status.Logged() {
			return true
		}
	}
	return false
}

// with returns a copy of idx with in stored in its cell.
func (idx *streakIndex) with(in storage.Instance) *streakIndex {
	next := &streakIndex{
		days:  idx.days,
		cells: maps.Clone(idx.cells),
	}
	row, ok := idx.cells[in.Day]
	if ok {
		row = maps.Clone(row)
	} else {
		row = make(map[string]storage.Instance, 1)
		pos, _ := slices.BinarySearchFunc(idx.days, in.Day, calendar.Day.Compare)
		next.days = slices.Insert(slices.Clone(idx.days), pos, in.Day)
	}
	row[in.TemplateID] = in
	next.cells[in.Day] = row
	return next
}

// without returns a copy of idx with key's cell removed. Days left empty are
// dropped from the day list.
func (idx *streakIndex) without(key storage.InstanceKey) *streakIndex {
	row, ok := idx.cells[key.Day]
	if !ok {
		return idx
	}
	if _, ok := row[key.TemplateID]; !ok {
		return idx
	}
	next := &streakIndex{
		days:  idx.days,
		cells: maps.Clone(idx.cells),
	}
	row = maps.Clone(row)
	delete(row, key.TemplateID)
	if len(row) == 0 {
		delete(next.cells, key.Day)
		next.days = slices.DeleteFunc(slices.Clone(idx.days), func(d calendar.Day) bool { return d == key.Day })
	} else {
		next.cells[key.Day] = row
	}
	return next
}
