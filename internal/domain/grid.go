package domain

import "sort"

// HoursPerDay is the number of hour slots each location contributes to the grid.
const HoursPerDay = 24

// GridSample is one synthetic (location, hour) combination in the dense
// training grid. Incident is true iff at least one Observation exists for the
// exact pair.
type GridSample struct {
	Location string
	Hour     int
	PeakHour bool
	Incident bool
}

// BuildGrid expands raw observations into the complete dense grid: one sample
// per (location, hour) pair for every distinct location and every hour 0-23.
// extraLocations widens the location set beyond what the observations mention;
// such locations contribute 24 all-negative samples and participate in
// training as pure negative evidence. The location order is sorted and stable,
// so repeated builds over the same inputs yield identical grids. Raw data
// contains only positive events; the grid supplies the explicit negatives the
// classifier needs.
func BuildGrid(observations []Observation, extraLocations ...string) ([]GridSample, []string) {
	incidentHours := make(map[string]map[int]bool)
	for _, obs := range observations {
		hours, ok := incidentHours[obs.Location]
		if !ok {
			hours = make(map[int]bool)
			incidentHours[obs.Location] = hours
		}
		hours[obs.Hour] = true
	}
	for _, location := range extraLocations {
		if _, ok := incidentHours[location]; !ok {
			incidentHours[location] = make(map[int]bool)
		}
	}

	locations := make([]string, 0, len(incidentHours))
	for location := range incidentHours {
		locations = append(locations, location)
	}
	sort.Strings(locations)

	samples := make([]GridSample, 0, len(locations)*HoursPerDay)
	for _, location := range locations {
		for hour := 0; hour < HoursPerDay; hour++ {
			samples = append(samples, GridSample{
				Location: location,
				Hour:     hour,
				PeakHour: IsPeakHour(hour),
				Incident: incidentHours[location][hour],
			})
		}
	}
	return samples, locations
}
