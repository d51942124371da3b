package timezone

import "time"

var Location *time.Location

func init() {
	var err error
	Location, err = time.LoadLocation("America/New_York")
	if err != nil {
		panic(err)
	}
}

// force timezone to the district's because the portal renders dates
// without offsets, so parsing them anywhere else shifts due dates
// across day boundaries
func Now() time.Time {
	return time.Now().In(Location)
}
