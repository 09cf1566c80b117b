package ranking

import (
	"math"

	"github.com/shiftfill/outreach/internal/entities"
)

const earthRadiusMiles = 3958.8

// distanceMiles returns -1 when either side has no geodata.
func distanceMiles(a, b *entities.GeoPoint) float64 {
	if a == nil || b == nil {
		return -1
	}
	lat1, lat2 := radians(a.Lat), radians(b.Lat)
	dLat := lat2 - lat1
	dLon := radians(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMiles * math.Asin(math.Min(1, math.Sqrt(h)))
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
