// Package weather fetches the hourly irradiance proxy the PV forecast is
// scaled from.
package weather

import (
	"context"
	"time"

	"github.com/pvcast/pvcast/pkg/types"
)

// Request describes the hourly series to fetch. Start and End are calendar
// days in Location and both are included.
type Request struct {
	Latitude  float64
	Longitude float64
	Location  *time.Location
	Start     time.Time
	End       time.Time
}

// Source returns an hourly irradiance series. Timestamps are in the request's
// location and missing values are NaN.
type Source interface {
	FetchHourly(ctx context.Context, req Request) (types.HourlySeries, error)
}
