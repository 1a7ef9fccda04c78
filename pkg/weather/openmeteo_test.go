package weather

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenMeteoFetchHourly(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Vienna")
	require.NoError(t, err)

	req := Request{
		Latitude:  47.797777777778,
		Longitude: 16.296666666667,
		Location:  loc,
		Start:     time.Date(2024, 7, 26, 0, 0, 0, 0, loc),
		End:       time.Date(2024, 7, 27, 0, 0, 0, 0, loc),
	}

	t.Run("success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			assert.Equal(t, "47.797777777778", q.Get("latitude"))
			assert.Equal(t, "16.296666666667", q.Get("longitude"))
			assert.Equal(t, "shortwave_radiation", q.Get("hourly"))
			assert.Equal(t, "Europe/Vienna", q.Get("timezone"))
			assert.Equal(t, "2024-07-26", q.Get("start_date"))
			assert.Equal(t, "2024-07-27", q.Get("end_date"))
			assert.Contains(t, r.Header.Get("User-Agent"), "PVCast/")

			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{
				"timezone": "Europe/Vienna",
				"hourly_units": {"time": "iso8601", "shortwave_radiation": "W/m²"},
				"hourly": {
					"time": ["2024-07-27T00:00", "2024-07-26T12:00", "2024-07-27T12:00", "bogus"],
					"shortwave_radiation": [0.0, 650.5, null, 1.0]
				}
			}`))
		}))
		defer server.Close()

		series, err := NewOpenMeteo(server.URL, "shortwave_radiation", nil).FetchHourly(context.Background(), req)
		require.NoError(t, err)
		require.Len(t, series, 3)

		assert.Equal(t, time.Date(2024, 7, 26, 12, 0, 0, 0, loc), series[0].TS)
		assert.Equal(t, 650.5, series[0].Value)
		assert.Equal(t, time.Date(2024, 7, 27, 0, 0, 0, 0, loc), series[1].TS)
		assert.Equal(t, 0.0, series[1].Value)
		assert.True(t, math.IsNaN(series[2].Value))
		assert.Len(t, series.Dates(), 2)
	})

	t.Run("api error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error": true, "reason": "Latitude must be in range of -90 to 90°."}`))
		}))
		defer server.Close()

		_, err := NewOpenMeteo(server.URL, "shortwave_radiation", nil).FetchHourly(context.Background(), req)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Latitude must be in range")
	})

	t.Run("server error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		_, err := NewOpenMeteo(server.URL, "shortwave_radiation", nil).FetchHourly(context.Background(), req)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "502")
	})

	t.Run("missing variable", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"hourly": {"time": ["2024-07-27T00:00"], "cloud_cover": [10]}}`))
		}))
		defer server.Close()

		_, err := NewOpenMeteo(server.URL, "shortwave_radiation", nil).FetchHourly(context.Background(), req)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing hourly shortwave_radiation")
	})
}

func TestOpenMeteoValidate(t *testing.T) {
	assert.NoError(t, NewOpenMeteo(defaultOpenMeteoURL, defaultVariable, nil).Validate())
	assert.Error(t, NewOpenMeteo("", defaultVariable, nil).Validate())
	assert.Error(t, NewOpenMeteo(defaultOpenMeteoURL, "", nil).Validate())
}
