package model

import "github.com/pvcast/pvcast/pkg/types"

// Business policy thresholds for recommending feed-in.
const (
	FeedInMinPVKW      = 0.5
	FeedInMinEURPerKWH = 0.20
)

// Recommend labels an hour as feed-in when the forecast exceeds
// FeedInMinPVKW and the price is at least FeedInMinEURPerKWH, and as
// self-consumption otherwise. Without a price there is no recommendation.
func Recommend(pvKW float64, priceEURPerKWH *float64) *types.Recommendation {
	if priceEURPerKWH == nil {
		return nil
	}
	rec := types.RecommendationSelfConsumption
	if pvKW > FeedInMinPVKW && *priceEURPerKWH >= FeedInMinEURPerKWH {
		rec = types.RecommendationFeedIn
	}
	return &rec
}
