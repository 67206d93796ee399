package domain

type Availability string

const (
	AvailabilityAll         Availability = "all"
	AvailabilityAvailable   Availability = "available"
	AvailabilityUnavailable Availability = "unavailable"
)

type RatingFilter string

const (
	RatingAll     RatingFilter = "all"
	RatingFive    RatingFilter = "5"
	RatingFourUp  RatingFilter = "4+"
	RatingThreeUp RatingFilter = "3+"
)

type SortBy string

const (
	SortNewest     SortBy = "newest"
	SortOldest     SortBy = "oldest"
	SortRatingHigh SortBy = "rating-high"
	SortRatingLow  SortBy = "rating-low"
	SortTitle      SortBy = "title"
)

// FilterSpec selects and orders a view of the offer collection.
// The zero value keeps everything, newest first.
type FilterSpec struct {
	Availability Availability
	Rating       RatingFilter
	Search       string
	SortBy       SortBy
}
