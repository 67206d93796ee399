package app

import (
	"cmp"
	"net/url"
	"slices"
	"strings"

	"offer_console/internal/domain"
)

// ApplyFilter derives the visible list from offers. It never mutates its
// input and always returns a non-nil slice.
func ApplyFilter(offers []domain.DisplayOffer, spec domain.FilterSpec) []domain.DisplayOffer {
	spec = NormalizeSpec(spec)
	needle := strings.ToLower(spec.Search)

	out := make([]domain.DisplayOffer, 0, len(offers))
	for _, o := range offers {
		if needle != "" &&
			!strings.Contains(strings.ToLower(o.Title), needle) &&
			!strings.Contains(strings.ToLower(o.Destination), needle) {
			continue
		}
		if !matchAvailability(o, spec.Availability) || !matchRating(o, spec.Rating) {
			continue
		}
		out = append(out, o)
	}

	slices.SortStableFunc(out, comparator(spec.SortBy))
	return out
}

// NormalizeSpec replaces unknown or empty values with all/newest.
func NormalizeSpec(spec domain.FilterSpec) domain.FilterSpec {
	switch spec.Availability {
	case domain.AvailabilityAvailable, domain.AvailabilityUnavailable:
	default:
		spec.Availability = domain.AvailabilityAll
	}
	switch spec.Rating {
	case domain.RatingFive, domain.RatingFourUp, domain.RatingThreeUp:
	default:
		spec.Rating = domain.RatingAll
	}
	switch spec.SortBy {
	case domain.SortOldest, domain.SortRatingHigh, domain.SortRatingLow, domain.SortTitle:
	default:
		spec.SortBy = domain.SortNewest
	}
	return spec
}

// SpecFromQuery reads availability, rating, search and sortBy from a query string.
func SpecFromQuery(q url.Values) domain.FilterSpec {
	return NormalizeSpec(domain.FilterSpec{
		Availability: domain.Availability(q.Get("availability")),
		Rating:       domain.RatingFilter(q.Get("rating")),
		Search:       q.Get("search"),
		SortBy:       domain.SortBy(q.Get("sortBy")),
	})
}

func matchAvailability(o domain.DisplayOffer, a domain.Availability) bool {
	switch a {
	case domain.AvailabilityAvailable:
		return o.Available
	case domain.AvailabilityUnavailable:
		return !o.Available
	}
	return true
}

func matchRating(o domain.DisplayOffer, r domain.RatingFilter) bool {
	switch r {
	case domain.RatingFive:
		return o.Rating == 5
	case domain.RatingFourUp:
		return o.Rating >= 4
	case domain.RatingThreeUp:
		return o.Rating >= 3
	}
	return true
}

func comparator(by domain.SortBy) func(a, b domain.DisplayOffer) int {
	switch by {
	case domain.SortOldest:
		return func(a, b domain.DisplayOffer) int { return cmp.Compare(sortTimestamp(a), sortTimestamp(b)) }
	case domain.SortRatingHigh:
		return func(a, b domain.DisplayOffer) int { return cmp.Compare(b.Rating, a.Rating) }
	case domain.SortRatingLow:
		return func(a, b domain.DisplayOffer) int { return cmp.Compare(a.Rating, b.Rating) }
	case domain.SortTitle:
		return func(a, b domain.DisplayOffer) int { return strings.Compare(a.Title, b.Title) }
	default:
		return func(a, b domain.DisplayOffer) int { return cmp.Compare(sortTimestamp(b), sortTimestamp(a)) }
	}
}

// sortTimestamp is createdAt in milliseconds, or id*1000 for legacy numeric
// ids without a creation date, or 0.
func sortTimestamp(o domain.DisplayOffer) int64 {
	if o.CreatedAt != nil {
		return o.CreatedAt.UnixMilli()
	}
	if n, ok := o.ID.Numeric(); ok {
		return n * 1000
	}
	return 0
}
