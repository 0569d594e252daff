/*
rating.go - Free-text performance rating normalization

PURPOSE:
  Import snapshots arrive with ratings as numeric scores ("5"), verbose
  English labels ("Fully Meets"), or already-canonical codes ("FM").
  NormalizeRating folds all of them into the five canonical codes via a
  fixed synonym table. Anything unrecognized is reported as unknown so
  the calculator can flag the employee instead of guessing.
*/
package merit

import "strings"

// ratingSynonyms is the fixed normalization table. Keys are upper-cased
// and trimmed before lookup.
var ratingSynonyms = map[string]Rating{
	"FE": RatingFarExceeds, "FAR EXCEEDS": RatingFarExceeds, "FAR_EXCEEDS": RatingFarExceeds,
	"5": RatingFarExceeds, "EXCEEDS FAR": RatingFarExceeds, "FAR": RatingFarExceeds,

	"E": RatingExceeds, "EXCEEDS": RatingExceeds, "4": RatingExceeds,

	"FM": RatingFullyMeets, "FULLY MEETS": RatingFullyMeets, "FULLY_MEETS": RatingFullyMeets,
	"3": RatingFullyMeets, "MEETS": RatingFullyMeets, "MET": RatingFullyMeets,

	"PM": RatingPartiallyMeet, "PARTIALLY MEETS": RatingPartiallyMeet, "PARTIALLY_MEETS": RatingPartiallyMeet,
	"2": RatingPartiallyMeet, "PARTIAL": RatingPartiallyMeet,

	"DNM": RatingDoesNotMeet, "DOES NOT MEET": RatingDoesNotMeet, "DOES_NOT_MEET": RatingDoesNotMeet,
	"1": RatingDoesNotMeet, "NOT MEET": RatingDoesNotMeet,
}

// NormalizeRating maps raw rating text to a canonical code.
// ok is false when the text matches no synonym.
func NormalizeRating(raw string) (Rating, bool) {
	key := strings.ToUpper(strings.TrimSpace(raw))
	if key == "" {
		return RatingUnknown, false
	}
	r, ok := ratingSynonyms[key]
	if !ok {
		return RatingUnknown, false
	}
	return r, true
}
