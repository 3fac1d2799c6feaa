package domain

import "errors"

var (
	// ErrNoResults is returned when the places search yields no results at all
	ErrNoResults = errors.New("no search results for restaurant")

	// ErrNoStrongMatch is returned when no search result clears the acceptance threshold
	ErrNoStrongMatch = errors.New("no search result matched the restaurant strongly enough")

	// ErrNoWebsite is returned when the accepted place has no public website on file
	ErrNoWebsite = errors.New("matched place has no website")

	// ErrNoCandidates is returned when no menu URL scores above zero
	ErrNoCandidates = errors.New("no usable menu URL candidate")

	// ErrFetchFailed is returned when every candidate fetch fails or times out
	ErrFetchFailed = errors.New("all menu fetch attempts failed")

	// ErrExtractionFailed is returned when neither structural nor model extraction yields sections
	ErrExtractionFailed = errors.New("no menu sections could be extracted")

	// ErrLowConfidence is returned when verification scores the menu below the approval threshold
	ErrLowConfidence = errors.New("menu confidence below approval threshold")

	// ErrAggregatorBlocked is returned when the only menu source is a third-party ordering platform
	ErrAggregatorBlocked = errors.New("menu source is a blocked aggregator domain")

	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrPlacesAPIFailure is returned when a places API request fails
	ErrPlacesAPIFailure = errors.New("places API request failed")

	// ErrImageOnlyPDF is returned when a PDF yields almost no extractable text
	ErrImageOnlyPDF = errors.New("pdf appears to be image-only and needs OCR")
)
