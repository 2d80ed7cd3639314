package models

import "time"

// EventType classifies a detected incident.
type EventType string

const (
	EventTypePastOffender EventType = "PAST_OFFENDER"
	EventTypeShoplifting  EventType = "SHOPLIFTING"
)

// Offender is a person with a history of flagged incidents at monitored stores.
type Offender struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	ProfileImage     string   `json:"profileImage,omitempty"`
	TotalIncidents   int      `json:"totalIncidents"`
	LastIncidentDate string   `json:"lastIncidentDate,omitempty"`
	AreaOfActivity   []string `json:"areaOfActivity,omitempty"`
	StoreTypes       []string `json:"storeTypes,omitempty"`
	Notes            string   `json:"notes,omitempty"`
}

// VideoClip is a piece of video evidence attached to an event.
type VideoClip struct {
	ID        string  `json:"id"`
	URL       string  `json:"url"`
	Thumbnail string  `json:"thumbnail,omitempty"`
	Timestamp string  `json:"timestamp,omitempty"`
	Duration  float64 `json:"duration"`
}

// EventStore is the store an event was detected in, as reported by the feed.
type EventStore struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
}

// EventMetadata carries optional detection details.
type EventMetadata struct {
	DetectedItems     []string  `json:"detectedItems,omitempty"`
	Location          string    `json:"location,omitempty"`
	Reviewed          bool      `json:"reviewed,omitempty"`
	Notes             string    `json:"notes,omitempty"`
	PotentialOffender *Offender `json:"potentialOffender,omitempty"`
	MatchConfidence   float64   `json:"matchConfidence,omitempty"`
}

// Event is a single detected incident with its video evidence.
type Event struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	Store      EventStore     `json:"store"`
	Summary    string         `json:"summary"`
	Offender   *Offender      `json:"offender,omitempty"`
	VideoClips []VideoClip    `json:"videoClips,omitempty"`
	Metadata   *EventMetadata `json:"metadata,omitempty"`
}

// Location returns the in-store location of the detection, if known.
func (e *Event) Location() string {
	if e.Metadata == nil {
		return ""
	}
	return e.Metadata.Location
}
