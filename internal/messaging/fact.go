package messaging

import (
	"encoding/json"
	"time"
)

// Fact types carried on the message bus.
const (
	// FactProfileUpdated announces that a profile or anything beneath it
	// (locations, species, animals, images) has changed.
	FactProfileUpdated = "profile_updated"
)

// Fact is the envelope for every message on the bus.
//
// Type selects the payload shape of Data; Message is a human-readable
// description used only for logging.
type Fact struct {
	Type    string          `json:"type"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// ProfileUpdate is the payload of a profile_updated fact.
type ProfileUpdate struct {
	ProfileID string    `json:"profileId"`
	Username  string    `json:"username"`
	Timestamp time.Time `json:"timestamp"`
}

// NewProfileUpdatedFact builds a profile_updated fact for a profile.
func NewProfileUpdatedFact(profileID, username string) (*Fact, error) {
	data, err := json.Marshal(ProfileUpdate{
		ProfileID: profileID,
		Username:  username,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	return &Fact{
		Type:    FactProfileUpdated,
		Message: "Profile " + profileID + " for user " + username + " has been updated",
		Data:    data,
	}, nil
}
