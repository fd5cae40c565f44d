package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const TopicStatusOpen = "open"

// Topic defines a debate subject with its pool of waiting users.
// InterestedUsers is insertion-ordered: index 0 is the user waiting longest.
// Membership is mutated only by the matchmaking engine.
type Topic struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Name            string             `bson:"name" json:"name"`
	Description     string             `bson:"description" json:"description"`
	CreatedBy       string             `bson:"createdBy" json:"createdBy"`
	InterestedUsers []string           `bson:"interestedUsers" json:"interestedUsers"`
	Status          string             `bson:"status" json:"status"`
	CreatedAt       time.Time          `bson:"createdAt" json:"createdAt"`
}

// IsWaiting reports whether the given user is in the topic's waiting pool.
func (t *Topic) IsWaiting(userID string) bool {
	for _, id := range t.InterestedUsers {
		if id == userID {
			return true
		}
	}
	return false
}
