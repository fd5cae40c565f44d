package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ModeratorSenderID is the reserved sender id for system-authored messages
// produced by the moderation pipeline.
const ModeratorSenderID = "moderator"

// Message is one entry in a session's transcript. Messages are immutable once
// created and ordered by Timestamp, with ObjectID creation order breaking ties.
type Message struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	SessionID        primitive.ObjectID `bson:"sessionId" json:"sessionId"`
	SenderID         string             `bson:"senderId" json:"senderId"`
	Text             string             `bson:"text" json:"text"`
	Timestamp        time.Time          `bson:"timestamp" json:"timestamp"`
	WordCount        int                `bson:"wordCount" json:"wordCount"`
	IsFallacyAlert   bool               `bson:"isFallacyAlert" json:"isFallacyAlert"`
	IsGeminiResponse bool               `bson:"isGeminiResponse" json:"isGeminiResponse"`
}
