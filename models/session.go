package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Session statuses. Active is the only state that accepts messages; every
// concluded status is terminal.
const (
	StatusActive                 = "active"
	StatusConcludedWordLimit     = "concluded_word_limit"
	StatusConcludedOneExited     = "concluded_one_exited"
	StatusConcludedOneExitOneLim = "concluded_one_exit_one_limit"
	StatusConcludedBothExited    = "concluded_both_exited"
)

// Word budget caps.
const (
	MaxWordsPerReply       = 500
	MaxWordsPerDebateTotal = 2000
)

// ParticipantState tracks one participant's cumulative word usage and exit
// flag. WordsUsed never decreases.
type ParticipantState struct {
	WordsUsed int  `bson:"wordsUsed" json:"wordsUsed"`
	HasExited bool `bson:"hasExited" json:"hasExited"`
}

// DebateSession is a paired, turn-based exchange between exactly two users.
// The session document is the unit of consistency: all participant-info
// mutations go through a single atomic update of this record.
type DebateSession struct {
	ID              primitive.ObjectID          `bson:"_id,omitempty" json:"id,omitempty"`
	TopicID         primitive.ObjectID          `bson:"topicId" json:"topicId"`
	TopicName       string                      `bson:"topicName" json:"topicName"`
	Participants    []string                    `bson:"participants" json:"participants"`
	ParticipantInfo map[string]ParticipantState `bson:"participantInfo" json:"participantInfo"`
	Status          string                      `bson:"status" json:"status"`
	Turn            string                      `bson:"turn" json:"turn"`
	CreatedAt       time.Time                   `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time                   `bson:"updatedAt" json:"updatedAt"`
}

// HasParticipant reports whether userID is one of the two participants.
func (s *DebateSession) HasParticipant(userID string) bool {
	for _, id := range s.Participants {
		if id == userID {
			return true
		}
	}
	return false
}

// OtherParticipant returns the participant that is not userID. It returns ""
// if userID is not a participant.
func (s *DebateSession) OtherParticipant(userID string) string {
	for _, id := range s.Participants {
		if id != userID {
			return id
		}
	}
	return ""
}

// IsConcluded reports whether the session has reached a terminal status.
func (s *DebateSession) IsConcluded() bool {
	return s.Status != StatusActive
}
