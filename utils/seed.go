package utils

import (
	"context"
	"log"
	"time"

	"geminijoust/db"
	"geminijoust/models"

	"go.mongodb.org/mongo-driver/bson"
)

// SeedTopics populates the topics collection with starter debate subjects so
// a fresh deployment has something to pair users on. Skips when topics exist.
func SeedTopics(store *db.Store) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	count, err := store.Topics().CountDocuments(ctx, bson.M{})
	if err != nil || count > 0 {
		return
	}

	samples := []models.Topic{
		{
			Name:        "Universal Basic Income",
			Description: "Should governments provide every citizen an unconditional basic income?",
		},
		{
			Name:        "Remote Work",
			Description: "Is remote work better than office-based work?",
		},
		{
			Name:        "AI Regulation",
			Description: "Should artificial intelligence development be regulated by governments?",
		},
	}
	for i := range samples {
		samples[i].CreatedBy = "system"
		if _, err := store.CreateTopic(ctx, &samples[i]); err != nil {
			log.Printf("Failed to seed topic %q: %v", samples[i].Name, err)
		}
	}
	log.Printf("Seeded %d starter topics", len(samples))
}
