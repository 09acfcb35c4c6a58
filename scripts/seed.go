package main

import (
	"fmt"
	"log"

	"github.com/dealsense-team/dealsense/internal/domain/entities"
	"github.com/dealsense-team/dealsense/internal/infrastructure/database"
	"github.com/dealsense-team/dealsense/pkg/config"
)

func main() {
	log.Println("🚀 Starting transcript record seeding...")

	// Load configuration from .env
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize database
	log.Println("📦 Connecting to database...")
	db, err := database.NewPostgresDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.CloseDB(db)

	log.Println("✅ Database connected successfully")

	seedTranscripts := []struct {
		Kind entities.SourceKind
		Text string
	}{
		{
			Kind: entities.SourceKindCallRecording,
			Text: "Sarah (VP of Engineering, Northwind): Our deploy pipeline takes forty minutes and the team is frustrated. We want to cut release time in half by Q4. John: We can run a proof of concept next week. Sarah: Loop in Dave from procurement before we sign anything.",
		},
		{
			Kind: entities.SourceKindMeetingNotes,
			Text: "Attendees: Priya Raman (CTO, Contoso), Mark (account exec). Pain points: on-call fatigue, alert noise. Goals: consolidate monitoring tools this fiscal year. Next steps: Priya to share current tooling inventory; Mark to send pricing for the enterprise tier.",
		},
		{
			Kind: entities.SourceKindEarningsCall,
			Text: "Operator: Welcome to the Q2 earnings call. CFO: Margins compressed two points on cloud spend. We are evaluating vendors to bring infrastructure cost down ten percent by year end.",
		},
		{
			// Ingested without text: stays pending and is never dispatched
			Kind: entities.SourceKindCallRecording,
			Text: "",
		},
	}

	log.Println("🗑️  Cleaning up existing seed records...")
	db.Where("external_source_id LIKE ?", "seed-%").Delete(&entities.TranscriptRecord{})

	log.Println("📝 Creating transcript records...")

	created := 0
	for i, seed := range seedTranscripts {
		record := entities.NewTranscriptRecord(seed.Kind, seed.Text)
		externalID := fmt.Sprintf("seed-%02d", i+1)
		record.ExternalSourceID = &externalID

		if err := db.Create(record).Error; err != nil {
			log.Printf("❌ Failed to create record %d: %v", i, err)
			continue
		}
		created++
		log.Printf("  ✅ %s (%s) text_len=%d", record.ID, record.SourceKind, len(record.TranscriptText))
	}

	log.Printf("🎉 Seeded %d transcript records", created)
	log.Println("ℹ️  Records are in pending; ingest through the API to dispatch processing")
}
