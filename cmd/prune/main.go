package main

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/akamensky/argparse"
	"homewatch/internal/dto"
	"homewatch/internal/logger"
	"homewatch/internal/model"
	"homewatch/internal/repository/sqlite"
)

func main() {
	log := logger.NewConsoleLogger()

	parser := argparse.NewParser("prune", "Delete old observations from the database and print statistics")
	dbPath := parser.String("d", "db", &argparse.Options{Help: "Database path", Default: "data/observations.db"})
	days := parser.Int("k", "keep-days", &argparse.Options{Help: "Keep observations from the last N days", Default: 30})
	dryRun := parser.Flag("n", "dry-run", &argparse.Options{Help: "Only report what would be deleted"})
	err := parser.Parse(os.Args)
	if err != nil {
		log.Error("%s", parser.Usage(err))
		os.Exit(1)
	}
	if *days <= 0 {
		log.Error("--keep-days must be positive")
		os.Exit(1)
	}

	db, err := sqlite.New(*dbPath)
	if err != nil {
		log.Error("Failed to open database: %v", err)
		os.Exit(1)
	}
	defer db.Close()
	repo := sqlite.NewObservationRepository(db)

	cutoff := time.Now().UTC().AddDate(0, 0, -*days)
	if *dryRun {
		count, err := repo.GetTotalCount(&dto.ObservationFilter{Before: cutoff})
		if err != nil {
			log.Error("%v", err)
			os.Exit(1)
		}
		fmt.Printf("Would delete %d observations older than %s\n", count, cutoff.Format(time.RFC3339))
	} else {
		deleted, err := repo.DeleteOlderThan(cutoff)
		if err != nil {
			log.Error("%v", err)
			os.Exit(1)
		}
		fmt.Printf("Deleted %d observations older than %s\n", deleted, cutoff.Format(time.RFC3339))
	}

	stats, err := repo.GetStats(nil)
	if err != nil {
		log.Error("Failed to read statistics: %v", err)
		os.Exit(1)
	}
	fmt.Printf("\nDatabase statistics:\n")
	fmt.Printf("   Total observations: %d (%d with a person)\n", stats.TotalObservations, stats.PresenceCount)
	for camera, count := range stats.PerCamera {
		fmt.Printf("      - %s: %d observations\n", camera, count)
	}
	fmt.Printf("   Top activities:\n")
	for _, activity := range model.ActivityTypes() {
		if count := stats.TopActivityCounts[activity]; count > 0 {
			fmt.Printf("      - %s: %d\n", activity, count)
		}
	}

	classCounts, err := sqlite.NewDetectionRepository(db).GetClassCounts()
	if err != nil {
		log.Error("Failed to read detection counts: %v", err)
		os.Exit(1)
	}
	classIDs := make([]int, 0, len(classCounts))
	for id := range classCounts {
		classIDs = append(classIDs, id)
	}
	sort.Ints(classIDs)
	fmt.Printf("   Detections per class:\n")
	for _, id := range classIDs {
		fmt.Printf("      - class %d: %d\n", id, classCounts[id])
	}
}
