package main

import (
	"fmt"
	"os"

	"github.com/akamensky/argparse"
	"homewatch/internal/config"
	"homewatch/internal/logger"
	"homewatch/internal/model"
	"homewatch/internal/service/ai"
	"homewatch/internal/tfmodel"
	"homewatch/internal/vision"
)

func main() {
	log := logger.NewConsoleLogger()

	parser := argparse.NewParser("modelinfo", "Inspect a TensorFlow SavedModel and optionally run it on an image")
	modelDir := parser.String("m", "model", &argparse.Options{Help: "SavedModel directory", Required: true})
	listOps := parser.Flag("o", "ops", &argparse.Options{Help: "List every graph operation"})
	imagePath := parser.String("i", "image", &argparse.Options{Help: "JPEG/PNG image to run through the model"})
	mode := parser.Selector("r", "run", []string{"presence", "activity", "hog"}, &argparse.Options{Help: "How to interpret the model outputs", Default: "presence"})
	threshold := parser.Float("t", "threshold", &argparse.Options{Help: "Override the presence or activity threshold", Default: -1.0})
	err := parser.Parse(os.Args)
	if err != nil {
		log.Error("%s", parser.Usage(err))
		os.Exit(1)
	}

	if !tfmodel.Exists(*modelDir) && *mode != "hog" {
		log.Error("No saved_model.pb in %s", *modelDir)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Error("Invalid configuration: %v", err)
		os.Exit(1)
	}

	var m *tfmodel.Model
	if *mode != "hog" {
		m, err = tfmodel.Load(*modelDir, log)
		if err != nil {
			os.Exit(1)
		}
		if *listOps {
			tfmodel.ListOperations(m, log)
		}
		fmt.Printf("Graph rescales its own inputs: %t\n", tfmodel.ExpectsNormalizedInputs(m, log))
	}

	if *imagePath == "" {
		m.Close()
		return
	}

	data, err := os.ReadFile(*imagePath)
	if err != nil {
		log.Error("Failed to read image: %v", err)
		os.Exit(1)
	}
	frame, err := vision.DecodeImage(data)
	if err != nil {
		log.Error("%v", err)
		os.Exit(1)
	}
	defer frame.Close()

	switch *mode {
	case "presence", "hog":
		if *threshold >= 0 {
			cfg.PresenceThreshold = *threshold
		}
		d := ai.NewPresenceDetectorWithModel(m, cfg, log)
		defer d.Close()
		if *mode == "hog" {
			fmt.Printf("Person present (HOG): %t\n", d.DetectPersonWithHOG(frame))
			return
		}
		for _, det := range d.Detect(frame) {
			fmt.Printf("class %d  score %.3f\n", det.ClassID, det.Score)
		}
		fmt.Printf("Person present: %t\n", d.IsPersonPresent(frame))
	case "activity":
		if *threshold >= 0 {
			cfg.ActivityConfidenceThreshold = *threshold
		}
		c := ai.NewActivityClassifierWithModel(m, cfg, log)
		defer c.Close()
		printActivities(c.ClassifyActivity(frame))
	}
}

func printActivities(scores map[model.ActivityType]float64) {
	if len(scores) == 0 {
		fmt.Println("No activity above threshold")
		return
	}
	for _, s := range model.RankActivities(scores) {
		fmt.Printf("%-16s %.3f\n", s.Activity, s.Confidence)
	}
}
