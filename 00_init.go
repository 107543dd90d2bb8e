package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

// debugMode turns on verbose logging and the debug trace for DNS and TUI answers
var debugMode bool

func init() {
	// Load .env file before anything else
	if err := godotenv.Load(); err != nil {
		// Only log errors - this is important to always see
		log.Printf("No .env file found: %v", err)
	}
	debugMode = os.Getenv("DEBUG") == "true"
}
