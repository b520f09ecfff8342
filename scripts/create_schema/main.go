package main

import (
	"log"
	"os"
	"strings"

	"github.com/rdkhokhar/parley/pkg/db"
)

func main() {
	hostsStr := os.Getenv("SCYLLA_HOSTS")
	if hostsStr == "" {
		hostsStr = "localhost:9042"
	}
	hosts := strings.Split(hostsStr, ",")
	keyspace := "chat"

	if err := db.EnsureKeyspace(hosts, keyspace); err != nil {
		log.Fatalf("Failed to create keyspace: %v", err)
	}

	session, err := db.NewSession(hosts, keyspace)
	if err != nil {
		log.Fatalf("Failed to connect to ScyllaDB: %v", err)
	}
	defer session.Close()

	if err := db.EnsureSchema(session); err != nil {
		log.Fatalf("Failed to create schema: %v", err)
	}

	log.Println("Schema created successfully")
}
