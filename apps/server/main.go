package main

import (
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/rdkhokhar/parley/pkg/auth"
	"github.com/rdkhokhar/parley/pkg/broker"
	"github.com/rdkhokhar/parley/pkg/db"
	"github.com/rdkhokhar/parley/pkg/snowflake"
)

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PATCH, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization")

		if r.Method == http.MethodOptions {
			return
		}

		next.ServeHTTP(w, r)
	})
}

func main() {
	addr := getenv("LISTEN_ADDR", ":8080")
	scyllaHosts := strings.Split(getenv("SCYLLA_HOSTS", "localhost:9042"), ",")
	keyspace := getenv("SCYLLA_KEYSPACE", "chat")
	redisAddr := os.Getenv("REDIS_ADDR") // empty disables the presence mirror

	nodeID, err := strconv.ParseInt(getenv("NODE_ID", "1"), 10, 64)
	if err != nil {
		log.Fatalf("Invalid NODE_ID: %v", err)
	}
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		log.Fatalf("Failed to initialize snowflake node: %v", err)
	}

	if err := db.EnsureKeyspace(scyllaHosts, keyspace); err != nil {
		log.Fatalf("Failed to create keyspace: %v", err)
	}
	session, err := db.NewSession(scyllaHosts, keyspace)
	if err != nil {
		log.Fatalf("Failed to connect to ScyllaDB: %v", err)
	}
	defer session.Close()
	if err := db.EnsureSchema(session); err != nil {
		log.Fatalf("Failed to create schema: %v", err)
	}

	store := db.NewMessageStore(session, node)
	hub := broker.New()
	pres := newPresence(redisAddr)

	channels := newChannelAPI(store, hub)
	conversations := newConversationAPI(store, hub)

	mux := http.NewServeMux()
	mux.Handle("/login", CORSMiddleware(http.HandlerFunc(LoginHandler)))
	mux.Handle("/messages", CORSMiddleware(auth.Middleware(http.HandlerFunc(channels.collection))))
	mux.Handle("/messages/", CORSMiddleware(auth.Middleware(http.HandlerFunc(channels.item))))
	mux.Handle("/direct-messages", CORSMiddleware(auth.Middleware(http.HandlerFunc(conversations.collection))))
	mux.Handle("/direct-messages/", CORSMiddleware(auth.Middleware(http.HandlerFunc(conversations.item))))
	mux.Handle("/rooms/", CORSMiddleware(auth.Middleware(pres)))
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		serveWs(hub, pres, w, r)
	})

	log.Printf("Chat server starting on %s...", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatal(err)
	}
}
