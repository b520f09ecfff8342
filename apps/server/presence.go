package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/redis/go-redis/v9"
)

// presence mirrors room membership into Redis sets so other services (and
// the /rooms/{key}/users endpoint) can see who is online. It is a mirror
// only: the broker's registry stays the authority for fan-out, and a nil
// Redis client disables the mirror without touching the core.
type presence struct {
	redis *redis.Client
}

func newPresence(redisAddr string) *presence {
	if redisAddr == "" {
		return &presence{}
	}
	return &presence{redis: redis.NewClient(&redis.Options{Addr: redisAddr})}
}

func (p *presence) key(roomKey string) string {
	return "room:" + roomKey + ":users"
}

func (p *presence) joined(roomKey, userID string) {
	if p.redis == nil {
		return
	}
	if err := p.redis.SAdd(context.Background(), p.key(roomKey), userID).Err(); err != nil {
		log.Printf("Failed to set presence for %s in %s: %v", userID, roomKey, err)
	}
}

func (p *presence) left(roomKey, userID string) {
	if p.redis == nil {
		return
	}
	if err := p.redis.SRem(context.Background(), p.key(roomKey), userID).Err(); err != nil {
		log.Printf("Failed to clear presence for %s in %s: %v", userID, roomKey, err)
	}
}

// ServeHTTP answers GET /rooms/{roomKey}/users with the online user ids.
func (p *presence) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	pathParts := strings.Split(r.URL.Path, "/")
	if len(pathParts) != 4 || pathParts[3] != "users" {
		http.Error(w, "Invalid path", http.StatusBadRequest)
		return
	}
	roomKey := pathParts[2]

	users := []string{}
	if p.redis != nil {
		var err error
		users, err = p.redis.SMembers(context.Background(), p.key(roomKey)).Result()
		if err != nil {
			log.Printf("Failed to fetch presence for %s: %v", roomKey, err)
			http.Error(w, "Failed to fetch presence", http.StatusInternalServerError)
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(users)
}
