package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
)

type LoginResponse struct {
	Token string `json:"token"`
}

func main() {
	apiAddr := "http://localhost:8080"

	// 1. Login
	reqBody, _ := json.Marshal(map[string]string{"user_id": "test_user", "name": "Test User"})
	resp, err := http.Post(apiAddr+"/login", "application/json", bytes.NewBuffer(reqBody))
	if err != nil {
		log.Fatal(err)
	}
	defer resp.Body.Close()

	var loginResp LoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&loginResp); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Token: %s...\n", loginResp.Token[:10])

	// 2. Post a message to the smoke-test channel
	body, _ := json.Marshal(map[string]string{"content": "verify_api smoke test"})
	req, _ := http.NewRequest("POST", apiAddr+"/messages?channelId=smoke", bytes.NewBuffer(body))
	req.Header.Add("Authorization", "Bearer "+loginResp.Token)
	req.Header.Add("Content-Type", "application/json")

	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		log.Fatal("Create request failed: ", err)
	}
	created, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	log.Printf("Created (%d): %s", resp.StatusCode, string(created))

	// 3. Fetch the newest page back
	req, _ = http.NewRequest("GET", apiAddr+"/messages?channelId=smoke", nil)
	req.Header.Add("Authorization", "Bearer "+loginResp.Token)

	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		log.Fatal("History request failed: ", err)
	}
	defer resp.Body.Close()

	page, _ := io.ReadAll(resp.Body)
	log.Printf("Page: %s", string(page))
}
