package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/rdkhokhar/parley/pkg/chatsync"
	"github.com/rdkhokhar/parley/pkg/model"
)

type LoginResponse struct {
	Token string `json:"token"`
}

func login(apiAddr, userID, name string) (string, error) {
	reqBody, _ := json.Marshal(map[string]string{"user_id": userID, "name": name})
	resp, err := http.Post(apiAddr+"/login", "application/json", bytes.NewBuffer(reqBody))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("login failed: %s", string(body))
	}

	var loginResp LoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&loginResp); err != nil {
		return "", err
	}
	return loginResp.Token, nil
}

// api wraps the authenticated write endpoints.
type api struct {
	url    string
	params string
	token  string
}

func (a *api) do(method, url string, body any) (model.Message, error) {
	var buf io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return model.Message{}, err
		}
		buf = bytes.NewBuffer(data)
	}

	req, err := http.NewRequest(method, url, buf)
	if err != nil {
		return model.Message{}, err
	}
	req.Header.Set("Authorization", "Bearer "+a.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return model.Message{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return model.Message{}, fmt.Errorf("%s %s: %s", method, url, strings.TrimSpace(string(respBody)))
	}

	var msg model.Message
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		return model.Message{}, err
	}
	return msg, nil
}

func (a *api) send(content string) (model.Message, error) {
	return a.do(http.MethodPost, a.url+"?"+a.params, map[string]string{"content": content})
}

func (a *api) edit(id int64, content string) (model.Message, error) {
	return a.do(http.MethodPatch, fmt.Sprintf("%s/%d?%s", a.url, id, a.params), map[string]string{"content": content})
}

func (a *api) delete(id int64) (model.Message, error) {
	return a.do(http.MethodDelete, fmt.Sprintf("%s/%d?%s", a.url, id, a.params), nil)
}

func render(m model.Message) string {
	if m.Deleted {
		return fmt.Sprintf("[%d] %s: (deleted)", m.ID, m.Member.Name)
	}
	line := fmt.Sprintf("[%d] %s: %s", m.ID, m.Member.Name, m.Content)
	if m.FileURL != "" {
		line += " <" + m.FileURL + ">"
	}
	return line
}

func main() {
	apiAddr := flag.String("api", "http://localhost:8080", "chat server address")
	wsAddr := flag.String("ws", "ws://localhost:8080/ws", "websocket endpoint")
	userID := flag.String("user", "user1", "user id")
	name := flag.String("name", "", "display name")
	channelID := flag.String("channel", "general", "channel id")
	conversationID := flag.String("dm", "", "conversation id to dm in (overrides -channel)")
	flag.Parse()

	// 1. Login to get a token.
	log.Printf("Logging in as %s...", *userID)
	token, err := login(*apiAddr, *userID, *name)
	if err != nil {
		log.Fatal("Login failed: ", err)
	}

	apiURL := *apiAddr + "/messages"
	paramKey := "channelId"
	paramValue := *channelID
	roomKey := model.ChannelRoom(*channelID)
	if *conversationID != "" {
		apiURL = *apiAddr + "/direct-messages"
		paramKey = "conversationId"
		paramValue = *conversationID
		roomKey = model.ConversationRoom(*conversationID)
	}

	// 2. Controller owns this room's paginated view.
	var ctrl *chatsync.Controller
	lastCount := 0
	onChange := func(reason chatsync.ChangeReason) {
		msgs := ctrl.Messages()
		switch reason {
		case chatsync.ChangeInitial:
			fmt.Print("\r")
			for i := len(msgs) - 1; i >= 0; i-- {
				fmt.Println(render(msgs[i]))
			}
			fmt.Print("> ")
		case chatsync.ChangeHistory:
			fmt.Printf("\r(loaded %d older messages)\n> ", len(msgs)-lastCount)
		case chatsync.ChangeLive, chatsync.ChangeRefresh:
			for i := len(msgs) - lastCount - 1; i >= 0; i-- {
				fmt.Printf("\r%s\n> ", render(msgs[i]))
			}
		}
		lastCount = len(msgs)
	}
	ctrl = chatsync.New(chatsync.Config{
		APIURL:     apiURL,
		ParamKey:   paramKey,
		ParamValue: paramValue,
		RoomKey:    roomKey,
		Token:      token,
		OnChange:   onChange,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ctrl.Run(ctx) // fallback poll while no live channel is up

	// 3. Live channel with reconnects; polling covers the gaps.
	go func() {
		for ctx.Err() == nil {
			live, err := chatsync.DialLive(ctx, *wsAddr, token)
			if err != nil {
				log.Printf("Live channel unavailable, polling: %v", err)
				time.Sleep(5 * time.Second)
				continue
			}
			if err := live.Join(roomKey); err == nil {
				_ = live.Listen(ctrl)
			}
			_ = live.Close()
			log.Println("Live channel lost, falling back to polling")
			time.Sleep(time.Second)
		}
	}()

	if err := ctrl.LoadInitial(ctx); err != nil {
		log.Printf("Initial load failed (will keep retrying): %v", err)
	}

	writer := &api{url: apiURL, params: paramKey + "=" + paramValue, token: token}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	done := make(chan struct{})

	// 4. Read commands and messages from stdin.
	go func() {
		defer close(done)
		scanner := bufio.NewScanner(os.Stdin)
		fmt.Print("> ")
		for scanner.Scan() {
			text := strings.TrimSpace(scanner.Text())
			switch {
			case text == "":
			case text == "/quit":
				return
			case text == "/more":
				if err := ctrl.LoadMore(ctx); err != nil {
					log.Println("load more:", err)
				}
			case strings.HasPrefix(text, "/edit "):
				fields := strings.SplitN(text, " ", 3)
				if len(fields) != 3 {
					fmt.Println("usage: /edit <id> <new content>")
					break
				}
				id, err := strconv.ParseInt(fields[1], 10, 64)
				if err != nil {
					fmt.Println("usage: /edit <id> <new content>")
					break
				}
				if _, err := writer.edit(id, fields[2]); err != nil {
					log.Println("edit:", err)
				}
			case strings.HasPrefix(text, "/del "):
				id, err := strconv.ParseInt(strings.TrimSpace(strings.TrimPrefix(text, "/del ")), 10, 64)
				if err != nil {
					fmt.Println("usage: /del <id>")
					break
				}
				if _, err := writer.delete(id); err != nil {
					log.Println("delete:", err)
				}
			default:
				if _, err := writer.send(text); err != nil {
					log.Println("send:", err)
				}
			}
			fmt.Print("> ")
		}
	}()

	select {
	case <-done:
	case <-interrupt:
		log.Println("interrupt")
	}
	ctrl.Close()
}
