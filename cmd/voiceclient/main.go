package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/deepak6009/khetsaathi-sub000/internal/client"
)

func main() {
	server := flag.String("server", "http://localhost:8080", "voice server base URL")
	phone := flag.String("phone", "", "farmer phone number (required)")
	language := flag.String("language", "English", "conversation language")
	images := flag.String("images", "", "comma-separated crop image URLs")
	flag.Parse()

	if *phone == "" {
		fmt.Fprintln(os.Stderr, "usage: voiceclient -phone +91XXXXXXXXXX [-language Telugu] [-images url1,url2]")
		os.Exit(2)
	}

	base := strings.TrimRight(*server, "/")
	wsPath, err := mintSession(base)
	if err != nil {
		log.Fatalf("create session: %v", err)
	}

	wsURL := strings.Replace(base, "http", "ws", 1) + wsPath
	log.Printf("connecting to %s", wsURL)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var imageURLs []string
	if *images != "" {
		for _, u := range strings.Split(*images, ",") {
			if u = strings.TrimSpace(u); u != "" {
				imageURLs = append(imageURLs, u)
			}
		}
	}

	err = client.Run(ctx, client.Options{
		URL:       wsURL,
		Phone:     *phone,
		Language:  *language,
		ImageURLs: imageURLs,
	})
	if err != nil {
		log.Fatalf("session ended: %v", err)
	}
	log.Printf("session closed")
}

func mintSession(base string) (string, error) {
	resp, err := http.Post(base+"/sessions", "application/json", nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	var body struct {
		SessionID string `json:"session_id"`
		WSPath    string `json:"ws_path"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	if body.WSPath == "" {
		return "", fmt.Errorf("server returned no ws_path")
	}
	log.Printf("session minted id=%s", body.SessionID)
	return body.WSPath, nil
}
