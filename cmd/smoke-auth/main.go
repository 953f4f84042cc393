// Command smoke-auth exercises a running instance end to end:
// register -> login -> authenticated stats call.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"time"
)

func main() {
	base := os.Getenv("GATEHOUSE_API_URL")
	if base == "" {
		base = "http://localhost:8080"
	}
	client := &http.Client{Timeout: 5 * time.Second}

	email := fmt.Sprintf("smoke-%d@example.com", rand.Int63())
	password := "smoke-password-1"

	status, _ := post(client, base+"/v1/auth/register", map[string]any{
		"name":     "Smoke Test",
		"email":    email,
		"password": password,
	})
	if status != http.StatusCreated {
		log.Fatalf("register: unexpected status %d", status)
	}

	status, body := post(client, base+"/v1/auth/login", map[string]any{
		"email":    email,
		"password": password,
	})
	if status != http.StatusOK {
		log.Fatalf("login: unexpected status %d", status)
	}
	var login struct {
		AccessToken string `json:"accessToken"`
		ExpiresIn   int64  `json:"expiresIn"`
	}
	if err := json.Unmarshal(body, &login); err != nil {
		log.Fatalf("decode login response: %v", err)
	}
	if login.AccessToken == "" || login.ExpiresIn <= 0 {
		log.Fatalf("login: incomplete token payload: %s", body)
	}

	req, err := http.NewRequest(http.MethodGet, base+"/v1/stats/visits", nil)
	if err != nil {
		log.Fatal(err)
	}
	req.Header.Set("Authorization", "Bearer "+login.AccessToken)
	resp, err := client.Do(req)
	if err != nil {
		log.Fatalf("stats: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Fatalf("stats: unexpected status %d", resp.StatusCode)
	}

	fmt.Println("smoke-auth OK:", email)
}

func post(client *http.Client, url string, payload map[string]any) (int, []byte) {
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Fatal(err)
	}
	resp, err := client.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		log.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)
	return resp.StatusCode, buf.Bytes()
}
