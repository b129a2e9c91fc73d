//go:build ignore
// +build ignore

// Package main fires simultaneous borrow requests at one book of a running
// librarydesk server and checks that no more copies were lent than the shelf held.
//
// Usage:
//
//	go run ./scripts/concurrency_test.go <book_id> [requests]
//
// Or with environment variables:
//
//	BOOK_ID=<uuid> REQUESTS=50 go run ./scripts/concurrency_test.go
//
// Prerequisites:
//   - The server is running (librarydesk serve) and SERVER_ADDR points at it.
//   - The book exists in borrow mode with a few copies on the shelf.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"
)

const (
	defaultServerAddr = "http://localhost:8080"
	defaultRequests   = 20
)

type borrowResult struct {
	Customer   string
	StatusCode int
	Err        error
}

type bookView struct {
	Status string `json:"status"`
	Copies int    `json:"copies"`
}

func main() {
	serverAddr := os.Getenv("SERVER_ADDR")
	if serverAddr == "" {
		serverAddr = defaultServerAddr
	}

	bookID := os.Getenv("BOOK_ID")
	requests, _ := strconv.Atoi(os.Getenv("REQUESTS"))

	args := os.Args[1:]
	if len(args) >= 1 {
		bookID = args[0]
	}
	if len(args) >= 2 {
		n, err := strconv.Atoi(args[1])
		if err != nil {
			log.Fatalf("requests must be a number: %v", err)
		}
		requests = n
	}
	if requests <= 0 {
		requests = defaultRequests
	}
	if bookID == "" {
		log.Fatal("Usage: BOOK_ID=<uuid> [REQUESTS=n] go run ./scripts/concurrency_test.go\n" +
			"  or: go run ./scripts/concurrency_test.go <book_id> [requests]")
	}

	client := &http.Client{Timeout: 10 * time.Second}

	before, err := fetchBook(client, serverAddr, bookID)
	if err != nil {
		log.Fatalf("load book: %v", err)
	}

	fmt.Printf("=== librarydesk borrow race ===\n")
	fmt.Printf("Server   : %s\n", serverAddr)
	fmt.Printf("Book     : %s (%s, %d copies)\n", bookID, before.Status, before.Copies)
	fmt.Printf("Requests : %d\n\n", requests)

	results := make([]borrowResult, requests)
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			<-start
			results[idx] = attemptBorrow(client, serverAddr, bookID, fmt.Sprintf("Race Customer %02d", idx))
		}(i)
	}

	fmt.Println("Firing all requests simultaneously...")
	close(start)
	wg.Wait()

	var lent, refused, failures int
	for _, r := range results {
		switch {
		case r.Err != nil:
			failures++
			fmt.Printf("  [ERR ] %-18s err=%v\n", r.Customer, r.Err)
		case r.StatusCode == http.StatusCreated:
			lent++
		case r.StatusCode == http.StatusConflict:
			refused++
		default:
			failures++
			fmt.Printf("  [FAIL] %-18s status=%d\n", r.Customer, r.StatusCode)
		}
	}

	after, err := fetchBook(client, serverAddr, bookID)
	if err != nil {
		log.Fatalf("reload book: %v", err)
	}

	fmt.Printf("\n--- Summary ---\n")
	fmt.Printf("Lent     : %d\n", lent)
	fmt.Printf("Refused  : %d\n", refused)
	fmt.Printf("Failures : %d\n", failures)
	fmt.Printf("Copies   : %d -> %d (%s)\n\n", before.Copies, after.Copies, after.Status)

	ok := true
	if after.Copies < 0 {
		fmt.Println("[BROKEN] copy count went negative")
		ok = false
	}
	if lent > before.Copies {
		fmt.Printf("[BROKEN] %d loans issued for %d copies\n", lent, before.Copies)
		ok = false
	}
	if before.Copies-lent != after.Copies {
		fmt.Printf("[BROKEN] expected %d copies left, found %d\n", before.Copies-lent, after.Copies)
		ok = false
	}
	if after.Copies == 0 && after.Status != "borrow_out" {
		fmt.Printf("[BROKEN] empty shelf but status is %s\n", after.Status)
		ok = false
	}
	if !ok || failures > 0 {
		os.Exit(1)
	}
	fmt.Println("Copy accounting is consistent.")
}

// attemptBorrow sends POST /api/books/{bookID}/borrow for a walk-in customer.
func attemptBorrow(client *http.Client, serverAddr, bookID, customer string) borrowResult {
	url := fmt.Sprintf("%s/api/books/%s/borrow", serverAddr, bookID)
	body, _ := json.Marshal(map[string]any{"customer_name": customer, "borrow_period": 7})

	resp, err := client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return borrowResult{Customer: customer, Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return borrowResult{Customer: customer, StatusCode: resp.StatusCode}
}

func fetchBook(client *http.Client, serverAddr, bookID string) (bookView, error) {
	resp, err := client.Get(fmt.Sprintf("%s/api/books/%s", serverAddr, bookID))
	if err != nil {
		return bookView{}, err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return bookView{}, fmt.Errorf("status %d: %s", resp.StatusCode, raw)
	}
	var b bookView
	if err := json.Unmarshal(raw, &b); err != nil {
		return bookView{}, fmt.Errorf("bad JSON: %s", raw)
	}
	return b, nil
}
