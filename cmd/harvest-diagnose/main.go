// Command harvest-diagnose fetches every source in a harvest configuration
// file and reports, per source, whether it responded, how long it took, and
// (for RSS-formatted sources) how many feed items it returned. It is a
// standalone operational check, independent of the scheduled harvestd run.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/mmcdole/gofeed"

	"webharvest/internal/config"
)

// SourceDiagnostic is the per-source result of a single diagnostic fetch.
type SourceDiagnostic struct {
	Name          string `json:"name"`
	URL           string `json:"url"`
	Kind          string `json:"kind"`
	Format        string `json:"format,omitempty"`
	Status        string `json:"status"` // OK, HTTP_ERROR, TIMEOUT, READ_ERROR, PARSE_ERROR, EMPTY, REQUEST_ERROR
	HTTPCode      int    `json:"http_code,omitempty"`
	ItemCount     int    `json:"item_count,omitempty"`
	ErrorMessage  string `json:"error_message,omitempty"`
	ResponseTime  int64  `json:"response_time_ms"`
	ContentLength int64  `json:"content_length,omitempty"`
}

func main() {
	configPath := flag.String("config", "config/harvest.yaml", "path to harvest configuration")
	timeout := flag.Duration("timeout", 30*time.Second, "per-source request timeout")
	delay := flag.Duration("delay", 500*time.Millisecond, "delay between source requests")
	flag.Parse()

	cfg, err := config.LoadHarvestConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load harvest configuration: %v", err)
	}

	log.Printf("diagnosing %d sources from %s", len(cfg.Sources), *configPath)

	diagnostics := make([]SourceDiagnostic, 0, len(cfg.Sources))
	for i, src := range cfg.Sources {
		log.Printf("[%d/%d] %s", i+1, len(cfg.Sources), src.Name)
		diagnostics = append(diagnostics, diagnoseSource(src, *timeout))
		if i < len(cfg.Sources)-1 {
			time.Sleep(*delay)
		}
	}

	printSummary(diagnostics)
	if err := writeJSONReport(diagnostics); err != nil {
		log.Printf("failed to write JSON report: %v", err)
	}
}

func diagnoseSource(src config.SourceConfig, timeout time.Duration) SourceDiagnostic {
	diag := SourceDiagnostic{Name: src.Name, URL: src.URL, Kind: src.Kind, Format: src.Format}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		diag.Status = "REQUEST_ERROR"
		diag.ErrorMessage = err.Error()
		return diag
	}
	req.Header.Set("User-Agent", "HarvestDiagnostic/1.0")

	client := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}

	start := time.Now()
	resp, err := client.Do(req)
	diag.ResponseTime = time.Since(start).Milliseconds()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			diag.Status = "TIMEOUT"
			diag.ErrorMessage = fmt.Sprintf("request timeout after %v", timeout)
		} else {
			diag.Status = "HTTP_ERROR"
			diag.ErrorMessage = err.Error()
		}
		return diag
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			log.Printf("failed to close response body for %s: %v", src.Name, cerr)
		}
	}()

	diag.HTTPCode = resp.StatusCode
	diag.ContentLength = resp.ContentLength
	if resp.StatusCode != http.StatusOK {
		diag.Status = "HTTP_ERROR"
		diag.ErrorMessage = fmt.Sprintf("HTTP %d: %s", resp.StatusCode, resp.Status)
		return diag
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		diag.Status = "READ_ERROR"
		diag.ErrorMessage = err.Error()
		return diag
	}

	if src.Format != "rss" {
		diag.Status = "OK"
		return diag
	}

	feed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		diag.Status = "PARSE_ERROR"
		diag.ErrorMessage = err.Error()
		return diag
	}
	diag.ItemCount = len(feed.Items)
	if diag.ItemCount == 0 {
		diag.Status = "EMPTY"
		diag.ErrorMessage = "feed has no items"
		return diag
	}
	diag.Status = "OK"
	return diag
}

func printSummary(diagnostics []SourceDiagnostic) {
	ok := 0
	for _, d := range diagnostics {
		if d.Status == "OK" {
			ok++
		}
		fmt.Printf("%-30s %-12s %6dms  %s\n", d.Name, d.Status, d.ResponseTime, d.ErrorMessage)
	}
	fmt.Printf("\n%d/%d sources OK\n", ok, len(diagnostics))
}

func writeJSONReport(diagnostics []SourceDiagnostic) error {
	f, err := os.Create("harvest-diagnostic-report.json")
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(diagnostics)
}
