// memseed bulk-loads facts into a user's long-term memory. Each non-empty
// line of the input file becomes one stored exchange, paced so the memory
// service's rate limits are not tripped.
package main

import (
	"bufio"
	"context"
	"flag"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/elacava/principia/internal/config"
	"github.com/elacava/principia/internal/history"
	"github.com/elacava/principia/internal/memos"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	var (
		file        = flag.String("file", "", "path to a text file with one fact per line")
		namespaceID = flag.String("namespace", "", "memory namespace to write into (the user's memos id)")
		convID      = flag.String("conversation", "history_injection_01", "conversation id to file the facts under")
		pause       = flag.Duration("pause", time.Second, "delay between writes")
	)
	flag.Parse()

	if *file == "" || *namespaceID == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Error("config error", "error", err)
		os.Exit(1)
	}
	if strings.TrimSpace(cfg.MemosBaseURL) == "" {
		logger.Error("MEMOS_BASE_URL must be set")
		os.Exit(1)
	}

	client := memos.NewClient(memos.ClientConfig{
		BaseURL: cfg.MemosBaseURL,
		APIKey:  cfg.MemosAPIKey,
		Timeout: cfg.MemosTimeout,
	}, logger, nil)

	f, err := os.Open(*file)
	if err != nil {
		logger.Error("open input", "error", err)
		os.Exit(1)
	}
	defer f.Close()

	ctx := context.Background()
	seeded, failed := 0, 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		messages := []memos.Message{
			{Role: history.RoleUser, Content: "Remember this fact about yourself: " + line},
			{Role: history.RoleAssistant, Content: "I have committed it to memory."},
		}
		if err := client.Write(ctx, *namespaceID, *convID, messages); err != nil {
			logger.Warn("write failed", "fact", truncate(line, 40), "error", err)
			failed++
		} else {
			seeded++
			logger.Info("seeded", "fact", truncate(line, 40))
		}
		time.Sleep(*pause)
	}
	if err := scanner.Err(); err != nil {
		logger.Error("read input", "error", err)
		os.Exit(1)
	}

	logger.Info("done", "seeded", seeded, "failed", failed)
	if failed > 0 {
		os.Exit(1)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
