package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"commentwatch/internal/config"
	"commentwatch/internal/mail"
	"commentwatch/internal/match"
	"commentwatch/internal/queue"
	"commentwatch/internal/redis"
	"commentwatch/internal/server"
	"commentwatch/internal/service"
	"commentwatch/internal/store"
	httpapi "commentwatch/internal/transport/http"
	"commentwatch/internal/worker"
	"commentwatch/internal/youtube"
)

func main() {
	searchURL := flag.String("search", "", "run a one-off comment search for this video URL and exit")
	searchPhrases := flag.String("phrases", "", "comma-separated phrases for -search mode")
	flag.Parse()

	cfg := config.Load()

	if *searchURL != "" {
		runSearch(cfg, *searchURL, *searchPhrases)
		return
	}

	slog.Info("starting commentwatch", "addr", cfg.HTTPAddr, "store", cfg.StoreMode)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := store.New(ctx, cfg)
	if err != nil {
		slog.Error("failed to open job store", "err", err)
		os.Exit(1)
	}
	defer st.Close()

	var cache *redis.Service
	if cfg.RedisURL != "" {
		cache, err = redis.New(cfg.RedisURL, cfg.CommentCacheTTL)
		if err != nil {
			slog.Error("failed to connect to Redis", "err", err)
			os.Exit(1)
		}
		defer cache.Close()
		slog.Info("comment cache enabled", "ttl", cfg.CommentCacheTTL)
	}

	var commentCache youtube.Cache
	if cache != nil {
		commentCache = cache
	}
	source := youtube.NewClient(cfg.FetchTimeout, commentCache)
	mailer := mail.NewMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.MailFrom)

	q := queue.New(st)
	recovered, err := q.Recover(ctx)
	if err != nil {
		slog.Error("failed to recover queue", "err", err)
		os.Exit(1)
	}
	slog.Info("queue recovered", "jobs", recovered)

	w := worker.New(st, q, source, mailer, worker.Config{
		FetchTimeout: cfg.FetchTimeout,
		SendTimeout:  cfg.SendTimeout,
	})
	w.Start(ctx)

	handlers := &httpapi.Handlers{
		Service: service.New(st, q),
		Store:   st,
		Queue:   q,
		Redis:   cache,
		Config:  cfg,
	}
	r := server.NewRouter(handlers)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  90 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	<-ch
	slog.Info("shutting down")

	shCtx, shCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shCancel()
	_ = srv.Shutdown(shCtx)

	q.Close()
	cancel()
	w.Stop()
}

// runSearch fetches and matches comments inline, without the server or
// the store. Handy for trying out phrase sets.
func runSearch(cfg config.Config, videoURL, phrasesCSV string) {
	var phrases []string
	for _, p := range strings.Split(phrasesCSV, ",") {
		if p = strings.TrimSpace(p); p != "" {
			phrases = append(phrases, p)
		}
	}
	if len(phrases) == 0 {
		fmt.Fprintln(os.Stderr, "no phrases given, use -phrases \"a,b\"")
		os.Exit(2)
	}

	fmt.Printf("Searching for comments that include all of: %s\n", strings.Join(phrases, ", "))
	fmt.Printf("In the comments from: %s\n\n", videoURL)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.FetchTimeout)
	defer cancel()

	client := youtube.NewClient(cfg.FetchTimeout, nil)
	comments, err := client.FetchComments(ctx, videoURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to fetch comments: %v\n", err)
		os.Exit(1)
	}

	matches := match.FilterComments(comments, phrases, videoURL)
	if len(matches) == 0 {
		fmt.Println("No comments match all the phrases. Try different phrases or another video.")
		return
	}

	fmt.Printf("Found %d comment(s) containing all the specified phrases:\n\n", len(matches))
	for i, m := range matches {
		fmt.Printf("=== Match #%d ===\n", i+1)
		fmt.Printf("Comment by   : %s\n", m.Comment.Author)
		fmt.Printf("Comment text : %s\n", m.Comment.Text)
		fmt.Printf("Comment link : %s\n", m.Link)
		for _, ts := range m.Timestamps {
			fmt.Printf("Timestamp    : %s -> %s\n", ts.Text, ts.Link)
		}
		fmt.Println()
	}
}
