package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"tolkuchka/internal/client"
	"tolkuchka/internal/config"
)

var errQuit = errors.New("quit")

func run(ctx context.Context) error {
	user := flag.String("user", "", "handle to chat as")
	to := flag.String("to", "", "partner to open a conversation with (lists partners when empty)")
	flag.Parse()

	if *user == "" {
		return errors.New("-user is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	cl, err := client.New(ctx, cfg, *user)
	if err != nil {
		return err
	}

	if *to == "" {
		return listPartners(ctx, cl)
	}

	return chat(ctx, cl, *to)
}

func listPartners(ctx context.Context, cl *client.Client) error {
	summaries := cl.ListPartnerSummaries(ctx)
	if len(summaries) == 0 {
		fmt.Println("no conversations yet")
		return nil
	}

	for _, s := range summaries {
		preview := s.LastMessage
		if preview == "" {
			preview = "(no messages)"
		}
		fmt.Printf("%-20s %s\n", s.Handle, preview)
	}
	return nil
}

func chat(ctx context.Context, cl *client.Client, partner string) error {
	conv, err := cl.OpenConversation(ctx, partner)
	if err != nil {
		return err
	}
	defer cl.CloseConversation()

	fmt.Printf("chatting with %s (/quit to exit)\n", partner)

	g, gCtx := errgroup.WithContext(ctx)

	// Render new log entries as they land.
	g.Go(func() error {
		seen := 0
		for {
			select {
			case <-gCtx.Done():
				return nil
			case <-conv.Updates():
			}

			messages := conv.Messages()
			for _, m := range messages[seen:] {
				who := m.User
				if who == cl.Handle() {
					who = "you"
				}
				fmt.Printf("[%s] %s\n", who, m.Text)
			}
			seen = len(messages)
		}
	})

	// Read stdin and send.
	g.Go(func() error {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "/quit" {
				return errQuit
			}
			cl.SendText(line)

			select {
			case <-gCtx.Done():
				return nil
			default:
			}
		}
		return scanner.Err()
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errQuit) {
		return err
	}
	return nil
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("tolkuchka error")
	}
}
