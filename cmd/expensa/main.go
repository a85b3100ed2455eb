package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"runtime/debug"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/expensahq/expensa-go/client"
	"github.com/expensahq/expensa-go/internal/config"
	"github.com/expensahq/expensa-go/session"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error: %s\n", err)
	}
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	_ = godotenv.Load()
	c := config.New()
	configureLogging(c.GetLogLevel())
	displayAppname(c.GetAppName())

	sdk, err := client.New(c)
	if err != nil {
		return err
	}

	cancel := sdk.Observe(func(s session.Session) {
		log.Printf("Session: %s\n", s.Status)
	})
	defer cancel()

	ctx := context.Background()
	if err := sdk.Initialize(ctx); err != nil {
		log.Printf("No session restored: %s\n", err)
	}

	if !sdk.Session().Authenticated() {
		email := os.Getenv("EXPENSA_EMAIL")
		password := os.Getenv("EXPENSA_PASSWORD")
		if email == "" || password == "" {
			return errors.New("set EXPENSA_EMAIL and EXPENSA_PASSWORD to log in")
		}
		if _, err := sdk.Login(ctx, email, password); err != nil {
			return err
		}
	}

	current := sdk.Session()
	fmt.Printf("Logged in as %s\n", current.User.FullName())
	for _, membership := range current.Tenants {
		marker := " "
		if current.ActiveTenant != nil && membership.ID == current.ActiveTenant.ID {
			marker = "*"
		}
		fmt.Printf(" %s %s (%s) role=%s\n", marker, membership.Name, membership.ID, membership.Role)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.GetAPIBaseURL()+"/matches/stats", nil)
	if err != nil {
		return err
	}
	resp, err := sdk.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	fmt.Printf("GET /matches/stats -> %s\n", resp.Status)

	return nil
}

func configureLogging(level string) {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		parsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(parsed)
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
