package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/campushq/edu-portal-api/internal/models"
	"github.com/campushq/edu-portal-api/pkg/session"
)

const usage = `portalctl drives a portal session from the command line.

Usage:
  portalctl [flags] <command> [args]

Commands:
  login <email> <password>                      sign in and persist the session
  register <email> <password> <name> <role>     create an account and sign in
  whoami                                        print the signed-in user
  status                                        print the session state
  logout                                        clear the persisted session

Flags:
  -url string   API base URL (default "http://localhost:8080/api/v1")
  -dir string   session directory (default ~/.edu-portal)
`

func main() {
	baseURL := flag.String("url", "http://localhost:8080/api/v1", "API base URL")
	dir := flag.String("dir", "", "session directory")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	store, err := session.NewFileStore(*dir)
	if err != nil {
		fatal("open session store: %v", err)
	}

	client := session.New(session.NewHTTPAPI(*baseURL, nil), store)
	client.Bootstrap()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch cmd := flag.Arg(0); cmd {
	case "login":
		if flag.NArg() != 3 {
			fatal("usage: portalctl login <email> <password>")
		}
		if err := client.SignIn(ctx, flag.Arg(1), flag.Arg(2)); err != nil {
			fatal("login failed: %v", err)
		}
		printUser(client.CurrentUser())

	case "register":
		if flag.NArg() != 5 {
			fatal("usage: portalctl register <email> <password> <name> <role>")
		}
		req := models.RegisterRequest{
			Email:    flag.Arg(1),
			Password: flag.Arg(2),
			FullName: flag.Arg(3),
			Role:     models.UserRole(flag.Arg(4)),
		}
		if err := client.SignUp(ctx, req); err != nil {
			fatal("register failed: %v", err)
		}
		printUser(client.CurrentUser())

	case "whoami":
		user := client.CurrentUser()
		if user == nil {
			fatal("not signed in")
		}
		printUser(user)

	case "status":
		fmt.Println(client.State())

	case "logout":
		if err := client.SignOut(); err != nil {
			fatal("logout failed: %v", err)
		}
		fmt.Println("signed out")

	default:
		fatal("unknown command %q", cmd)
	}
}

func printUser(u *models.UserView) {
	if u == nil {
		return
	}
	fmt.Printf("%s <%s> (%s)\n", u.FullName, u.Email, u.Role)
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
