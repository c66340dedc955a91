package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"room-chat/auth"
	"room-chat/domain"
)

// Prints a signed token for the chat server, for local testing.
func main() {
	secret := flag.String("secret", os.Getenv("JWT_SECRET"), "HS256 secret shared with the server")
	id := flag.String("id", "", "identity id claim")
	name := flag.String("name", "", "display name claim")
	roles := flag.String("roles", "", "comma separated roles")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	if *secret == "" || *id == "" {
		fmt.Fprintln(os.Stderr, "usage: token -secret <secret> -id <id> [-name <name>] [-ttl 24h]")
		os.Exit(2)
	}

	var roleList []string
	if *roles != "" {
		roleList = strings.Split(*roles, ",")
	}
	token, err := auth.NewIssuer([]byte(*secret)).
		GenerateToken(domain.Identity{ID: domain.IdentityID(*id), DisplayName: *name}, roleList, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "token error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
