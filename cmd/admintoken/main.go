/*
Command admintoken mints a bearer token for the /admin routes.

	ADMIN_JWT_SECRET=... admintoken -sub alice -ttl 12h

The secret is read from the same environment variable the server uses.
*/
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"strangerchat/internal/pkg/auth/jwt"
)

func main() {
	subject := flag.String("sub", "admin", "token subject, recorded in admin action logs")
	ttl := flag.Duration("ttl", jwt.AdminTokenExpiration, "token lifetime")
	flag.Parse()

	secret := os.Getenv("ADMIN_JWT_SECRET")
	if secret == "" {
		fmt.Fprintln(os.Stderr, "FATAL: ADMIN_JWT_SECRET is not set")
		os.Exit(1)
	}
	if *ttl <= 0 || *ttl > 30*24*time.Hour {
		fmt.Fprintf(os.Stderr, "FATAL: ttl %s must be between 0 and 720h\n", *ttl)
		os.Exit(1)
	}

	token, err := jwt.GenerateToken(*subject, jwt.RoleAdmin, secret, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to sign token: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(token)
}
