// Package main provides a CLI tool for generating test session cookies for
// the storegate gateway. These use dev signing keys and will NOT work in
// production.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"storegate/internal/captoken/models"
	tokenservice "storegate/internal/captoken/service"
	"storegate/internal/session"
)

const (
	// Dev keys - match config.go when the secrets are not set
	devSessionKey     = "dev-session-key-change-in-production"
	devTokenSecret    = "dev-token-secret-change-in-production"
	defaultSessionTTL = 24 * time.Hour
)

type sessionOutput struct {
	Cookie    string         `json:"cookie"`
	ExpiresIn string         `json:"expires_in"`
	Claims    map[string]any `json:"claims"`
	Usage     string         `json:"usage"`
}

func main() {
	sessionCmd := flag.NewFlagSet("session", flag.ExitOnError)
	hashCmd := flag.NewFlagSet("hash", flag.ExitOnError)

	sessUserID := sessionCmd.String("user-id", "", "User ID (UUID). Generated if empty.")
	sessTenantID := sessionCmd.String("tenant-id", "", "Tenant ID (UUID, optional). Empty means pre-onboarding.")
	sessTTL := sessionCmd.Duration("ttl", defaultSessionTTL, "Session time-to-live")
	sessKey := sessionCmd.String("key", devSessionKey, "HS256 verification key")
	sessJSON := sessionCmd.Bool("json", false, "Output as JSON")

	hashSecret := hashCmd.String("secret", devTokenSecret, "Token hash master secret")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "session":
		sessionCmd.Parse(os.Args[2:])
		generateSession(*sessUserID, *sessTenantID, *sessTTL, *sessKey, *sessJSON)
	case "hash":
		hashCmd.Parse(os.Args[2:])
		hashToken(hashCmd.Args(), *hashSecret)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`tokengen - Generate test credentials for the storegate gateway

WARNING: These credentials use dev signing keys and will NOT work in
         production. Only use for local development and testing.

Usage:
  tokengen <command> [flags]

Commands:
  session   Generate a signed session cookie value (JWT)
  hash      Compute the stored hash of a capability-token plaintext

Examples:
  # Signed-out-of-onboarding session (no tenant claim)
  tokengen session

  # Session attached to a tenant
  tokengen session -tenant-id "550e8400-e29b-41d4-a716-446655440000"

  # Look up what hash a pasted magic-link token maps to
  tokengen hash "<plaintext>"

Use "tokengen <command> -h" for more information about a command.`)
}

func generateSession(userID, tenantID string, ttl time.Duration, key string, jsonOutput bool) {
	uid := parseOrGenerateUUID(userID, "user-id")
	sid := uuid.New()

	claims := jwt.MapClaims{
		"sub": uid.String(),
		"sid": sid.String(),
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(ttl).Unix(),
	}
	if tenantID != "" {
		tid := parseOrGenerateUUID(tenantID, "tenant-id")
		claims["tid"] = tid.String()
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error signing session: %v\n", err)
		os.Exit(1)
	}

	if jsonOutput {
		printJSON(sessionOutput{
			Cookie:    token,
			ExpiresIn: ttl.String(),
			Claims:    map[string]any(claims),
			Usage:     fmt.Sprintf("Cookie: %s=<cookie>", session.CookieName),
		})
		return
	}

	fmt.Println("Session Cookie (JWT)")
	fmt.Println("====================")
	fmt.Printf("Expires In: %s\n", ttl)
	fmt.Printf("User ID:    %s\n", uid)
	fmt.Printf("Session ID: %s\n", sid)
	if tenantID != "" {
		fmt.Printf("Tenant ID:  %s\n", tenantID)
	}
	fmt.Println()
	fmt.Println("Cookie value:")
	fmt.Println(token)
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Printf("  curl -H \"Cookie: %s=<cookie>\" http://localhost:8080/...\n", session.CookieName)
}

func hashToken(args []string, secret string) {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "Usage: tokengen hash <plaintext>")
		os.Exit(1)
	}
	hasher, err := tokenservice.NewHasher(secret)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building hasher: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(hasher.Hash(models.Plaintext(args[0])))
}

func parseOrGenerateUUID(input, fieldName string) uuid.UUID {
	if input == "" {
		return uuid.New()
	}
	parsed, err := uuid.Parse(input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid %s UUID: %s\n", fieldName, input)
		os.Exit(1)
	}
	return parsed
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
		os.Exit(1)
	}
}
