// Package main generates device tokens and prints the admin token for local
// development against qrpass. Tokens are signed with the dev key by default
// and will not validate against a production deployment.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	jwttoken "qrpass/internal/jwt_token"
	"qrpass/pkg/platform/middleware/auth"
)

const (
	// Matches config.go when QRPASS_SERVER_JWT_SIGNING_KEY is not set.
	devSigningKey = "dev-secret-key-change-in-production"

	defaultIssuer   = "qrpass"
	defaultAudience = "qrpass-devices"
	defaultTokenTTL = 30 * 24 * time.Hour
	adminTokenEnv   = "QRPASS_SERVER_ADMIN_TOKEN"
)

type tokenOutput struct {
	Token     string            `json:"token"`
	Type      string            `json:"type"`
	ExpiresIn string            `json:"expires_in,omitempty"`
	Claims    map[string]any    `json:"claims,omitempty"`
	Usage     map[string]string `json:"usage"`
}

func main() {
	deviceCmd := flag.NewFlagSet("device", flag.ExitOnError)
	adminCmd := flag.NewFlagSet("admin", flag.ExitOnError)

	deviceID := deviceCmd.String("device-id", "", "Device ID. Generated if empty.")
	deviceRole := deviceCmd.String("role", auth.RoleOwner, "Device role: owner or scanner")
	deviceTTL := deviceCmd.Duration("ttl", defaultTokenTTL, "Token time-to-live")
	deviceKey := deviceCmd.String("key", devSigningKey, "JWT signing key")
	deviceIssuer := deviceCmd.String("issuer", defaultIssuer, "JWT issuer")
	deviceJSON := deviceCmd.Bool("json", false, "Output as JSON")

	adminJSON := adminCmd.Bool("json", false, "Output as JSON")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "device":
		_ = deviceCmd.Parse(os.Args[2:])
		generateDeviceToken(*deviceID, *deviceRole, *deviceKey, *deviceIssuer, *deviceTTL, *deviceJSON)
	case "admin":
		_ = adminCmd.Parse(os.Args[2:])
		showAdminToken(*adminJSON)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`tokengen - Generate development tokens for qrpass

WARNING: Tokens use the dev signing key unless -key is given.
         Only use for local development and testing.

Usage:
  tokengen <command> [flags]

Commands:
  device    Generate a device bearer token (JWT)
  admin     Show the admin API token

Examples:
  # Owner token for a generated device id
  tokengen device

  # Scanner token for a known device
  tokengen device -device-id gate-1 -role scanner

  # Get admin token for X-Admin-Token header
  tokengen admin

Use "tokengen <command> -h" for more information about a command.`)
}

func generateDeviceToken(deviceID, role, key, issuer string, ttl time.Duration, jsonOutput bool) {
	if deviceID == "" {
		deviceID = uuid.NewString()
	}
	svc := jwttoken.NewJWTService(key, issuer, defaultAudience, ttl)

	token, err := svc.GenerateDeviceToken(context.Background(), deviceID, role)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating token: %v\n", err)
		os.Exit(1)
	}

	if jsonOutput {
		printJSON(tokenOutput{
			Token:     token,
			Type:      "device_token",
			ExpiresIn: ttl.String(),
			Claims: map[string]any{
				"device_id": deviceID,
				"role":      role,
				"iss":       issuer,
				"aud":       defaultAudience,
			},
			Usage: map[string]string{
				"header": "Authorization: Bearer <token>",
			},
		})
		return
	}

	fmt.Println("Device Token (JWT)")
	fmt.Println("==================")
	fmt.Printf("Device ID:  %s\n", deviceID)
	fmt.Printf("Role:       %s\n", role)
	fmt.Printf("Expires In: %s\n", ttl)
	fmt.Println()
	fmt.Println("Token:")
	fmt.Println(token)
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  curl -H \"Authorization: Bearer <token>\" http://localhost:8080/credentials?mobile=9876543210")
}

func showAdminToken(jsonOutput bool) {
	token := os.Getenv(adminTokenEnv)
	if token == "" {
		fmt.Fprintf(os.Stderr, "%s is not set; admin routes reject every request without it\n", adminTokenEnv)
		os.Exit(1)
	}
	if jsonOutput {
		printJSON(tokenOutput{
			Token: token,
			Type:  "admin_token",
			Usage: map[string]string{
				"header": "X-Admin-Token: " + token,
				"actor":  "X-Admin-Actor: <name recorded in audit events>",
			},
		})
		return
	}
	fmt.Println("Admin API Token")
	fmt.Println("===============")
	fmt.Printf("Token: %s\n", token)
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  curl -H \"X-Admin-Token: " + token + "\" -H \"X-Admin-Actor: ops\" http://localhost:8080/admin/devices")
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
		os.Exit(1)
	}
}
