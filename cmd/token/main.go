// Command token mints an operator access token signed with JWT_SECRET.
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/brandpilot/brandpilot/application/port/outbound"
	"github.com/brandpilot/brandpilot/infrastructure/config"
	"github.com/brandpilot/brandpilot/infrastructure/service/jwt"
)

func main() {
	operator := flag.String("operator", "", "operator id recorded as decided_by on approvals")
	role := flag.String("role", "approver", "operator role")
	channel := flag.String("channel", "api", "channel the operator acts through")
	flag.Parse()

	if *operator == "" {
		log.Fatal("-operator is required")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	tokens, err := jwt.NewOperatorTokenService(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize token service: %v", err)
	}

	token, err := tokens.GenerateAccessToken(outbound.TokenClaims{
		OperatorID: *operator,
		Role:       *role,
		Channel:    *channel,
	})
	if err != nil {
		log.Fatalf("Failed to sign token: %v", err)
	}
	fmt.Println(token)
}
