package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"campusrag/internal/config"
	"campusrag/internal/pkg/jwtutil"
)

var (
	tokenUserID uint
	tokenRole   string
	tokenTTL    time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a signed token for local testing",
	Long: `Prints a token signed with auth.jwt_secret. Send it as
"Authorization: Bearer <token>" or in the auth-token cookie.`,
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().UintVar(&tokenUserID, "user", 1, "user id carried by the token")
	tokenCmd.Flags().StringVar(&tokenRole, "role", jwtutil.RoleStudent, "ADMIN or STUDENT")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "validity, defaults to auth.jwt_expire_minute")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config failed: %w", err)
	}

	role := strings.ToUpper(tokenRole)
	if role != jwtutil.RoleAdmin && role != jwtutil.RoleStudent {
		return fmt.Errorf("unknown role %q", tokenRole)
	}
	ttl := tokenTTL
	if ttl <= 0 {
		ttl = cfg.JWTTTL()
	}

	tok, err := jwtutil.GenerateToken(cfg.Auth.JWTSecret, tokenUserID, role, ttl)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), tok)
	return err
}
