package main

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/upb/faq-rag/config"
	"github.com/upb/faq-rag/middleware"
)

var (
	tokenSubject string
	tokenTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an admin token for the management endpoints",
	Long:  `Signs an admin bearer token with ADMIN_JWT_SECRET.`,
	Args:  cobra.NoArgs,
	RunE:  runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "admin", "token subject")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, _ []string) error {
	_ = godotenv.Load(".env")
	cfg := config.Load()

	token, err := middleware.IssueToken(cfg.Auth.JWTSecret, cfg.Auth.Issuer, tokenSubject, middleware.RoleAdmin, tokenTTL)
	if err != nil {
		return err
	}
	cmd.Println(token)
	return nil
}
