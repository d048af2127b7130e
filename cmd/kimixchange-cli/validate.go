package main

import (
	"context"
	"fmt"

	"github.com/fpang/kimixchange/internal/auth"
	"github.com/fpang/kimixchange/internal/cli"
	"github.com/fpang/kimixchange/internal/logging"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check that the Gemini API key works",
	Run: func(cmd *cobra.Command, args []string) {
		logging.Init()
		apiKey, err := auth.GetAPIKey()
		if err != nil {
			cli.HandleValidationError(&auth.ValidationError{Type: auth.ErrTypeNoKey, Message: err.Error(), Err: err})
		}
		cli.ValidateKey(context.Background(), apiKey)
		fmt.Println("API key is valid.")
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
