package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/streamkit/memstore/internal/retrieval"
)

func init() {
	cmd := &cobra.Command{
		Use:   "context [query]",
		Short: "Build a context block for a query",
		Long:  "Rank memories against the query and print the assembled prompt context block.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runContext,
	}

	cmd.Flags().StringP("user", "u", "", "User asking the query")

	RootCmd.AddCommand(cmd)
}

func runContext(cmd *cobra.Command, args []string) {
	user, _ := cmd.Flags().GetString("user")
	query := strings.Join(args, " ")

	cfg, err := retrieval.ConfigFromEnv()
	if err != nil {
		exitErr("config", err)
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	block := retrieval.New(s, cfg).RetrieveContext(cmd.Context(), query, user)
	if block == "" {
		return
	}
	fmt.Println(block)
}
