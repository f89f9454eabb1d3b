package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "List known users",
		Long:  "List user profiles ordered by most recently seen.",
		Run:   runUsers,
	}

	cmd.Flags().IntP("limit", "l", 50, "Max results")

	RootCmd.AddCommand(cmd)
}

func runUsers(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	profiles, err := s.Users(cmd.Context(), limit)
	if err != nil {
		exitErr("users", err)
	}

	if len(profiles) == 0 {
		fmt.Println("[]")
		return
	}

	b, _ := json.MarshalIndent(profiles, "", "  ")
	fmt.Println(string(b))
}
