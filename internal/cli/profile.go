package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "profile [user]",
		Short: "Show a user profile",
		Args:  cobra.ExactArgs(1),
		Run:   runProfile,
	}

	RootCmd.AddCommand(cmd)
}

func runProfile(cmd *cobra.Command, args []string) {
	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	profile, err := s.GetUserProfile(cmd.Context(), args[0])
	if err != nil {
		exitErr("profile", err)
	}
	if profile == nil {
		fmt.Println("null")
		return
	}

	b, _ := json.MarshalIndent(profile, "", "  ")
	fmt.Println(string(b))
}
