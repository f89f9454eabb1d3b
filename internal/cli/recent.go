package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/streamkit/memstore/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "recent",
		Short: "List recent memories",
		Long:  "List memories newest first. With --user, lists that user's memories instead.",
		Run:   runRecent,
	}

	cmd.Flags().IntP("limit", "l", 10, "Max results")
	cmd.Flags().StringP("type", "t", "", "Filter by memory type")
	cmd.Flags().StringP("user", "u", "", "List memories for this user")

	RootCmd.AddCommand(cmd)
}

func runRecent(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")
	memoryType, _ := cmd.Flags().GetString("type")
	user, _ := cmd.Flags().GetString("user")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	var entries []model.Entry
	if user != "" {
		entries, err = s.ByUser(cmd.Context(), user, limit)
	} else {
		entries, err = s.Recent(cmd.Context(), limit, model.MemoryType(memoryType))
	}
	if err != nil {
		exitErr("recent", err)
	}

	if len(entries) == 0 {
		fmt.Println("[]")
		return
	}

	b, _ := json.MarshalIndent(entries, "", "  ")
	fmt.Println(string(b))
}
