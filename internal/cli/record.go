package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/streamkit/memstore/internal/model"
	"github.com/streamkit/memstore/internal/retrieval"
)

func init() {
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record a user/assistant exchange",
		Long:  "Store one exchange as a conversation memory and fold it into the user's profile.",
		Run:   runRecord,
	}

	cmd.Flags().StringP("user", "u", "", "User name (required)")
	cmd.Flags().StringP("message", "m", "", "User message (required)")
	cmd.Flags().StringP("response", "r", "", "Assistant response (required)")
	cmd.Flags().StringP("emotion", "e", "", "Emotion label")
	cmd.Flags().StringP("importance", "i", "medium", "Importance: low, medium, high, critical")

	cmd.MarkFlagRequired("user")
	cmd.MarkFlagRequired("message")
	cmd.MarkFlagRequired("response")

	RootCmd.AddCommand(cmd)
}

func runRecord(cmd *cobra.Command, args []string) {
	user, _ := cmd.Flags().GetString("user")
	message, _ := cmd.Flags().GetString("message")
	response, _ := cmd.Flags().GetString("response")
	emotion, _ := cmd.Flags().GetString("emotion")
	importance, _ := cmd.Flags().GetString("importance")

	cfg, err := retrieval.ConfigFromEnv()
	if err != nil {
		exitErr("config", err)
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	id, err := retrieval.New(s, cfg).StoreInteraction(cmd.Context(), retrieval.Interaction{
		UserName:    user,
		UserMessage: message,
		AIResponse:  response,
		Emotion:     emotion,
		Importance:  model.Importance(importance),
	})
	if err != nil {
		exitErr("record", err)
	}

	b, _ := json.Marshal(map[string]string{"id": id})
	fmt.Println(string(b))
}
