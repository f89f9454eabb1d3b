package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/streamkit/memstore/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "remember [content]",
		Short: "Store a memory",
		Long:  "Store a memory. Content can be a positional arg or piped via stdin.",
		Run:   runRemember,
	}

	cmd.Flags().StringP("type", "t", "conversation", "Memory type: conversation, user_info, topic, fact, preference")
	cmd.Flags().StringP("user", "u", "", "User the memory belongs to")
	cmd.Flags().StringP("importance", "i", "medium", "Importance: low, medium, high, critical")
	cmd.Flags().StringP("keywords", "k", "", "Comma-separated keywords (extracted from content when empty)")
	cmd.Flags().StringP("emotion", "e", "", "Emotion label")
	cmd.Flags().String("meta", "", "JSON metadata object")

	RootCmd.AddCommand(cmd)
}

func runRemember(cmd *cobra.Command, args []string) {
	memoryType, _ := cmd.Flags().GetString("type")
	user, _ := cmd.Flags().GetString("user")
	importance, _ := cmd.Flags().GetString("importance")
	keywordsStr, _ := cmd.Flags().GetString("keywords")
	emotion, _ := cmd.Flags().GetString("emotion")
	meta, _ := cmd.Flags().GetString("meta")

	// Content: positional arg first, then check stdin.
	var content string
	if len(args) > 0 {
		content = strings.Join(args, " ")
	} else {
		stat, _ := os.Stdin.Stat()
		if (stat.Mode() & os.ModeCharDevice) == 0 {
			b, err := io.ReadAll(os.Stdin)
			if err != nil {
				exitErr("read stdin", err)
			}
			content = string(b)
		}
	}

	if strings.TrimSpace(content) == "" {
		exitErr("remember", fmt.Errorf("content is required (positional arg or stdin)"))
	}

	var keywords []string
	if keywordsStr != "" {
		for _, k := range strings.Split(keywordsStr, ",") {
			k = strings.TrimSpace(k)
			if k != "" {
				keywords = append(keywords, k)
			}
		}
	}

	var metadata map[string]string
	if meta != "" {
		if err := json.Unmarshal([]byte(meta), &metadata); err != nil {
			exitErr("parse meta", err)
		}
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	entry := &model.Entry{
		Type:       model.MemoryType(memoryType),
		Content:    strings.TrimSpace(content),
		UserName:   user,
		Keywords:   keywords,
		Importance: model.Importance(importance),
		Emotion:    emotion,
		Metadata:   metadata,
	}

	if _, err := s.Store(cmd.Context(), entry); err != nil {
		exitErr("remember", err)
	}

	b, _ := json.Marshal(entry)
	fmt.Println(string(b))
}
