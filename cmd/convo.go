package cmd

import (
	"fmt"
	"strconv"

	"github.com/activebook/prepdash/service"
	"github.com/spf13/cobra"
)

// convoCmd represents the convo command
var convoCmd = &cobra.Command{
	Use:     "convo",
	Aliases: []string{"cv", "conversation"},
	Short:   "Manage review conversations",
	Long:    `Commands to list, show, remove, and clear review conversations.`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return convoListCmd.RunE(cmd, args)
	},
}

var convoListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List all conversations",
	RunE: func(cmd *cobra.Command, args []string) error {
		store := service.NewConversationStore()
		convos, err := store.List()
		if err != nil {
			fmt.Println(err)
			return nil
		}
		if len(convos) == 0 {
			fmt.Println("No conversations found.")
			return nil
		}

		fmt.Println("Available conversations:")
		for index, convo := range convos {
			if convo.Module != "" {
				fmt.Printf("  - [%d] %s %s\n", index+1, convo.Title, grayColor("["+string(convo.Module)+"]"))
			} else {
				fmt.Printf("  - [%d] %s\n", index+1, convo.Title)
			}
		}
		return nil
	},
}

var convoShowCmd = &cobra.Command{
	Use:   "show <index|id>",
	Short: "Show one conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store := service.NewConversationStore()
		id, err := resolveConvoID(store, args[0])
		if err != nil {
			return err
		}
		conv, messages, err := store.Load(id)
		if err != nil {
			return err
		}
		printConversation(conv, messages)
		return nil
	},
}

var convoRemoveCmd = &cobra.Command{
	Use:     "remove <index|id>",
	Aliases: []string{"rm"},
	Short:   "Remove one conversation",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store := service.NewConversationStore()
		id, err := resolveConvoID(store, args[0])
		if err != nil {
			return err
		}
		if store.Remove(id) {
			fmt.Printf("Removed conversation %s\n", keyColor(id))
		} else {
			fmt.Printf("No conversation named %s\n", keyColor(id))
		}
		return nil
	},
}

var convoClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all conversations",
	RunE: func(cmd *cobra.Command, args []string) error {
		store := service.NewConversationStore()
		if err := store.Clear(); err != nil {
			return err
		}
		fmt.Println("All conversations removed.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(convoCmd)
	convoCmd.AddCommand(convoListCmd)
	convoCmd.AddCommand(convoShowCmd)
	convoCmd.AddCommand(convoRemoveCmd)
	convoCmd.AddCommand(convoClearCmd)
}

// resolveConvoID accepts either a 1-based list index or a conversation id.
func resolveConvoID(store *service.ConversationStore, arg string) (string, error) {
	index, err := strconv.Atoi(arg)
	if err != nil {
		return arg, nil
	}
	convos, err := store.List()
	if err != nil {
		return "", err
	}
	if index < 1 || index > len(convos) {
		return "", fmt.Errorf("index %d out of range (1-%d)", index, len(convos))
	}
	return convos[index-1].ID, nil
}

func printConversation(conv *service.Conversation, messages []service.Message) {
	fmt.Printf("\n%s\n", sectionColor(conv.Title))
	if conv.Module != "" {
		fmt.Printf("%s\n", grayColor("module: "+string(conv.Module)))
	}
	for _, msg := range messages {
		fmt.Printf("%s %s\n", keyColor(msg.Role+":"), msg.Content)
	}
}
