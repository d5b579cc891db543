package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/activebook/prepdash/service"
	"github.com/spf13/cobra"
)

// reviewCmd is an interactive browser over review conversations. It is
// the heavy user of the conversation cache: switching back to a
// conversation you already viewed renders from memory immediately while
// a background refresh picks up anything written since.
var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Browse review conversations interactively",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store := service.NewConversationStore()
		convos, err := store.List()
		if err != nil {
			return err
		}
		if len(convos) == 0 {
			fmt.Println("No conversations found. Generate some content first.")
			return nil
		}
		return runReviewLoop(cmd.Context(), store, convos)
	},
}

func init() {
	rootCmd.AddCommand(reviewCmd)
}

func runReviewLoop(ctx context.Context, store *service.ConversationStore, convos []service.Conversation) error {
	cache := service.NewConversationCache(0)
	load := func(_ context.Context, id string) (*service.Conversation, []service.Message, error) {
		return store.Load(id)
	}

	// A background refresh may call apply again after the initial
	// render; skip re-rendering when nothing changed so the terminal
	// stays quiet.
	var renderMu sync.Mutex
	lastRendered := make(map[string]int64)
	apply := func(entry *service.ConversationEntry) {
		renderMu.Lock()
		defer renderMu.Unlock()
		stamp := entry.Conversation.UpdatedAt.UnixNano()
		if lastRendered[entry.Conversation.ID] == stamp {
			return
		}
		lastRendered[entry.Conversation.ID] = stamp
		printConversation(entry.Conversation, entry.Messages)
	}

	fmt.Println("Conversations:")
	for index, convo := range convos {
		fmt.Printf("  [%d] %s\n", index+1, convo.Title)
	}
	fmt.Println(grayColor("Enter a number to view, or q to quit."))

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(keyColor("review> "))
		if !scanner.Scan() {
			return scanner.Err()
		}
		input := strings.TrimSpace(scanner.Text())
		switch input {
		case "":
			continue
		case "q", "quit", "exit":
			return nil
		}

		index, err := strconv.Atoi(input)
		if err != nil || index < 1 || index > len(convos) {
			fmt.Printf("Enter a number between 1 and %d, or q.\n", len(convos))
			continue
		}

		id := convos[index-1].ID
		// Forget the last render so an explicit switch always shows
		// the conversation, cached or not.
		renderMu.Lock()
		delete(lastRendered, id)
		renderMu.Unlock()

		if err := cache.Switch(ctx, id, load, apply); err != nil {
			fmt.Printf("%s %v\n", errColor("✖"), err)
			continue
		}

		// Warm the neighbours so the next switch is a cache hit.
		if index < len(convos) {
			go cache.Preload(ctx, convos[index].ID, load)
		}
		if index > 1 {
			go cache.Preload(ctx, convos[index-2].ID, load)
		}
	}
}
