package service

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/activebook/prepdash/data"
)

// Message is one turn of a review conversation.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// Conversation is the metadata of one review conversation.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Module    ModuleKey `json:"module,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// conversationFile is the on-disk layout: one JSON document per
// conversation.
type conversationFile struct {
	Conversation Conversation `json:"conversation"`
	Messages     []Message    `json:"messages"`
}

// ConversationStore persists conversations as JSON files in the user
// config dir. It backs the conversation cache's miss and refresh paths.
type ConversationStore struct {
	dir string
}

// NewConversationStore creates a store rooted at the default directory.
func NewConversationStore() *ConversationStore {
	return &ConversationStore{dir: data.GetConvoDirPath()}
}

// NewConversationStoreAt creates a store rooted at dir, for tests.
func NewConversationStoreAt(dir string) *ConversationStore {
	return &ConversationStore{dir: dir}
}

// Dir returns the conversation directory path.
func (s *ConversationStore) Dir() string {
	return s.dir
}

func (s *ConversationStore) path(id string) string {
	return filepath.Join(s.dir, GetSanitizeTitle(id)+".json")
}

// List returns all conversation metadata sorted by modification time,
// newest first.
func (s *ConversationStore) List() ([]Conversation, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read conversation directory: %w", err)
	}

	type fileInfo struct {
		conv    Conversation
		modTime int64
	}
	var files []fileInfo
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ".json")
		conv, _, err := s.Load(id)
		if err != nil {
			continue
		}
		files = append(files, fileInfo{conv: *conv, modTime: info.ModTime().Unix()})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].modTime > files[j].modTime
	})

	convos := make([]Conversation, 0, len(files))
	for _, f := range files {
		convos = append(convos, f.conv)
	}
	return convos, nil
}

// Load reads one conversation and its messages.
func (s *ConversationStore) Load(id string) (*Conversation, []Message, error) {
	raw, err := os.ReadFile(s.path(id))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load conversation %q: %w", id, err)
	}
	var file conversationFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, nil, fmt.Errorf("failed to parse conversation %q: %w", id, err)
	}
	if file.Conversation.ID == "" {
		file.Conversation.ID = id
	}
	return &file.Conversation, file.Messages, nil
}

// Save writes a conversation and its messages, creating the directory on
// first use.
func (s *ConversationStore) Save(conv *Conversation, messages []Message) error {
	if conv == nil || conv.ID == "" {
		return fmt.Errorf("conversation id cannot be empty")
	}
	if err := os.MkdirAll(s.dir, 0750); err != nil {
		return fmt.Errorf("failed to create conversation directory: %w", err)
	}
	conv.UpdatedAt = time.Now()
	raw, err := json.MarshalIndent(conversationFile{Conversation: *conv, Messages: messages}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode conversation: %w", err)
	}
	return os.WriteFile(s.path(conv.ID), raw, 0644)
}

// Remove deletes one conversation file. Returns true when a file was
// removed.
func (s *ConversationStore) Remove(id string) bool {
	return os.Remove(s.path(id)) == nil
}

// Clear removes every conversation file.
func (s *ConversationStore) Clear() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}
