package evidence

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/factgraph/factgraph/internal/model"
)

// corpus file shapes; timestamps arrive as ISO-8601 strings from the
// ingestion collaborator and are parsed here.
type rawMessage struct {
	ID         string   `json:"message_id"`
	Sender     string   `json:"from"`
	Recipients []string `json:"to"`
	Subject    string   `json:"subject"`
	Body       string   `json:"body"`
	Date       string   `json:"date"`
}

type corpusFile struct {
	Messages []rawMessage           `json:"messages"`
	Contexts []model.ProjectContext `json:"contexts"`
}

// Corpus bundles the message store with the pre-clustered project contexts
// supplied alongside it.
type Corpus struct {
	Store    *MemoryStore
	Contexts []model.ProjectContext
}

// LoadCorpus reads a corpus JSON file: sanitized messages plus the project
// contexts they were clustered into. Context message ids must resolve.
func LoadCorpus(path string) (*Corpus, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read corpus: %w", err)
	}

	var file corpusFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse corpus: %w", err)
	}

	messages := make([]model.Message, 0, len(file.Messages))
	for _, rm := range file.Messages {
		ts, err := parseTimestamp(rm.Date)
		if err != nil {
			return nil, fmt.Errorf("message %s: %w", rm.ID, err)
		}
		messages = append(messages, model.Message{
			ID:         rm.ID,
			Sender:     rm.Sender,
			Recipients: rm.Recipients,
			Subject:    rm.Subject,
			Body:       rm.Body,
			Timestamp:  ts,
		})
	}

	store, err := NewMemoryStore(messages)
	if err != nil {
		return nil, fmt.Errorf("build store: %w", err)
	}

	for _, pc := range file.Contexts {
		for _, id := range pc.MessageIDs {
			if !store.Has(id) {
				return nil, fmt.Errorf("context %s cites unknown message id %q", pc.ID, id)
			}
		}
	}

	return &Corpus{Store: store, Contexts: file.Contexts}, nil
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
}
