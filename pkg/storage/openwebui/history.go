// Package openwebui provides a record sink that converts each record into an
// Open WebUI chat-history document and submits it to the Open WebUI import
// API.
package openwebui

import (
	"strings"

	"github.com/google/uuid"

	"github.com/papercomputeco/taperelay/pkg/llm"
	"github.com/papercomputeco/taperelay/pkg/record"
	"github.com/papercomputeco/taperelay/pkg/utils"
)

const (
	defaultTitle   = "New Chat"
	maxTitleLength = 50
)

// ImportRequest is the body POSTed to the import endpoint.
type ImportRequest struct {
	Chat Chat `json:"chat"`
}

// Chat is a chat-history document. Messages is the linear view, History the
// tree view keyed by message ID.
type Chat struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Models    []string  `json:"models"`
	Messages  []Message `json:"messages"`
	History   History   `json:"history"`
	Timestamp int64     `json:"timestamp"`
}

// History is the message tree. CurrentID is the leaf the UI opens on.
type History struct {
	Messages  map[string]Message `json:"messages"`
	CurrentID string             `json:"currentId"`
}

// Message is one node of the tree. The root has a nil ParentID.
type Message struct {
	ID          string   `json:"id"`
	ParentID    *string  `json:"parentId"`
	ChildrenIDs []string `json:"childrenIds"`
	Role        string   `json:"role"`
	Content     string   `json:"content"`
	Model       string   `json:"model,omitempty"`
	Timestamp   int64    `json:"timestamp"`
}

// idFunc generates node identifiers; replaced in tests.
var idFunc = uuid.NewString

// BuildChat converts a record into a chat document: every request message in
// order, then the assistant reply, linked into a single chain.
func BuildChat(rec *record.Record) (*Chat, error) {
	req, err := rec.ChatRequest()
	if err != nil {
		return nil, err
	}

	msgs := make([]llm.Message, 0, len(req.Messages)+1)
	msgs = append(msgs, req.Messages...)
	msgs = append(msgs, llm.NewTextMessage("assistant", rec.Response))

	ts := rec.Timestamp.Unix()
	chat := &Chat{
		ID:        idFunc(),
		Title:     title(req.Messages),
		Models:    []string{req.Model},
		Messages:  make([]Message, 0, len(msgs)),
		History:   History{Messages: make(map[string]Message, len(msgs))},
		Timestamp: rec.Timestamp.UnixMilli(),
	}

	var parentID *string
	for _, m := range msgs {
		node := Message{
			ID:          idFunc(),
			ParentID:    parentID,
			ChildrenIDs: []string{},
			Role:        m.Role,
			Content:     m.GetText(),
			Timestamp:   ts,
		}
		if m.Role == "assistant" {
			node.Model = req.Model
		}

		if n := len(chat.Messages); n > 0 {
			chat.Messages[n-1].ChildrenIDs = []string{node.ID}
		}

		chat.Messages = append(chat.Messages, node)
		id := node.ID
		parentID = &id
	}

	for _, m := range chat.Messages {
		chat.History.Messages[m.ID] = m
	}
	chat.History.CurrentID = chat.Messages[len(chat.Messages)-1].ID

	return chat, nil
}

// title derives a chat title from the first user message.
func title(msgs []llm.Message) string {
	for _, m := range msgs {
		if m.Role != "user" {
			continue
		}

		text := strings.Join(strings.Fields(m.GetText()), " ")
		if text == "" {
			continue
		}

		return utils.Truncate(text, maxTitleLength)
	}

	return defaultTitle
}
