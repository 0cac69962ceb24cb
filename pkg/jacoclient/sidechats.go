package jacoclient

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

func (c *Client) CreateSideChat(ctx context.Context, token string, req CreateSideChatRequest) (*SideChat, error) {
	var sc SideChat
	if err := c.do(ctx, http.MethodPost, "/side-chats/", token, req, &sc); err != nil {
		return nil, err
	}
	return &sc, nil
}

func (c *Client) GetSideChat(ctx context.Context, token string, sideChatID uuid.UUID) (*SideChat, error) {
	var sc SideChat
	if err := c.do(ctx, http.MethodGet, "/side-chats/"+sideChatID.String(), token, nil, &sc); err != nil {
		return nil, err
	}
	return &sc, nil
}

// ListSideChatsByChat returns every side chat of a parent chat, oldest first.
func (c *Client) ListSideChatsByChat(ctx context.Context, token string, chatID uuid.UUID) ([]SideChat, error) {
	var list []SideChat
	if err := c.do(ctx, http.MethodGet, "/side-chats/by-chat/"+chatID.String(), token, nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (c *Client) AddSideChatMessage(ctx context.Context, token string, sideChatID uuid.UUID, req AddMessageRequest) (*SideChatMessage, error) {
	var msg SideChatMessage
	if err := c.do(ctx, http.MethodPost, "/side-chats/"+sideChatID.String()+"/messages", token, req, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ReplySideChat asks the server to answer the latest user message.
func (c *Client) ReplySideChat(ctx context.Context, token string, sideChatID uuid.UUID) (*SideChatMessage, error) {
	var msg SideChatMessage
	if err := c.do(ctx, http.MethodPost, "/side-chats/"+sideChatID.String()+"/reply", token, nil, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// CombineSideChat merges the discussion back into its step. The returned
// side chat carries the combined step content.
func (c *Client) CombineSideChat(ctx context.Context, token string, sideChatID uuid.UUID) (*SideChat, error) {
	var sc SideChat
	if err := c.do(ctx, http.MethodPost, "/side-chats/"+sideChatID.String()+"/combine", token, nil, &sc); err != nil {
		return nil, err
	}
	return &sc, nil
}

func (c *Client) DeleteSideChat(ctx context.Context, token string, sideChatID uuid.UUID) (*DeleteResult, error) {
	var res DeleteResult
	if err := c.do(ctx, http.MethodDelete, "/side-chats/"+sideChatID.String(), token, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
