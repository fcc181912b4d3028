package types

import (
	"encoding/json"

	"wowserver/internal/models"
)

// Shared wire types for the websocket protocol

type Heartbeat struct {
	Type     MsgType `json:"type"`
	ClientID string  `json:"client_id"`
}

type ConnectionAck struct {
	Code     int     `json:"code"`
	Message  string  `json:"Message"`
	Type     MsgType `json:"type"`
	ClientID string  `json:"client_id"`
}

type Request struct {
	Type   MsgType         `json:"type"`
	ID     string          `json:"id"`
	Op     Op              `json:"op"`
	Params json.RawMessage `json:"params,omitempty"`
}

type Response struct {
	Type   MsgType         `json:"type"`
	ID     string          `json:"id"`
	OK     bool            `json:"ok"`
	Error  string          `json:"error,omitempty"`
	Code   Code            `json:"code,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
}

type LoginParams struct {
	AccountName string `json:"account_name"`
	Password    string `json:"password"`
}

type LoginResult struct {
	Player    models.PlayerData `json:"player"`
	Admin     bool              `json:"admin"`
	SessionID string            `json:"session_id"`
}

// CreateAccountParams registers an account. Admin accounts can only be created from an admin session.
type CreateAccountParams struct {
	AccountName string `json:"account_name"`
	Password    string `json:"password"`
	Admin       bool   `json:"admin,omitempty"`
}

type AccountParams struct {
	AccountName string `json:"account_name"`
}

type CharactersResult struct {
	Characters []models.Character `json:"characters"`
}

type AddCharacterParams struct {
	AccountName string           `json:"account_name"`
	Character   models.Character `json:"character"`
}

type UpdateCharactersParams struct {
	Player models.PlayerData `json:"player"`
}

type UpdateCharacterLevelsParams struct {
	Characters []models.Character `json:"characters"`
}

type DeleteCharacterParams struct {
	AccountName   string `json:"account_name"`
	CharacterName string `json:"character_name"`
}
