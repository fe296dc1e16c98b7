// Package dto provides data transfer objects for server key HTTP requests and responses.
package dto

import (
	validation "github.com/jellydator/validation"

	keyvaultDomain "github.com/allisson/attachments/internal/keyvault/domain"
	customValidation "github.com/allisson/attachments/internal/validation"
)

// CreateServerKeyRequest contains the optional scope of a new server key.
type CreateServerKeyRequest struct {
	ConversationID string `json:"conversation_id,omitempty"`
	UserID         string `json:"user_id,omitempty"`
}

// Validate checks if the create server key request is valid.
func (r *CreateServerKeyRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.ConversationID,
			customValidation.NoWhitespace,
			validation.Length(0, 255),
		),
		validation.Field(&r.UserID,
			customValidation.NoWhitespace,
			validation.Length(0, 255),
		),
	)
}

// Scope converts the request to a key vault scope.
func (r *CreateServerKeyRequest) Scope() keyvaultDomain.Scope {
	return keyvaultDomain.Scope{
		ConversationID: r.ConversationID,
		UserID:         r.UserID,
	}
}
