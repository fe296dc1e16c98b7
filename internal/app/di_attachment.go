package app

import (
	"fmt"

	attachmentHTTP "github.com/allisson/attachments/internal/attachment/http"
	attachmentRepository "github.com/allisson/attachments/internal/attachment/repository"
	attachmentMySQL "github.com/allisson/attachments/internal/attachment/repository/mysql"
	attachmentSQLite "github.com/allisson/attachments/internal/attachment/repository/sqlite"
	attachmentUseCase "github.com/allisson/attachments/internal/attachment/usecase"
)

// ConversationKeyRepository returns the conversation-to-key association store.
func (c *Container) ConversationKeyRepository() (attachmentUseCase.ConversationKeyRepository, error) {
	var err error
	c.conversationKeyRepoInit.Do(func() {
		c.conversationKeyRepo, err = c.initConversationKeyRepository()
		if err != nil {
			c.setInitError("conversationKeyRepo", err)
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr := c.initError("conversationKeyRepo"); storedErr != nil {
		return nil, storedErr
	}
	return c.conversationKeyRepo, nil
}

// AttachmentUseCase returns the attachment encryption service, wrapped with metrics when enabled.
func (c *Container) AttachmentUseCase() (attachmentUseCase.AttachmentUseCase, error) {
	var err error
	c.attachmentUseCaseInit.Do(func() {
		c.attachmentUseCase, err = c.initAttachmentUseCase()
		if err != nil {
			c.setInitError("attachmentUseCase", err)
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr := c.initError("attachmentUseCase"); storedErr != nil {
		return nil, storedErr
	}
	return c.attachmentUseCase, nil
}

// AttachmentHandler returns the HTTP handler for attachment operations.
func (c *Container) AttachmentHandler() (*attachmentHTTP.AttachmentHandler, error) {
	var err error
	c.attachmentHandlerInit.Do(func() {
		var useCase attachmentUseCase.AttachmentUseCase
		useCase, err = c.AttachmentUseCase()
		if err != nil {
			err = fmt.Errorf("failed to get attachment use case for attachment handler: %w", err)
			c.setInitError("attachmentHandler", err)
			return
		}
		c.attachmentHandler = attachmentHTTP.NewAttachmentHandler(useCase, c.Logger())
	})
	if err != nil {
		return nil, err
	}
	if storedErr := c.initError("attachmentHandler"); storedErr != nil {
		return nil, storedErr
	}
	return c.attachmentHandler, nil
}

func (c *Container) initConversationKeyRepository() (attachmentUseCase.ConversationKeyRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for conversation key repository: %w", err)
	}

	switch c.config.DBDriver {
	case "postgres":
		return attachmentRepository.NewPostgreSQLConversationKeyRepository(db), nil
	case "mysql":
		return attachmentMySQL.NewMySQLConversationKeyRepository(db), nil
	case "sqlite":
		return attachmentSQLite.NewSQLiteConversationKeyRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

func (c *Container) initAttachmentUseCase() (attachmentUseCase.AttachmentUseCase, error) {
	keyVault, err := c.KeyVaultUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get key vault for attachment use case: %w", err)
	}

	conversationKeys, err := c.ConversationKeyRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation key repository for attachment use case: %w", err)
	}

	baseUseCase := attachmentUseCase.NewAttachmentUseCase(
		c.Primitives(),
		keyVault,
		conversationKeys,
		attachmentUseCase.Config{MaxFileSize: c.config.AttachmentMaxSize},
		c.Logger(),
	)

	// Wrap with metrics if enabled
	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for attachment use case: %w", err)
		}
		return attachmentUseCase.NewAttachmentUseCaseWithMetrics(baseUseCase, businessMetrics), nil
	}

	return baseUseCase, nil
}
