package dto

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	attachmentDomain "github.com/allisson/attachments/internal/attachment/domain"
)

func TestMapEncryptResultToResponse(t *testing.T) {
	t.Run("E2EE_OmitsOptionalParts", func(t *testing.T) {
		response := MapEncryptResultToResponse(&attachmentDomain.EncryptResult{
			EncryptedBuffer: []byte{0x01, 0x02},
			Metadata:        attachmentDomain.Metadata{Mode: attachmentDomain.ModeE2EE, IV: "aXY="},
		})

		body, err := json.Marshal(response)
		require.NoError(t, err)
		assert.Contains(t, string(body), `"encrypted_buffer":"AQI="`)
		assert.Contains(t, string(body), `"iv":"aXY="`)
		assert.NotContains(t, string(body), "thumbnail")
		assert.NotContains(t, string(body), "server_copy")
	})

	t.Run("Hybrid_WithThumbnailAndServerCopy", func(t *testing.T) {
		response := MapEncryptResultToResponse(&attachmentDomain.EncryptResult{
			EncryptedBuffer: []byte("primary"),
			Metadata:        attachmentDomain.Metadata{Mode: attachmentDomain.ModeHybrid},
			Thumbnail: &attachmentDomain.EncryptedThumbnail{
				EncryptedBuffer: []byte("thumb"),
				IV:              "dGl2",
				AuthTag:         "dHRhZw==",
			},
			ServerCopy: &attachmentDomain.ServerCopy{
				EncryptedBuffer: []byte("server"),
				KeyID:           "0190c0de-0000-7000-8000-000000000000",
				IV:              "c2l2",
				AuthTag:         "c3RhZw==",
			},
		})

		require.NotNil(t, response.Thumbnail)
		assert.Equal(t, []byte("thumb"), response.Thumbnail.EncryptedBuffer)
		require.NotNil(t, response.ServerCopy)
		assert.Equal(t, "0190c0de-0000-7000-8000-000000000000", response.ServerCopy.KeyID)
		assert.Equal(t, []byte("server"), response.ServerCopy.EncryptedBuffer)
	})
}
