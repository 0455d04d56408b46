package gemini

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseReceipt(t *testing.T) {
	t.Parallel()

	image := []byte{0xFF, 0xD8, 0xFF, 0xE0} // JPEG magic bytes are enough for the mock

	t.Run("extracts a full expense", func(t *testing.T) {
		t.Parallel()
		mock := &mockGenerator{
			response: textResponse(`{"amount":"35000","currency":"UZS","category":"taxi","note":"Yandex Go","confidence":0.92}`),
		}
		client := NewClientWithGenerator(mock)

		data, err := client.ParseReceipt(context.Background(), image, "image/jpeg", "UZS")
		require.NoError(t, err)
		require.Equal(t, "35000", data.Amount.String())
		require.Equal(t, "UZS", data.Currency)
		require.Equal(t, "taxi", data.Category)
		require.Equal(t, "Yandex Go", data.Note)
		require.InDelta(t, 0.92, data.Confidence, 0.001)
	})

	t.Run("zero amount counts as unrecognized", func(t *testing.T) {
		t.Parallel()
		mock := &mockGenerator{
			response: textResponse(`{"amount":"0","currency":"","category":"","note":"","confidence":0.1}`),
		}
		client := NewClientWithGenerator(mock)

		data, err := client.ParseReceipt(context.Background(), image, "image/jpeg", "UZS")
		require.ErrorIs(t, err, ErrUnrecognized)
		require.Nil(t, data)
	})

	t.Run("defaults currency and category", func(t *testing.T) {
		t.Parallel()
		mock := &mockGenerator{
			response: textResponse(`{"amount":"12000","currency":"","category":"","note":"","confidence":0.5}`),
		}
		client := NewClientWithGenerator(mock)

		data, err := client.ParseReceipt(context.Background(), image, "image/jpeg", "UZS")
		require.NoError(t, err)
		require.Equal(t, "UZS", data.Currency)
		require.Equal(t, "other", data.Category)
	})

	t.Run("rejects a negative amount", func(t *testing.T) {
		t.Parallel()
		mock := &mockGenerator{
			response: textResponse(`{"amount":"-5000","currency":"UZS","category":"taxi","note":"","confidence":0.9}`),
		}
		client := NewClientWithGenerator(mock)

		data, err := client.ParseReceipt(context.Background(), image, "image/jpeg", "UZS")
		require.Error(t, err)
		require.Nil(t, data)
	})

	t.Run("strips markdown fences", func(t *testing.T) {
		t.Parallel()
		mock := &mockGenerator{
			response: textResponse("```json\n{\"amount\":\"9000\",\"currency\":\"UZS\",\"category\":\"coffee\",\"note\":\"\",\"confidence\":0.8}\n```"),
		}
		client := NewClientWithGenerator(mock)

		data, err := client.ParseReceipt(context.Background(), image, "image/jpeg", "UZS")
		require.NoError(t, err)
		require.Equal(t, "9000", data.Amount.String())
	})

	t.Run("requires image data", func(t *testing.T) {
		t.Parallel()
		client := NewClientWithGenerator(&mockGenerator{})

		data, err := client.ParseReceipt(context.Background(), nil, "image/jpeg", "UZS")
		require.Error(t, err)
		require.Nil(t, data)
		require.Contains(t, err.Error(), "image data is required")
	})
}
