package gemini

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComposeReply(t *testing.T) {
	t.Parallel()

	req := ReplyRequest{
		Utterance: "coffee 35000",
		Facts:     "✅ Recorded: coffee 35000 UZS (2026-08-28)\nBudget today: 15000 of 50000 UZS left",
	}

	t.Run("returns reply and summary", func(t *testing.T) {
		t.Parallel()
		mock := &mockGenerator{
			response: textResponse(`{"reply":"Got it, coffee for 35000 so'm. 15000 left today.","summary":"Logged a coffee."}`),
		}
		client := NewClientWithGenerator(mock)

		resp, err := client.ComposeReply(context.Background(), req)
		require.NoError(t, err)
		require.Contains(t, resp.Reply, "35000")
		require.Equal(t, "Logged a coffee.", resp.Summary)
	})

	t.Run("rejects an empty reply", func(t *testing.T) {
		t.Parallel()
		mock := &mockGenerator{
			response: textResponse(`{"reply":"  ","summary":"something"}`),
		}
		client := NewClientWithGenerator(mock)

		resp, err := client.ComposeReply(context.Background(), req)
		require.Error(t, err)
		require.Nil(t, resp)
		require.Contains(t, err.Error(), "empty reply")
	})

	t.Run("propagates generator errors", func(t *testing.T) {
		t.Parallel()
		mock := &mockGenerator{err: errors.New("boom")}
		client := NewClientWithGenerator(mock)

		resp, err := client.ComposeReply(context.Background(), req)
		require.Error(t, err)
		require.Nil(t, resp)
	})

	t.Run("returns error for nil generator", func(t *testing.T) {
		t.Parallel()
		client := &Client{generator: nil}

		resp, err := client.ComposeReply(context.Background(), req)
		require.Error(t, err)
		require.Nil(t, resp)
	})

	t.Run("embeds the facts verbatim in the prompt", func(t *testing.T) {
		t.Parallel()
		mock := &mockGenerator{
			response: textResponse(`{"reply":"ok","summary":"s"}`),
		}
		client := NewClientWithGenerator(mock)

		_, err := client.ComposeReply(context.Background(), req)
		require.NoError(t, err)

		last := mock.lastContents[len(mock.lastContents)-1]
		require.Contains(t, last.Parts[0].Text, "Budget today: 15000 of 50000 UZS left")
	})
}
