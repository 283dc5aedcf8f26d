package slackbot

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timeoff-bot/internal/i18n"
)

func newCatalog(t *testing.T) *i18n.Catalog {
	t.Helper()
	cat, err := i18n.New()
	require.NoError(t, err)
	return cat
}

func TestActionValue_RoundTrip(t *testing.T) {
	v := ActionValue(ActionApprove, "U123", 1)
	assert.Equal(t, "approvetimeoff_U123_1", v)

	action, user, id, err := ParseActionValue(v)
	require.NoError(t, err)
	assert.Equal(t, ActionApprove, action)
	assert.Equal(t, "U123", user)
	assert.Equal(t, 1, id)
}

func TestParseActionValue_Invalid(t *testing.T) {
	for _, v := range []string{"", "approvetimeoff", "approvetimeoff_U1", "approvetimeoff_U1_x", "_U1_1", "approvetimeoff__1"} {
		_, _, _, err := ParseActionValue(v)
		assert.ErrorIs(t, err, ErrInvalidActionValue, v)
	}
}

func TestApprovalRequestBlocks(t *testing.T) {
	blocks, err := ApprovalRequestBlocks(context.Background(), newCatalog(t), Card{
		UserID:         "U123",
		RequestID:      2,
		StartDate:      "Monday 8 January",
		ReturnDate:     "Monday 15 January",
		LeaveCount:     5,
		LeftIfApproved: "20",
	})
	require.NoError(t, err)
	require.Len(t, blocks, 3)

	title := blocks[0].(*slack.SectionBlock)
	assert.Equal(t, "You have a new holiday request:\n*<@U123>*", title.Text.Text)

	fields := blocks[1].(*slack.SectionBlock).Fields
	require.Len(t, fields, 4)
	assert.Equal(t, "*Start:*\nMonday 8 January", fields[0].Text)
	assert.Equal(t, "*Annual leave use for this request:*\n5", fields[2].Text)
	assert.Equal(t, "*Annual leave left if approved:*\n20", fields[3].Text)

	actions := blocks[2].(*slack.ActionBlock).Elements.ElementSet
	require.Len(t, actions, 2)
	approve := actions[0].(*slack.ButtonBlockElement)
	decline := actions[1].(*slack.ButtonBlockElement)
	assert.Equal(t, "approvetimeoff_U123_2", approve.Value)
	assert.Equal(t, slack.StylePrimary, approve.Style)
	assert.Equal(t, "Approve", approve.Text.Text)
	assert.Equal(t, "declinetimeoff_U123_2", decline.Value)
	assert.Equal(t, "Deny", decline.Text.Text)
}

func TestDecisionBlocks(t *testing.T) {
	card := Card{UserID: "U123", RequestID: 1, StartDate: "a", ReturnDate: "b", LeaveCount: 3}

	approved, err := DecisionBlocks(context.Background(), newCatalog(t), true, card)
	require.NoError(t, err)
	require.Len(t, approved, 2)
	assert.Contains(t, approved[0].(*slack.SectionBlock).Text.Text, "You have approved")
	assert.Len(t, approved[1].(*slack.SectionBlock).Fields, 3)

	declined, err := DecisionBlocks(context.Background(), newCatalog(t), false, card)
	require.NoError(t, err)
	assert.Contains(t, declined[0].(*slack.SectionBlock).Text.Text, "You have declined")
}

func TestClient_PostText(t *testing.T) {
	var form map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat.postMessage", r.URL.Path)
		require.NoError(t, r.ParseForm())
		form = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"channel":"D1","ts":"1.0"}`))
	}))
	defer srv.Close()

	c := NewClient("xoxb-test", srv.URL)
	require.NoError(t, c.PostText(context.Background(), "D1", "Hello"))
	assert.Equal(t, "D1", form["channel"][0])
	assert.Equal(t, "Hello", form["text"][0])
}

func TestClient_PostText_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":false,"error":"channel_not_found"}`))
	}))
	defer srv.Close()

	err := NewClient("xoxb-test", srv.URL).PostText(context.Background(), "D1", "Hello")
	assert.ErrorContains(t, err, "channel_not_found")
}

func TestClient_PostBlocks(t *testing.T) {
	var blocksJSON string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		blocksJSON = r.PostForm.Get("blocks")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	blocks, err := ApprovalRequestBlocks(context.Background(), newCatalog(t), Card{UserID: "U1", RequestID: 1})
	require.NoError(t, err)
	require.NoError(t, NewClient("xoxb-test", srv.URL).PostBlocks(context.Background(), "UMGR", "New time off request", blocks))
	assert.Contains(t, blocksJSON, "approvetimeoff_U1_1")
}

func TestClient_RespondInteraction(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, &body))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	blocks, err := DecisionBlocks(context.Background(), newCatalog(t), true, Card{UserID: "U1"})
	require.NoError(t, err)
	require.NoError(t, NewClient("xoxb-test", "").RespondInteraction(context.Background(), srv.URL+"/actions/T1/1", blocks))

	assert.Equal(t, true, body["replace_original"])
	assert.Len(t, body["blocks"], 2)
}
