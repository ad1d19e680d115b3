package linear

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mtlprog/agentdesk/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateIssue(t *testing.T) {
	var got graphQLRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "lin_api_abc", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, `{"data":{"issueCreate":{"success":true,
			"issue":{"id":"i1","identifier":"ENG-12","title":"Bug","url":"https://linear.app/x/issue/ENG-12"}}}}`)
	}))
	defer server.Close()

	c := NewClient(server.URL, server.Client())
	issue, err := c.CreateIssue(context.Background(), "lin_api_abc", CreateIssueInput{
		TeamID: "team-1", Title: "Bug", Description: "Steps",
	})
	require.NoError(t, err)

	assert.Contains(t, got.Query, "issueCreate")
	input, ok := got.Variables["input"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "team-1", input["teamId"])
	assert.Equal(t, "Steps", input["description"])
	assert.Equal(t, "ENG-12", issue.Identifier)
	assert.Equal(t, "https://linear.app/x/issue/ENG-12", issue.URL)
}

func TestCreateIssue_GraphQLError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"errors":[{"message":"Entity not found: Team"}],"data":null}`)
	}))
	defer server.Close()

	_, err := NewClient(server.URL, server.Client()).CreateIssue(context.Background(), "oauth-token", CreateIssueInput{TeamID: "x", Title: "t"})
	require.ErrorIs(t, err, domain.ErrUpstreamFailed)
	assert.Contains(t, err.Error(), "Entity not found")
}

func TestCreateIssue_Unauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer oauth-token", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	_, err := NewClient(server.URL, server.Client()).CreateIssue(context.Background(), "oauth-token", CreateIssueInput{TeamID: "x", Title: "t"})
	require.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestViewer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"viewer":{"id":"u1","name":"Ada","email":"ada@example.com"}}}`)
	}))
	defer server.Close()

	account, err := NewClient(server.URL, server.Client()).Viewer(context.Background(), "lin_api_abc")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", account)
}
