package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CaputoDavide93/new-starters-meetup/internal/model"
)

func TestGroupMembersPaginates(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// resty only unmarshals SetResult for JSON content types; without
		// this header Go sniffs the encoded body as text/plain.
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/groups/g1/members":
			require.Equal(t, "999", r.URL.Query().Get("$top"))
			_ = json.NewEncoder(w).Encode(graphMembersPage{
				Value: []graphMember{
					{Mail: "Ada@Example.com", DisplayName: "Ada Lovelace"},
					{UserPrincipalName: "grace@example.com", DisplayName: "Grace Hopper"},
				},
				NextLink: fmt.Sprintf("%s/groups/g1/members/page2", srv.URL),
			})
		case "/groups/g1/members/page2":
			_ = json.NewEncoder(w).Encode(graphMembersPage{
				Value: []graphMember{
					{Mail: "bob@example.com", DisplayName: "Bob"},
					{DisplayName: "No Email"},
				},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	d := NewGraphWithClient(srv.Client(), srv.URL, zerolog.Nop())
	got, err := d.GroupMembers(context.Background(), "g1")
	require.NoError(t, err)

	assert.Equal(t, []model.Member{
		{Email: "ada@example.com", DisplayName: "Ada Lovelace"},
		{Email: "grace@example.com", DisplayName: "Grace Hopper"},
		{Email: "bob@example.com", DisplayName: "Bob"},
	}, got)
}

func TestGroupMembersHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)

	d := NewGraphWithClient(srv.Client(), srv.URL, zerolog.Nop())
	_, err := d.GroupMembers(context.Background(), "g1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}
