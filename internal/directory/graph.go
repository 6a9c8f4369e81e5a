package directory

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/CaputoDavide93/new-starters-meetup/internal/model"
)

const defaultGraphBaseURL = "https://graph.microsoft.com/v1.0"

// pageSize is the Graph $top value; 999 is the API maximum for members.
const pageSize = 999

// GraphDirectory reads group members from the Microsoft Graph API using
// client-credential auth.
type GraphDirectory struct {
	client *resty.Client
	log    zerolog.Logger
}

// GraphOption configures a GraphDirectory.
type GraphOption func(*GraphDirectory)

// WithGraphBaseURL overrides the Graph endpoint; tests point it at a local
// server.
func WithGraphBaseURL(url string) GraphOption {
	return func(d *GraphDirectory) { d.client.SetBaseURL(url) }
}

// NewGraph returns a directory backed by the given Azure AD application
// credentials. Token acquisition and refresh are handled by the underlying
// oauth2 transport.
func NewGraph(ctx context.Context, tenantID, clientID, clientSecret string, log zerolog.Logger, opts ...GraphOption) *GraphDirectory {
	cc := clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", tenantID),
		Scopes:       []string{"https://graph.microsoft.com/.default"},
	}

	client := resty.NewWithClient(cc.Client(ctx)).
		SetBaseURL(defaultGraphBaseURL).
		SetTimeout(30 * time.Second)

	d := &GraphDirectory{client: client, log: log}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// NewGraphWithClient builds a directory over a pre-authenticated HTTP
// client. Tests use it to skip the token exchange.
func NewGraphWithClient(hc *http.Client, baseURL string, log zerolog.Logger) *GraphDirectory {
	client := resty.NewWithClient(hc).SetBaseURL(baseURL)
	return &GraphDirectory{client: client, log: log}
}

type graphMember struct {
	Mail              string `json:"mail"`
	UserPrincipalName string `json:"userPrincipalName"`
	DisplayName       string `json:"displayName"`
}

type graphMembersPage struct {
	Value    []graphMember `json:"value"`
	NextLink string        `json:"@odata.nextLink"`
}

// GroupMembers pages through the group's membership and returns one entry
// per member with a usable email, lower-cased. Members without mail fall
// back to their user principal name.
func (d *GraphDirectory) GroupMembers(ctx context.Context, groupID string) ([]model.Member, error) {
	url := fmt.Sprintf("/groups/%s/members?$select=mail,userPrincipalName,displayName&$top=%d", groupID, pageSize)

	var members []model.Member
	for url != "" {
		var page graphMembersPage
		resp, err := d.client.R().
			SetContext(ctx).
			SetResult(&page).
			Get(url)
		if err != nil {
			return nil, errors.Wrap(err, "graph members request")
		}
		if resp.StatusCode() != http.StatusOK {
			return nil, errors.Errorf("graph members request: HTTP %d: %s", resp.StatusCode(), resp.String())
		}

		for _, m := range page.Value {
			email := m.Mail
			if email == "" {
				email = m.UserPrincipalName
			}
			if email == "" {
				continue
			}
			members = append(members, model.Member{
				Email:       strings.ToLower(email),
				DisplayName: m.DisplayName,
			})
		}
		url = page.NextLink
	}

	d.log.Info().Str("group", groupID).Int("members", len(members)).Msg("group membership fetched")
	return members, nil
}
