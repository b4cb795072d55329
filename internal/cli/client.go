package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/neko/internal/domain"
	"github.com/roach88/neko/internal/httpapi"
)

// DefaultServer is the API base URL when neither --server nor NEKO_SERVER is set.
const DefaultServer = "http://localhost:8080"

// APIError is a non-2xx response from the giveaway API.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%s, HTTP %d)", e.Message, e.Code, e.Status)
	}
	return fmt.Sprintf("%s (HTTP %d)", e.Message, e.Status)
}

// apiClient calls a running `neko serve`.
type apiClient struct {
	base   string
	apiKey string
	client *http.Client
}

func newAPIClient(base, apiKey string, client *http.Client) *apiClient {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &apiClient{base: strings.TrimRight(base, "/"), apiKey: apiKey, client: client}
}

// do sends body as JSON and decodes a successful response into out.
// out may be nil for responses without a body.
func (c *apiClient) do(ctx context.Context, method, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, r)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set(httpapi.APIKeyHeader, c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach %s: %w", c.base, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var er httpapi.ErrorResponse
		if json.NewDecoder(resp.Body).Decode(&er) == nil && er.Error != "" {
			apiErr.Message = er.Error
			apiErr.Code = er.Code
		}
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// ClientOptions holds flags shared by commands that call the HTTP API.
type ClientOptions struct {
	*RootOptions
	Server string
	APIKey string

	// HTTPClient is used instead of the default client (for testing).
	HTTPClient *http.Client
}

func addClientFlags(cmd *cobra.Command, opts *ClientOptions) {
	server := os.Getenv("NEKO_SERVER")
	if server == "" {
		server = DefaultServer
	}
	cmd.Flags().StringVar(&opts.Server, "server", server, "giveaway API base URL ($NEKO_SERVER)")
	cmd.Flags().StringVar(&opts.APIKey, "api-key", os.Getenv("NEKO_API_KEY"), "API key for write operations ($NEKO_API_KEY)")
}

func (o *ClientOptions) client() *apiClient {
	return newAPIClient(o.Server, o.APIKey, o.HTTPClient)
}

func (o *ClientOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// requestFailed reports err and maps it to an exit code: rejected requests
// are failures, transport problems are command errors.
func requestFailed(out *OutputFormatter, err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		code := apiErr.Code
		if code == "" {
			code = fmt.Sprintf("HTTP_%d", apiErr.Status)
		}
		if ferr := out.Error(code, apiErr.Message, nil); ferr != nil {
			return ferr
		}
		return WrapExitError(ExitFailure, "request rejected", err)
	}
	return WrapExitError(ExitCommandError, "request failed", err)
}

// CreateOptions holds flags for the create command.
type CreateOptions struct {
	ClientOptions
	Title   string
	Length  string
	Channel string
	Winners int
	Image   string
}

// NewCreateCommand creates the create command.
func NewCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CreateOptions{ClientOptions: ClientOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Start a giveaway on a running server",
		Long: `Start a giveaway. The length is a duration spec such as 1d2h30m.

Example:
  neko create --title "Cat food" --length 1d --channel general --winners 2`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			winners := opts.Winners
			var ev domain.Event
			err := opts.client().do(cmd.Context(), http.MethodPost, "/giveaways", httpapi.CreateRequest{
				Title:   opts.Title,
				Length:  opts.Length,
				Channel: opts.Channel,
				Winners: &winners,
				Image:   opts.Image,
			}, &ev)
			out := opts.formatter(cmd)
			if err != nil {
				return requestFailed(out, err)
			}
			return out.Success(ev, fmt.Sprintf("Giveaway %s created, ends %s",
				ev.ID, ev.EndTime.UTC().Format(time.RFC3339)))
		},
	}

	addClientFlags(cmd, &opts.ClientOptions)
	cmd.Flags().StringVar(&opts.Title, "title", "", "giveaway title (required)")
	cmd.Flags().StringVar(&opts.Length, "length", "", "duration spec, e.g. 1d2h (required)")
	cmd.Flags().StringVar(&opts.Channel, "channel", "", "channel to present the giveaway in (required)")
	cmd.Flags().IntVar(&opts.Winners, "winners", 1, "number of winners")
	cmd.Flags().StringVar(&opts.Image, "image", "", "image URL")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("length")
	_ = cmd.MarkFlagRequired("channel")

	return cmd
}

// NewEnterCommand creates the enter command.
func NewEnterCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ClientOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "enter <giveaway-id> <participant>",
		Short:         "Enter a participant into a giveaway",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp httpapi.EntryResponse
			path := "/giveaways/" + url.PathEscape(args[0]) + "/entries"
			err := opts.client().do(cmd.Context(), http.MethodPost, path,
				httpapi.EntryRequest{Participant: args[1]}, &resp)
			out := opts.formatter(cmd)
			if err != nil {
				return requestFailed(out, err)
			}
			return out.Success(resp, resp.Message)
		},
	}
	addClientFlags(cmd, opts)
	return cmd
}

// NewWithdrawCommand creates the withdraw command.
func NewWithdrawCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ClientOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "withdraw <giveaway-id> <participant>",
		Short:         "Remove a participant from a giveaway",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp httpapi.EntryResponse
			path := "/giveaways/" + url.PathEscape(args[0]) + "/entries/" + url.PathEscape(args[1])
			err := opts.client().do(cmd.Context(), http.MethodDelete, path, nil, &resp)
			out := opts.formatter(cmd)
			if err != nil {
				return requestFailed(out, err)
			}
			return out.Success(resp, resp.Message)
		},
	}
	addClientFlags(cmd, opts)
	return cmd
}

// NewExtendCommand creates the extend command.
func NewExtendCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ClientOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "extend <giveaway-id> <length>",
		Short: "Push a giveaway's deadline later",
		Long: `Push a giveaway's deadline later by a duration spec.

Example:
  neko extend N001-2026 2h`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var ev domain.Event
			path := "/giveaways/" + url.PathEscape(args[0]) + "/extend"
			err := opts.client().do(cmd.Context(), http.MethodPost, path,
				httpapi.ExtendRequest{Length: args[1]}, &ev)
			out := opts.formatter(cmd)
			if err != nil {
				return requestFailed(out, err)
			}
			return out.Success(ev, fmt.Sprintf("Giveaway %s now ends %s",
				ev.ID, ev.EndTime.UTC().Format(time.RFC3339)))
		},
	}
	addClientFlags(cmd, opts)
	return cmd
}

// NewCancelCommand creates the cancel command.
func NewCancelCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ClientOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "cancel <giveaway-id>",
		Short:         "Cancel a giveaway without drawing winners",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := opts.client().do(cmd.Context(), http.MethodDelete,
				"/giveaways/"+url.PathEscape(args[0]), nil, nil)
			out := opts.formatter(cmd)
			if err != nil {
				return requestFailed(out, err)
			}
			return out.Success(map[string]string{"id": args[0]}, fmt.Sprintf("Giveaway %s cancelled", args[0]))
		},
	}
	addClientFlags(cmd, opts)
	return cmd
}
