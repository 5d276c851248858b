package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/relihub/internal/hooks"
)

const forwardTimeout = 30 * time.Second

var hookServer string

var hookCmd = &cobra.Command{
	Use:   "hook",
	Short: "Process a post-tool hook payload read from stdin",
	Long: `Reads a JSON payload {"tool_name": ..., "output" | "tool_response": ...}
from stdin, runs it through the tool output pipeline and prints the result.
With --server the payload is forwarded to a running hub instead.`,
	SilenceUsage: true,
	RunE:         runHook,
}

func init() {
	hookCmd.Flags().StringVar(&hookServer, "server", "", "base URL of a running hub to forward the payload to")
	rootCmd.AddCommand(hookCmd)
}

func runHook(cmd *cobra.Command, args []string) error {
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return fmt.Errorf("read stdin: %w", err)
	}
	payload, err := hooks.DecodeToolPayload(data)
	if err != nil {
		return fmt.Errorf("invalid hook payload: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if hookServer != "" {
		return forwardHook(ctx, cmd.OutOrStdout(), hookServer, data)
	}

	hub, err := openHub(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer hub.Close(context.Background())

	res := hub.ToolHook().Handle(ctx, payload.ToolName, payload.Text())
	return writeJSON(cmd.OutOrStdout(), res)
}

func forwardHook(ctx context.Context, out io.Writer, server string, payload []byte) error {
	ctx, cancel := context.WithTimeout(ctx, forwardTimeout)
	defer cancel()

	url := strings.TrimRight(server, "/") + "/v1/hooks/tool-output"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("forward hook: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("hub returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, err = out.Write(body)
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
